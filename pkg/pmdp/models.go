package pmdp

// RawDeparture is one record of the virtual table response. Wall-clock times
// come without an offset and are local to the upstream network (Europe/Prague).
type RawDeparture struct {
	ScheduledDeparture string `json:"DepartureTime"`
	DelayMinutes       *int   `json:"DelayMinutes"`

	LineName     string `json:"LineName"`
	TractionType *int   `json:"TractionType"`
	Destination  string `json:"Destination"`

	Connection   *Connection `json:"Connection"`
	ConnectionID *string     `json:"ConnectionId"`

	WheelchairAccessible *bool `json:"WheelChairAccess"`
	AirConditioned       *bool `json:"AirCondition"`
}

// Connection identifies the trip a departure belongs to.
type Connection struct {
	ID string `json:"Id"`
}

// TripID returns the trip identifier of a departure, preferring the structured
// connection over the scalar fallback field. Nil when the record carries
// neither.
func (r RawDeparture) TripID() *string {
	if r.Connection != nil && r.Connection.ID != "" {
		id := r.Connection.ID
		return &id
	}

	return r.ConnectionID
}

type departuresRequest struct {
	Stop                  requestStop `json:"Stop"`
	DateAndTime           *string     `json:"DateAndTime"`
	MaxResults            int         `json:"MaxResults"`
	MaxResultsDateAndTime *string     `json:"MaxResultsDateAndTime"`
	FullResults           bool        `json:"FullResults"`
}

type requestStop struct {
	StopID        int      `json:"StopId"`
	CISJRNumber   *int     `json:"CISJRNumber"`
	MarkerCode    *string  `json:"MarkerCode"`
	Latitude      *float64 `json:"Latitude"`
	Longitude     *float64 `json:"Longitude"`
	MapyCzPoiType *string  `json:"MapyCzPoiType"`
}
