package departures

import "time"

// Departure is the canonical output unit served to clients. Values are fixed
// at transformation time and never mutated afterwards.
type Departure struct {
	Departure DepartureTime `json:"departure" groups:"basic"`
	Stop      Stop          `json:"stop" groups:"basic"`
	Route     Route         `json:"route" groups:"basic"`
	Trip      Trip          `json:"trip" groups:"basic"`
	Vehicle   Vehicle       `json:"vehicle" groups:"basic"`
}

type DepartureTime struct {
	ScheduledTimestamp time.Time `json:"scheduled_timestamp" groups:"basic"`
	PredictedTimestamp time.Time `json:"predicted_timestamp" groups:"basic"`
	DelaySeconds       *int      `json:"delay_seconds" groups:"basic"`

	MinutesUntilPredictedDeparture int `json:"minutes_until_predicted_departure" groups:"basic"`
}

type Stop struct {
	ID   string  `json:"id" groups:"basic"`
	Name *string `json:"name" groups:"basic"`

	// Not observable from the upstream source
	Sequence     *int    `json:"sequence" groups:"basic"`
	PlatformCode *string `json:"platform_code" groups:"basic"`
}

type Route struct {
	Type      RouteType `json:"type" groups:"basic"`
	ShortName string    `json:"short_name" groups:"basic"`
}

type RouteType string

const (
	RouteTypeTram       RouteType = "tram"
	RouteTypeTrolleybus RouteType = "trolleybus"
	RouteTypeBus        RouteType = "bus"
)

type Trip struct {
	ID       *string `json:"id" groups:"basic"`
	Headsign string  `json:"headsign" groups:"basic"`

	// Cancellations are not observable from the upstream source
	IsCanceled bool `json:"is_canceled" groups:"basic"`
}

type Vehicle struct {
	ID                     *string `json:"id" groups:"basic"`
	IsWheelchairAccessible *bool   `json:"is_wheelchair_accessible" groups:"basic"`
	IsAirConditioned       *bool   `json:"is_air_conditioned" groups:"basic"`
	HasCharger             *bool   `json:"has_charger" groups:"basic"`
}

// Board is the result envelope of one departure board aggregation.
type Board struct {
	Departures []Departure `json:"departures" groups:"basic"`

	CacheMaxAge           int  `json:"cache_max_age" groups:"basic"`
	FirstDepartureMinutes *int `json:"first_departure_minutes" groups:"basic"`
	FromCache             bool `json:"from_cache" groups:"basic"`
}
