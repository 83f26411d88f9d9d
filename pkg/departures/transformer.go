package departures

import (
	"fmt"
	"math"
	"time"

	"github.com/odjezdy/odjezdy/pkg/pmdp"
)

// The upstream reports wall-clock times without an offset, local to the
// network it covers.
var upstreamLocation *time.Location

func init() {
	location, err := time.LoadLocation("Europe/Prague")
	if err != nil {
		location = time.Local
	}

	upstreamLocation = location
}

const scheduledTimeLayout = "2006-01-02T15:04:05"

var tractionRouteTypes = map[int]RouteType{
	1: RouteTypeTram,
	2: RouteTypeTrolleybus,
	3: RouteTypeBus,
}

// Transform maps one raw upstream record into the canonical schema. It returns
// the predicted departure time alongside the record as the sort key for the
// merge step, and false when the scheduled time cannot be parsed.
func Transform(raw pmdp.RawDeparture, stopID int, stopName *string, now time.Time) (Departure, time.Time, bool) {
	scheduled, err := time.ParseInLocation(scheduledTimeLayout, raw.ScheduledDeparture, upstreamLocation)
	if err != nil {
		return Departure{}, time.Time{}, false
	}

	var delaySeconds *int
	predicted := scheduled
	if raw.DelayMinutes != nil {
		seconds := *raw.DelayMinutes * 60
		delaySeconds = &seconds
		predicted = scheduled.Add(time.Duration(seconds) * time.Second)
	}

	minutesUntil := MinutesUntil(predicted, now)
	if minutesUntil < 0 {
		minutesUntil = 0
	}

	routeType := RouteTypeBus
	if raw.TractionType != nil {
		if mapped, ok := tractionRouteTypes[*raw.TractionType]; ok {
			routeType = mapped
		}
	}

	departure := Departure{
		Departure: DepartureTime{
			ScheduledTimestamp:             scheduled,
			PredictedTimestamp:             predicted,
			DelaySeconds:                   delaySeconds,
			MinutesUntilPredictedDeparture: minutesUntil,
		},
		Stop: Stop{
			ID:   fmt.Sprintf("PMDP_%d", stopID),
			Name: stopName,
		},
		Route: Route{
			Type:      routeType,
			ShortName: raw.LineName,
		},
		Trip: Trip{
			ID:       raw.TripID(),
			Headsign: raw.Destination,
		},
		Vehicle: Vehicle{
			IsWheelchairAccessible: raw.WheelchairAccessible,
			IsAirConditioned:       raw.AirConditioned,
		},
	}

	return departure, predicted, true
}

// MinutesUntil is the number of whole minutes between now and the given time,
// negative when it lies in the past.
func MinutesUntil(t time.Time, now time.Time) int {
	return int(math.Floor(t.Sub(now).Minutes()))
}

// PredictedDepartureTime computes the delay-shifted departure time of a raw
// record without transforming it, for filtering ahead of transformation.
func PredictedDepartureTime(raw pmdp.RawDeparture) (time.Time, bool) {
	scheduled, err := time.ParseInLocation(scheduledTimeLayout, raw.ScheduledDeparture, upstreamLocation)
	if err != nil {
		return time.Time{}, false
	}

	if raw.DelayMinutes != nil {
		scheduled = scheduled.Add(time.Duration(*raw.DelayMinutes) * time.Minute)
	}

	return scheduled, true
}
