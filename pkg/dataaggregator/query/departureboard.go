package query

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

const (
	MaxStops     = 3
	MaxLimit     = 50
	DefaultLimit = 15
)

// DepartureBoard describes one departure board request. It doubles as the
// semantic identity of the matching cache entry.
type DepartureBoard struct {
	Stops []int

	ExcludeTripIDs   []string
	ExcludeHeadsigns []string

	Limit      int
	MinMinutes int
}

// ValidationError rejects a request before any upstream call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (q *DepartureBoard) Validate() error {
	if len(q.Stops) == 0 {
		return &ValidationError{Message: "At least one stop must be requested"}
	}
	if len(q.Stops) > MaxStops {
		return &ValidationError{Message: fmt.Sprintf("At most %d stops can be requested", MaxStops)}
	}

	return nil
}

// Normalize clamps the limit and minimum-minutes fields into their allowed
// ranges, defaulting an unset limit.
func (q *DepartureBoard) Normalize() {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit < 1 {
		q.Limit = 1
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}

	if q.MinMinutes < 0 {
		q.MinMinutes = 0
	}
}

// CacheKey derives the content digest identifying this query. Stops and the
// exclusion lists are canonicalized first so logically identical queries share
// one cache entry regardless of the order their elements arrived in.
func (q *DepartureBoard) CacheKey() string {
	stops := slices.Clone(q.Stops)
	slices.Sort(stops)

	tripIDs := slices.Clone(q.ExcludeTripIDs)
	slices.Sort(tripIDs)

	// Headsign matching is case-insensitive, so the key is too
	headsigns := make([]string, 0, len(q.ExcludeHeadsigns))
	for _, headsign := range q.ExcludeHeadsigns {
		headsigns = append(headsigns, strings.ToLower(headsign))
	}
	slices.Sort(headsigns)

	var builder strings.Builder
	for _, stop := range stops {
		fmt.Fprintf(&builder, "s:%d;", stop)
	}
	for _, tripID := range tripIDs {
		fmt.Fprintf(&builder, "t:%s;", tripID)
	}
	for _, headsign := range headsigns {
		fmt.Fprintf(&builder, "h:%s;", headsign)
	}
	fmt.Fprintf(&builder, "l:%d;m:%d", q.Limit, q.MinMinutes)

	return fmt.Sprintf("%x", sha256.Sum256([]byte(builder.String())))
}
