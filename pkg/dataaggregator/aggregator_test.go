package dataaggregator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/odjezdy/odjezdy/pkg/cachestore"
	"github.com/odjezdy/odjezdy/pkg/dataaggregator/query"
	"github.com/odjezdy/odjezdy/pkg/pmdp"
	"github.com/odjezdy/odjezdy/pkg/stopdirectory"
)

var testLocation = mustLoadLocation()

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, testLocation)

func mustLoadLocation() *time.Location {
	location, err := time.LoadLocation("Europe/Prague")
	if err != nil {
		return time.Local
	}

	return location
}

type stubSource struct {
	mu    sync.Mutex
	data  map[int][]pmdp.RawDeparture
	calls int
}

func (s *stubSource) Departures(stopID int, maxResults int) []pmdp.RawDeparture {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	return s.data[stopID]
}

// rawIn builds a raw record departing the given duration after the test clock.
func rawIn(fromNow time.Duration, line string, headsign string, tripID string) pmdp.RawDeparture {
	raw := pmdp.RawDeparture{
		ScheduledDeparture: testNow.Add(fromNow).Format("2006-01-02T15:04:05"),
		LineName:           line,
		Destination:        headsign,
	}

	if tripID != "" {
		raw.Connection = &pmdp.Connection{ID: tripID}
	}

	return raw
}

func newTestAggregator(t *testing.T, data map[int][]pmdp.RawDeparture) (*Aggregator, *stubSource) {
	t.Helper()

	source := &stubSource{data: data}

	aggregator := NewAggregator(
		source,
		stopdirectory.Load(filepath.Join(t.TempDir(), "missing.json")),
		cachestore.NewStore(t.TempDir()),
	)
	aggregator.now = func() time.Time { return testNow }

	return aggregator, source
}

func TestAggregateValidation(t *testing.T) {
	testCases := []struct {
		name  string
		stops []int
	}{
		{"no stops", nil},
		{"too many stops", []int{1, 2, 3, 4}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			aggregator, source := newTestAggregator(t, nil)

			_, err := aggregator.Aggregate(query.DepartureBoard{Stops: testCase.stops})

			if _, ok := err.(*query.ValidationError); !ok {
				t.Errorf("expected a ValidationError, got %v", err)
			}
			if source.calls != 0 {
				t.Errorf("expected no upstream calls for an invalid query, got %d", source.calls)
			}
		})
	}
}

func TestAggregateMergesSortsAndLimits(t *testing.T) {
	aggregator, _ := newTestAggregator(t, map[int][]pmdp.RawDeparture{
		101: {
			rawIn(40*time.Minute, "22", "Bory", "t1"),
			rawIn(20*time.Minute, "22", "Bory", "t2"),
		},
		102: {
			rawIn(30*time.Minute, "4", "Košutka", "t3"),
			rawIn(50*time.Minute, "4", "Košutka", "t4"),
		},
	})

	board, err := aggregator.Aggregate(query.DepartureBoard{Stops: []int{101, 102}, Limit: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(board.Departures) != 3 {
		t.Fatalf("departures = %d, want 3", len(board.Departures))
	}

	var gotTrips []string
	for _, departure := range board.Departures {
		gotTrips = append(gotTrips, *departure.Trip.ID)
	}
	want := []string{"t2", "t3", "t1"}
	for index := range want {
		if gotTrips[index] != want[index] {
			t.Fatalf("trip order = %v, want %v", gotTrips, want)
		}
	}

	for index := 1; index < len(board.Departures); index++ {
		previous := board.Departures[index-1].Departure.PredictedTimestamp
		current := board.Departures[index].Departure.PredictedTimestamp
		if current.Before(previous) {
			t.Errorf("departures are not sorted by predicted time")
		}
	}

	if board.FromCache {
		t.Errorf("a fresh aggregation should not be marked as cached")
	}
	if board.FirstDepartureMinutes == nil || *board.FirstDepartureMinutes != 20 {
		t.Errorf("first departure minutes = %v, want 20", board.FirstDepartureMinutes)
	}
}

func TestAggregateExcludesTripIDs(t *testing.T) {
	aggregator, _ := newTestAggregator(t, map[int][]pmdp.RawDeparture{
		101: {
			rawIn(10*time.Minute, "22", "Bory", "keep"),
			rawIn(12*time.Minute, "22", "Bory", "drop"),
		},
	})

	board, err := aggregator.Aggregate(query.DepartureBoard{
		Stops:          []int{101},
		ExcludeTripIDs: []string{"drop"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(board.Departures) != 1 || *board.Departures[0].Trip.ID != "keep" {
		t.Errorf("expected only the non-excluded trip to survive, got %+v", board.Departures)
	}
}

func TestAggregateExcludesHeadsignSubstrings(t *testing.T) {
	aggregator, _ := newTestAggregator(t, map[int][]pmdp.RawDeparture{
		101: {
			rawIn(10*time.Minute, "22", "Bory vrch", "t1"),
			rawIn(12*time.Minute, "22", "Borská pole", "t2"),
			rawIn(14*time.Minute, "22", "BORY", "t3"),
		},
	})

	board, err := aggregator.Aggregate(query.DepartureBoard{
		Stops:            []int{101},
		ExcludeHeadsigns: []string{"bory"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// "Bory vrch" and "BORY" contain the substring case-insensitively,
	// "Borská pole" does not
	if len(board.Departures) != 1 || board.Departures[0].Trip.Headsign != "Borská pole" {
		t.Errorf("expected only Borská pole to survive, got %+v", board.Departures)
	}
}

func TestAggregateMinMinutesFiltersBeforeTransform(t *testing.T) {
	delay := 5

	soon := rawIn(2*time.Minute, "22", "Bory", "soon")
	// Scheduled below the window but delayed into it
	delayed := rawIn(4*time.Minute, "22", "Bory", "delayed")
	delayed.DelayMinutes = &delay
	later := rawIn(30*time.Minute, "22", "Bory", "later")

	aggregator, _ := newTestAggregator(t, map[int][]pmdp.RawDeparture{
		101: {soon, delayed, later},
	})

	board, err := aggregator.Aggregate(query.DepartureBoard{
		Stops:      []int{101},
		MinMinutes: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(board.Departures) != 2 {
		t.Fatalf("departures = %d, want 2", len(board.Departures))
	}
	if *board.Departures[0].Trip.ID != "delayed" || *board.Departures[1].Trip.ID != "later" {
		t.Errorf("unexpected surviving departures: %+v", board.Departures)
	}

	for _, departure := range board.Departures {
		if departure.Departure.MinutesUntilPredictedDeparture < 5 {
			t.Errorf("departure %v violates the minimum minutes filter", *departure.Trip.ID)
		}
	}
}

func TestAggregateTTLPolicy(t *testing.T) {
	testCases := []struct {
		name        string
		fromNow     time.Duration
		wantFirst   int
		wantTTL     int
		noDeparture bool
	}{
		{"departing now", 30 * time.Second, 0, 30, false},
		{"at the refresh threshold", 15 * time.Minute, 15, 30, false},
		{"just past the threshold", 20 * time.Minute, 20, 300, false},
		{"far out is capped", 60 * time.Minute, 60, 900, false},
		{"no departures", 0, 999, 900, true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			data := map[int][]pmdp.RawDeparture{}
			if !testCase.noDeparture {
				data[101] = []pmdp.RawDeparture{rawIn(testCase.fromNow, "22", "Bory", "t1")}
			}

			aggregator, _ := newTestAggregator(t, data)

			board, err := aggregator.Aggregate(query.DepartureBoard{Stops: []int{101}})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if *board.FirstDepartureMinutes != testCase.wantFirst {
				t.Errorf("first departure minutes = %d, want %d", *board.FirstDepartureMinutes, testCase.wantFirst)
			}
			if board.CacheMaxAge != testCase.wantTTL {
				t.Errorf("ttl = %d, want %d", board.CacheMaxAge, testCase.wantTTL)
			}
		})
	}
}

func TestAggregateContinuesPastFailedStop(t *testing.T) {
	// Stop 102 has no data at all, as if its fetch failed
	aggregator, _ := newTestAggregator(t, map[int][]pmdp.RawDeparture{
		101: {rawIn(10*time.Minute, "22", "Bory", "t1")},
	})

	board, err := aggregator.Aggregate(query.DepartureBoard{Stops: []int{101, 102}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(board.Departures) != 1 {
		t.Errorf("expected the healthy stop's departures, got %+v", board.Departures)
	}
}

func TestAggregateUnknownStopYieldsEmptyBoard(t *testing.T) {
	aggregator, _ := newTestAggregator(t, nil)

	board, err := aggregator.Aggregate(query.DepartureBoard{Stops: []int{999999}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if board.Departures == nil || len(board.Departures) != 0 {
		t.Errorf("departures should be an empty sequence, got %+v", board.Departures)
	}
	if *board.FirstDepartureMinutes != 999 {
		t.Errorf("first departure minutes = %d, want 999", *board.FirstDepartureMinutes)
	}
	if board.CacheMaxAge != 900 {
		t.Errorf("ttl = %d, want 900", board.CacheMaxAge)
	}
	if board.FromCache {
		t.Errorf("an empty fresh board should not be marked as cached")
	}
}

func TestAggregateServesFromCache(t *testing.T) {
	source := &stubSource{data: map[int][]pmdp.RawDeparture{
		101: {rawIn(20*time.Minute, "22", "Bory", "t1")},
	}}

	aggregator := NewAggregator(
		source,
		stopdirectory.Load(filepath.Join(t.TempDir(), "missing.json")),
		cachestore.NewStore(t.TempDir()),
	)
	aggregator.now = func() time.Time { return testNow }

	q := query.DepartureBoard{Stops: []int{101}}

	first, err := aggregator.Aggregate(q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := aggregator.Aggregate(q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.FromCache {
		t.Errorf("first call should be fresh")
	}
	if !second.FromCache {
		t.Errorf("second call should be served from the cache")
	}
	if source.calls != 1 {
		t.Errorf("upstream calls = %d, want 1", source.calls)
	}

	firstJSON, _ := json.Marshal(first.Departures)
	secondJSON, _ := json.Marshal(second.Departures)
	if string(firstJSON) != string(secondJSON) {
		t.Errorf("cached departures differ from fresh ones.\nFresh: %s\nCached: %s", firstJSON, secondJSON)
	}
	if second.CacheMaxAge > first.CacheMaxAge {
		t.Errorf("remaining ttl %d should not exceed the original %d", second.CacheMaxAge, first.CacheMaxAge)
	}
}

func TestAggregateIsIdempotentWithoutCache(t *testing.T) {
	data := map[int][]pmdp.RawDeparture{
		101: {
			rawIn(20*time.Minute, "22", "Bory", "t1"),
			rawIn(10*time.Minute, "4", "Košutka", "t2"),
		},
	}

	// Separate aggregators with separate cache dirs, same upstream data
	first, _ := newTestAggregator(t, data)
	second, _ := newTestAggregator(t, data)

	q := query.DepartureBoard{Stops: []int{101}}

	boardOne, err := first.Aggregate(q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	boardTwo, err := second.Aggregate(q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	oneJSON, _ := json.Marshal(boardOne)
	twoJSON, _ := json.Marshal(boardTwo)
	if string(oneJSON) != string(twoJSON) {
		t.Errorf("same query over unchanged data should serialize identically.\nOne: %s\nTwo: %s", oneJSON, twoJSON)
	}
}

func TestAggregateAttachesStopNames(t *testing.T) {
	stopsFile := filepath.Join(t.TempDir(), "stops.json")
	if err := os.WriteFile(stopsFile, []byte(`[{"id":101,"name":"Hlavní nádraží"}]`), 0644); err != nil {
		t.Fatalf("failed to write stops file: %v", err)
	}

	source := &stubSource{data: map[int][]pmdp.RawDeparture{
		101: {rawIn(10*time.Minute, "22", "Bory", "t1")},
		102: {rawIn(12*time.Minute, "4", "Košutka", "t2")},
	}}

	aggregator := NewAggregator(
		source,
		stopdirectory.Load(stopsFile),
		cachestore.NewStore(t.TempDir()),
	)
	aggregator.now = func() time.Time { return testNow }

	board, err := aggregator.Aggregate(query.DepartureBoard{Stops: []int{101, 102}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byStop := map[string]*string{}
	for index, departure := range board.Departures {
		byStop[departure.Stop.ID] = board.Departures[index].Stop.Name
	}

	if name := byStop["PMDP_101"]; name == nil || *name != "Hlavní nádraží" {
		t.Errorf("PMDP_101 name = %v, want Hlavní nádraží", name)
	}
	if name := byStop["PMDP_102"]; name != nil {
		t.Errorf("PMDP_102 name = %v, want nil for an unknown stop", *name)
	}
}

func TestCacheTTLSeconds(t *testing.T) {
	testCases := []struct {
		first int
		want  int
	}{
		{0, 30},
		{15, 30},
		{16, 60},
		{20, 300},
		{30, 900},
		{999, 900},
	}

	for _, testCase := range testCases {
		t.Run(fmt.Sprintf("first=%d", testCase.first), func(t *testing.T) {
			if got := cacheTTLSeconds(testCase.first); got != testCase.want {
				t.Errorf("ttl(%d) = %d, want %d", testCase.first, got, testCase.want)
			}
		})
	}
}
