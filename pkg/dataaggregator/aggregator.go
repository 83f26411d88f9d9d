package dataaggregator

import (
	"sort"
	"strings"
	"time"

	"github.com/odjezdy/odjezdy/pkg/cachestore"
	"github.com/odjezdy/odjezdy/pkg/dataaggregator/query"
	"github.com/odjezdy/odjezdy/pkg/departures"
	"github.com/odjezdy/odjezdy/pkg/pmdp"
	"github.com/odjezdy/odjezdy/pkg/stopdirectory"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/exp/slices"
)

const (
	// How many raw records to request per stop before filtering
	fetchRecordCount = 30

	// Within this many minutes of the soonest departure delay estimates are
	// volatile, so freshness wins over cache reuse
	refreshBeforeMinutes = 15

	nearDepartureTTLSeconds = 30
	maxTTLSeconds           = 900

	// Sentinel for a board with no departures at all
	emptyBoardFirstMinutes = 999
)

// DepartureSource provides the raw departures of one stop. A nil result means
// the upstream had no usable data for that stop.
type DepartureSource interface {
	Departures(stopID int, maxResults int) []pmdp.RawDeparture
}

// Aggregator builds departure boards across stops, backed by a look-aside
// file cache. Each Aggregate call is stateless and reentrant.
type Aggregator struct {
	source    DepartureSource
	directory *stopdirectory.Directory
	store     *cachestore.Store

	now func() time.Time
}

func NewAggregator(source DepartureSource, directory *stopdirectory.Directory, store *cachestore.Store) *Aggregator {
	return &Aggregator{
		source:    source,
		directory: directory,
		store:     store,
		now:       time.Now,
	}
}

type timedDeparture struct {
	departure departures.Departure
	predicted time.Time
}

// Aggregate serves the departure board for a query, from the cache when a
// live entry exists and otherwise by fetching, filtering, transforming and
// merging the requested stops' departures. Invalid queries fail with a
// query.ValidationError before any upstream call.
func (a *Aggregator) Aggregate(q query.DepartureBoard) (*departures.Board, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	q.Normalize()

	cacheKey := q.CacheKey()
	if cached := a.store.Get(cacheKey); cached != nil {
		return cached, nil
	}

	// Stops are independent upstream, fetch them concurrently. Results land in
	// per-stop slots so the merge below consumes them in request order and the
	// sort's tie-breaks stay deterministic.
	rawPerStop := make([][]pmdp.RawDeparture, len(q.Stops))

	p := pool.New().WithMaxGoroutines(query.MaxStops)
	for index, stopID := range q.Stops {
		p.Go(func() {
			rawPerStop[index] = a.source.Departures(stopID, fetchRecordCount)
		})
	}
	p.Wait()

	now := a.now()

	excludedHeadsigns := make([]string, 0, len(q.ExcludeHeadsigns))
	for _, headsign := range q.ExcludeHeadsigns {
		excludedHeadsigns = append(excludedHeadsigns, strings.ToLower(headsign))
	}

	var merged []timedDeparture

	for index, stopID := range q.Stops {
		stopName := a.directory.Lookup(stopID)

		for _, raw := range rawPerStop[index] {
			if tripID := raw.TripID(); tripID != nil && slices.Contains(q.ExcludeTripIDs, *tripID) {
				continue
			}

			if headsignExcluded(raw.Destination, excludedHeadsigns) {
				continue
			}

			predicted, ok := departures.PredictedDepartureTime(raw)
			if !ok {
				log.Debug().Int("stop", stopID).Str("departure", raw.ScheduledDeparture).Msg("Dropping departure with unparsable time")
				continue
			}
			if departures.MinutesUntil(predicted, now) < q.MinMinutes {
				continue
			}

			departure, predicted, ok := departures.Transform(raw, stopID, stopName, now)
			if !ok {
				continue
			}

			merged = append(merged, timedDeparture{departure: departure, predicted: predicted})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].predicted.Before(merged[j].predicted)
	})

	if len(merged) > q.Limit {
		merged = merged[:q.Limit]
	}

	board := &departures.Board{
		Departures: make([]departures.Departure, 0, len(merged)),
	}
	for _, record := range merged {
		board.Departures = append(board.Departures, record.departure)
	}

	firstMinutes := emptyBoardFirstMinutes
	if len(board.Departures) > 0 {
		firstMinutes = board.Departures[0].Departure.MinutesUntilPredictedDeparture
	}

	board.FirstDepartureMinutes = &firstMinutes
	board.CacheMaxAge = cacheTTLSeconds(firstMinutes)

	a.store.Set(cacheKey, board)

	return board, nil
}

func headsignExcluded(headsign string, excludedLower []string) bool {
	lower := strings.ToLower(headsign)

	for _, excluded := range excludedLower {
		if strings.Contains(lower, excluded) {
			return true
		}
	}

	return false
}

// cacheTTLSeconds caches a board exactly until the soonest departure comes
// within the refresh threshold, capped at the maximum. Boards already inside
// the threshold (or empty of a soonest departure entirely, via the sentinel)
// get the short near-departure lifetime or the cap respectively.
func cacheTTLSeconds(firstDepartureMinutes int) int {
	if firstDepartureMinutes <= refreshBeforeMinutes {
		return nearDepartureTTLSeconds
	}

	ttl := (firstDepartureMinutes - refreshBeforeMinutes) * 60
	if ttl > maxTTLSeconds {
		ttl = maxTTLSeconds
	}

	return ttl
}
