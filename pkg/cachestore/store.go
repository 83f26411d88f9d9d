package cachestore

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odjezdy/odjezdy/pkg/departures"
	"github.com/rs/zerolog/log"
)

const (
	filePrefix = "departures-"
	fileSuffix = ".json"

	// One in a hundred reads pays for garbage collection, which amortizes the
	// sweep without a dedicated scheduler
	sweepProbability = 0.01

	// Entries untouched for this long are dead weight even if a key is never
	// read again
	staleAge = time.Hour
)

// Store is a file-backed look-aside cache for departure boards. One JSON file
// per query digest; writes always replace the whole file.
type Store struct {
	dir string

	now       func() time.Time
	randFloat func() float64
}

type cacheEntry struct {
	Departures []departures.Departure `json:"departures"`
	Expires    int64                  `json:"expires"`
	FirstMin   *int                   `json:"first_min"`
}

func NewStore(dir string) *Store {
	return &Store{
		dir:       dir,
		now:       time.Now,
		randFloat: rand.Float64,
	}
}

func (s *Store) entryPath(key string) string {
	return filepath.Join(s.dir, filePrefix+key+fileSuffix)
}

// Get returns the cached board for a key, or nil when the entry is absent,
// unparsable or expired. A hit carries the remaining time-to-live and is
// marked as coming from the cache.
func (s *Store) Get(key string) *departures.Board {
	if s.randFloat() < sweepProbability {
		s.Sweep(false)
	}

	data, err := os.ReadFile(s.entryPath(key))
	if err != nil {
		return nil
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to parse cache entry")
		return nil
	}

	remaining := entry.Expires - s.now().Unix()
	if remaining <= 0 {
		return nil
	}

	return &departures.Board{
		Departures:            entry.Departures,
		CacheMaxAge:           int(remaining),
		FirstDepartureMinutes: entry.FirstMin,
		FromCache:             true,
	}
}

// Set persists a board under the given key for the board's cache lifetime.
// Caching is best effort: every failure is logged and swallowed so the
// response path never blocks on the cache.
func (s *Store) Set(key string, board *departures.Board) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		log.Warn().Err(err).Str("dir", s.dir).Msg("Failed to create cache directory, skipping cache write")
		return
	}

	entry := cacheEntry{
		Departures: board.Departures,
		Expires:    s.now().Unix() + int64(board.CacheMaxAge),
		FirstMin:   board.FirstDepartureMinutes,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to encode cache entry")
		return
	}

	// Write-then-rename keeps concurrent readers and writers of the same key
	// from ever observing a partial file
	tempFile, err := os.CreateTemp(s.dir, filePrefix+"*.tmp")
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to create cache entry")
		return
	}

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempFile.Name())
		log.Warn().Err(err).Str("key", key).Msg("Failed to write cache entry")
		return
	}
	tempFile.Close()

	if err := os.Rename(tempFile.Name(), s.entryPath(key)); err != nil {
		os.Remove(tempFile.Name())
		log.Warn().Err(err).Str("key", key).Msg("Failed to replace cache entry")
	}
}

// Sweep deletes this cache's entries, all of them or just those last written
// longer than the stale age ago. It returns the number of deleted entries.
func (s *Store) Sweep(all bool) int {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}

	deleted := 0
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}

		if !all {
			info, err := dirEntry.Info()
			if err != nil {
				continue
			}
			if s.now().Sub(info.ModTime()) <= staleAge {
				continue
			}
		}

		if err := os.Remove(filepath.Join(s.dir, name)); err == nil {
			deleted++
		}
	}

	return deleted
}
