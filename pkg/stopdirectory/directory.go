package stopdirectory

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog/log"
)

// Directory is the read-only mapping from a stop id to its display name.
// It is built once at startup and is safe for concurrent readers.
type Directory struct {
	names map[int]string
}

type stopRecord struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Load reads the stop list from the given JSON file. A missing or malformed
// file degrades to an empty directory so stop name lookups return nothing
// instead of failing departure requests.
func Load(path string) *Directory {
	directory := &Directory{
		names: map[int]string{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to read stop directory, stop names will be empty")
		return directory
	}

	var records []stopRecord
	if err := json.Unmarshal(data, &records); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to parse stop directory, stop names will be empty")
		return directory
	}

	for _, record := range records {
		directory.names[record.ID] = record.Name
	}

	log.Info().Int("stops", len(directory.names)).Msg("Loaded stop directory")

	return directory
}

// Lookup returns the name for a stop id or nil when the stop is unknown.
func (d *Directory) Lookup(stopID int) *string {
	name, ok := d.names[stopID]
	if !ok {
		return nil
	}

	return &name
}
