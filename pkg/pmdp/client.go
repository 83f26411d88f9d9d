package pmdp

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Client talks to the PMDP virtual table API.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Departures requests the next departures for one stop. It returns nil on any
// transport failure, non-200 status or unparsable body - the upstream being
// unavailable for a stop just means that stop contributes no departures.
func (c *Client) Departures(stopID int, maxResults int) []RawDeparture {
	requestBody, _ := json.Marshal(departuresRequest{
		Stop: requestStop{
			StopID: stopID,
		},
		MaxResults: maxResults,
	})

	req, err := http.NewRequest("POST", c.endpoint, bytes.NewReader(requestBody))
	if err != nil {
		log.Error().Err(err).Int("stop", stopID).Msg("Failed to build upstream request")
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Int("stop", stopID).Msg("Upstream departures request failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Int("stop", stopID).Msg("Upstream departures request returned non-200")
		return nil
	}

	jsonBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn().Err(err).Int("stop", stopID).Msg("Failed to read upstream departures response")
		return nil
	}

	var rawDepartures []RawDeparture
	if err := json.Unmarshal(jsonBytes, &rawDepartures); err != nil {
		log.Warn().Err(err).Int("stop", stopID).Msg("Failed to parse upstream departures response")
		return nil
	}

	return rawDepartures
}
