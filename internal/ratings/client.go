// Package ratings provides a minimal client for the league ratings service,
// used to refresh player rating snapshots between runs. The pipeline runs
// fine without it; ratings are enrichment only.
package ratings

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// defaultBaseURL is the root endpoint of the hosted ratings API.
const defaultBaseURL = "https://api.pinratings.net/v1"

// Client is a minimal ratings API client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient returns a ratings client authenticated with the given API key.
// An empty baseURL uses the hosted service.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// PlayerRating holds the fields we need from the /players endpoint.
type PlayerRating struct {
	PlayerKey string  `json:"player_key"`
	Name      string  `json:"name"`
	Rating    float64 `json:"rating"`
	UpdatedAt string  `json:"updated_at"`
}

// get performs an authenticated GET request and JSON-decodes the response into out.
func (c *Client) get(path string, out interface{}) error {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetPlayer looks up the current rating for one player key.
func (c *Client) GetPlayer(playerKey string) (*PlayerRating, error) {
	var r PlayerRating
	if err := c.get("/players/"+url.PathEscape(playerKey), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
