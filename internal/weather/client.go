package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the OpenWeather 2.5 API root.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

// Client fetches 5-day/3-hour forecasts from OpenWeather.
type Client struct {
	baseURL    string
	apiKey     string
	units      string
	lang       string
	httpClient *http.Client
}

// NewClient creates a Client. Empty units and lang default to metric and es.
func NewClient(baseURL, apiKey, units, lang string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if units == "" {
		units = "metric"
	}
	if lang == "" {
		lang = "es"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		units:      units,
		lang:       lang,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// ForecastResponse is the subset of the /forecast payload we read.
type ForecastResponse struct {
	List []Entry `json:"list"`
}

// Entry is one 3-hour forecast slot.
type Entry struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Pop float64 `json:"pop"`
}

// Forecast requests the forecast for the given coordinates.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) (*ForecastResponse, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", c.units)
	q.Set("lang", c.lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/forecast?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating forecast request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("forecast: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out ForecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding forecast: %w", err)
	}
	return &out, nil
}
