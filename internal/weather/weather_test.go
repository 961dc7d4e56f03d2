package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cactux/cactux/internal/storage"
)

type fakeCoords struct {
	locations map[string]storage.Location // key: table/name
	lastTable string
	lastName  string
}

func (f *fakeCoords) Coordinates(ctx context.Context, table, name string) (storage.Location, error) {
	f.lastTable, f.lastName = table, name
	loc, ok := f.locations[table+"/"+strings.ToLower(name)]
	if !ok {
		return storage.Location{}, storage.ErrNotFound
	}
	return loc, nil
}

func newFakeCoords() *fakeCoords {
	return &fakeCoords{locations: map[string]storage.Location{
		"place/guadalcazar":       {Name: "Guadalcazar", Latitude: 22.6167, Longitude: -100.4},
		"sector/joya del salitre": {Name: "Joya del Salitre", Latitude: 22.6, Longitude: -100.45},
	}}
}

func TestNormalizeLocation(t *testing.T) {
	tests := map[string]string{
		"Las Candelas":       "Gruta de las Candelas",
		"  SALITRE ":         "Joya del Salitre",
		"san caye":           "San Cayetano",
		"Cuevas Cuatas":      "Zelda",
		"Guadalcázar":        "Guadalcazar",
		"":                   "Guadalcazar",
		"comadres":           "Guadalcazar",
		"rutas en candelas":  "Guadalcazar",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeLocation(in), "input %q", in)
	}
}

// slot builds a forecast entry at the given local time in tz.
func slot(tz *time.Location, day, hour int, temp float64, desc string) map[string]any {
	dt := time.Date(2025, 4, day, hour, 0, 0, 0, tz).Unix()
	weather := []map[string]any{}
	if desc != "" {
		weather = append(weather, map[string]any{"description": desc})
	}
	return map[string]any{
		"dt":      dt,
		"main":    map[string]any{"temp": temp, "feels_like": temp - 1, "temp_min": temp - 2.4, "temp_max": temp + 2.5, "humidity": 40},
		"weather": weather,
		"wind":    map[string]any{"speed": 5.0},
		"clouds":  map[string]any{"all": 20},
		"pop":     0.36,
	}
}

func forecastServer(t *testing.T, tz *time.Location, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "key-123", q.Get("appid"))
		assert.Equal(t, "metric", q.Get("units"))
		assert.Equal(t, "es", q.Get("lang"))
		assert.NotEmpty(t, q.Get("lat"))
		if status != http.StatusOK {
			http.Error(w, `{"cod":401}`, status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"list": []any{
			slot(tz, 10, 6, 14.6, "cielo claro"),
			slot(tz, 10, 9, 18.4, "nubes"),
			slot(tz, 10, 12, 24.5, ""),
			slot(tz, 10, 21, 15, "cielo claro"),
			slot(tz, 11, 15, 27.2, "lluvia ligera"),
		}})
	}))
}

func TestService_Report(t *testing.T) {
	tz := time.FixedZone("CST", -6*3600)
	srv := forecastServer(t, tz, http.StatusOK)
	defer srv.Close()

	coords := newFakeCoords()
	svc := NewService(coords, NewClient(srv.URL, "key-123", "", ""), tz, nil)

	rep, err := svc.Report(context.Background(), "el salitre")
	require.NoError(t, err)
	assert.Equal(t, storage.TableSector, coords.lastTable)
	assert.Equal(t, "Joya del Salitre", coords.lastName)

	assert.Equal(t, "Joya del Salitre", rep.Location)
	assert.Equal(t, Current{Temp: 15, FeelsLike: 14, Conditions: "cielo claro", WindSpeed: 18, Humidity: 40, Clouds: 20}, rep.Current)

	require.Len(t, rep.Forecast, 2)
	day1 := rep.Forecast["2025-04-10"]
	require.Len(t, day1, 2, "06:00 and 21:00 are dropped")
	assert.Equal(t, "09:00", day1[0].Time)
	assert.Equal(t, 18, day1[0].Temp)
	assert.Equal(t, 16, day1[0].TempMin)
	assert.Equal(t, 21, day1[0].TempMax)
	assert.Equal(t, 36, day1[0].Pop)
	assert.Equal(t, 18, day1[0].WindSpeed)
	assert.Equal(t, "12:00", day1[1].Time)
	assert.Equal(t, 25, day1[1].Temp)
	assert.Equal(t, "Desconocido", day1[1].Conditions)

	day2 := rep.Forecast["2025-04-11"]
	require.Len(t, day2, 1)
	assert.Equal(t, "2025-04-11", day2[0].Date)
	assert.Equal(t, "lluvia ligera", day2[0].Conditions)
}

func TestService_DefaultUsesPlaceTable(t *testing.T) {
	tz := time.UTC
	srv := forecastServer(t, tz, http.StatusOK)
	defer srv.Close()

	coords := newFakeCoords()
	svc := NewService(coords, NewClient(srv.URL, "key-123", "metric", "es"), tz, nil)

	rep, err := svc.Report(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, storage.TablePlace, coords.lastTable)
	assert.Equal(t, "Guadalcazar", rep.Location)
}

func TestService_LocationNotFound(t *testing.T) {
	svc := NewService(newFakeCoords(), NewClient("http://127.0.0.1:0", "k", "", ""), nil, nil)

	_, err := svc.Report(context.Background(), "panales")
	assert.ErrorIs(t, err, ErrLocationNotFound)
	assert.Equal(t, "Location coordinates not found in database", err.Error())
}

func TestService_FetchFailed(t *testing.T) {
	srv := forecastServer(t, time.UTC, http.StatusUnauthorized)
	defer srv.Close()

	svc := NewService(newFakeCoords(), NewClient(srv.URL, "key-123", "", ""), nil, nil)
	_, err := svc.Report(context.Background(), "guadalcazar")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

type staticForecaster struct {
	resp *ForecastResponse
	err  error
}

func (s staticForecaster) Forecast(context.Context, float64, float64) (*ForecastResponse, error) {
	return s.resp, s.err
}

func TestService_EmptyList(t *testing.T) {
	svc := NewService(newFakeCoords(), staticForecaster{resp: &ForecastResponse{}}, nil, nil)

	rep, err := svc.Report(context.Background(), "guadalcazar")
	require.NoError(t, err)
	assert.Equal(t, "Desconocido", rep.Current.Conditions)
	assert.Empty(t, rep.Forecast)

	b, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"forecast":{}`)
}

func TestService_ForecasterError(t *testing.T) {
	svc := NewService(newFakeCoords(), staticForecaster{err: errors.New("dial tcp")}, nil, nil)
	_, err := svc.Report(context.Background(), "guadalcazar")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestRound(t *testing.T) {
	for in, want := range map[float64]int{2.5: 3, 2.49: 2, -2.5: -2, -2.51: -3, 0: 0} {
		assert.Equal(t, want, round(in), fmt.Sprint(in))
	}
}
