// Package weather builds climbing-day forecasts for the Guadalcazar zones.
package weather

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cactux/cactux/internal/logging"
	"github.com/cactux/cactux/internal/storage"
)

// Errors surfaced to the model as {"error": ...}.
var (
	ErrLocationNotFound = errors.New("Location coordinates not found in database")
	ErrFetchFailed      = errors.New("Failed to fetch weather data")
)

const unknownConditions = "Desconocido"

// forecastHours are the local hours kept from the 3-hour series.
var forecastHours = map[int]bool{9: true, 12: true, 15: true, 18: true}

// CoordinateSource resolves a location name in a table to coordinates.
type CoordinateSource interface {
	Coordinates(ctx context.Context, table, name string) (storage.Location, error)
}

// Forecaster fetches raw forecasts for coordinates.
type Forecaster interface {
	Forecast(ctx context.Context, lat, lon float64) (*ForecastResponse, error)
}

// Reading is one kept forecast slot.
type Reading struct {
	Date       string `json:"date"`
	Time       string `json:"time"`
	Temp       int    `json:"temp"`
	FeelsLike  int    `json:"feels_like"`
	TempMin    int    `json:"temp_min"`
	TempMax    int    `json:"temp_max"`
	Conditions string `json:"conditions"`
	WindSpeed  int    `json:"wind_speed"`
	Humidity   int    `json:"humidity"`
	Clouds     int    `json:"clouds"`
	Pop        int    `json:"pop"`
}

// Current summarizes the first forecast slot.
type Current struct {
	Temp       int    `json:"temp"`
	FeelsLike  int    `json:"feels_like"`
	Conditions string `json:"conditions"`
	WindSpeed  int    `json:"wind_speed"`
	Humidity   int    `json:"humidity"`
	Clouds     int    `json:"clouds"`
}

type Report struct {
	Location string               `json:"location"`
	Current  Current              `json:"current"`
	Forecast map[string][]Reading `json:"forecast"`
}

// Service resolves a zone to coordinates and formats its forecast.
type Service struct {
	coords   CoordinateSource
	forecast Forecaster
	tz       *time.Location
	log      *logging.Logger
}

// NewService creates a Service. A nil tz means UTC.
func NewService(coords CoordinateSource, f Forecaster, tz *time.Location, log *logging.Logger) *Service {
	if tz == nil {
		tz = time.UTC
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Service{coords: coords, forecast: f, tz: tz, log: log.Sub("weather")}
}

// Report returns the forecast for the zone named by location. Errors are
// ErrLocationNotFound or ErrFetchFailed; details are logged.
func (s *Service) Report(ctx context.Context, location string) (*Report, error) {
	name := NormalizeLocation(location)
	table := storage.TableSector
	if name == DefaultLocation {
		table = storage.TablePlace
	}

	loc, err := s.coords.Coordinates(ctx, table, name)
	if err != nil {
		s.log.Warn().Err(err).Str("location", name).Str("table", table).Msg("coordinates lookup failed")
		return nil, ErrLocationNotFound
	}

	raw, err := s.forecast.Forecast(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		s.log.Error().Err(err).Str("location", name).Msg("weather fetch failed")
		return nil, ErrFetchFailed
	}

	return buildReport(name, raw, s.tz), nil
}

func buildReport(name string, raw *ForecastResponse, tz *time.Location) *Report {
	r := &Report{Location: name, Forecast: map[string][]Reading{}}

	if len(raw.List) > 0 {
		first := raw.List[0]
		r.Current = Current{
			Temp:       round(first.Main.Temp),
			FeelsLike:  round(first.Main.FeelsLike),
			Conditions: conditions(first),
			WindSpeed:  round(first.Wind.Speed * 3.6),
			Humidity:   first.Main.Humidity,
			Clouds:     first.Clouds.All,
		}
	} else {
		r.Current.Conditions = unknownConditions
	}

	for _, e := range raw.List {
		t := time.Unix(e.Dt, 0).In(tz)
		if !forecastHours[t.Hour()] {
			continue
		}
		date := t.Format("2006-01-02")
		r.Forecast[date] = append(r.Forecast[date], Reading{
			Date:       date,
			Time:       t.Format("15:04"),
			Temp:       round(e.Main.Temp),
			FeelsLike:  round(e.Main.FeelsLike),
			TempMin:    round(e.Main.TempMin),
			TempMax:    round(e.Main.TempMax),
			Conditions: conditions(e),
			WindSpeed:  round(e.Wind.Speed * 3.6),
			Humidity:   e.Main.Humidity,
			Clouds:     e.Clouds.All,
			Pop:        round(e.Pop * 100),
		})
	}
	return r
}

func conditions(e Entry) string {
	if len(e.Weather) == 0 || e.Weather[0].Description == "" {
		return unknownConditions
	}
	return e.Weather[0].Description
}

// round rounds half toward +Inf, so -2.5 is -2.
func round(f float64) int {
	return int(math.Floor(f + 0.5))
}
