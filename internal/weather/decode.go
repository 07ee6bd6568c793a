// Package weather decodes open-meteo forecasts into fixed-size arrays.
package weather

import (
	"encoding/json"
	"fmt"
	"time"

	"homedash/internal/fault"
	appLog "homedash/internal/log"
	"homedash/internal/model"
)

const (
	// HourlyCount is the number of hourly entries (two days).
	HourlyCount = 48
	// DailyCount is the number of daily entries (today plus three).
	DailyCount = 4

	dateLayout = "2006-01-02"
)

type hourlyResponse struct {
	Hourly struct {
		Temperature []float64 `json:"temperature_2m"`
		WeatherCode []int     `json:"weather_code"`
	} `json:"hourly"`
}

type dailyResponse struct {
	Daily struct {
		Time           []string  `json:"time"`
		TemperatureMax []float64 `json:"temperature_2m_max"`
		TemperatureMin []float64 `json:"temperature_2m_min"`
		WeatherCode    []int     `json:"weather_code"`
	} `json:"daily"`
}

// DecodeHourly decodes the hourly endpoint. Both arrays must hold exactly
// HourlyCount entries. Entry i applies to hour i%24.
func DecodeHourly(body []byte) ([HourlyCount]model.HourlyForecast, error) {
	var out [HourlyCount]model.HourlyForecast

	var resp hourlyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return out, fault.Decode("weather: hourly", err)
	}
	h := resp.Hourly
	if err := checkLen("temperature_2m", len(h.Temperature), HourlyCount); err != nil {
		return out, fault.Decode("weather: hourly", err)
	}
	if err := checkLen("weather_code", len(h.WeatherCode), HourlyCount); err != nil {
		return out, fault.Decode("weather: hourly", err)
	}

	for i := range out {
		out[i] = model.HourlyForecast{
			Hour:        i % 24,
			Temperature: h.Temperature[i],
			Code:        weatherCode(h.WeatherCode[i]),
		}
	}
	return out, nil
}

// DecodeDaily decodes the daily endpoint. Dates are midnight in loc.
func DecodeDaily(body []byte, loc *time.Location) ([DailyCount]model.DailyForecast, error) {
	var out [DailyCount]model.DailyForecast

	var resp dailyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return out, fault.Decode("weather: daily", err)
	}
	d := resp.Daily
	for _, f := range []struct {
		name string
		n    int
	}{
		{"time", len(d.Time)},
		{"temperature_2m_max", len(d.TemperatureMax)},
		{"temperature_2m_min", len(d.TemperatureMin)},
		{"weather_code", len(d.WeatherCode)},
	} {
		if err := checkLen(f.name, f.n, DailyCount); err != nil {
			return out, fault.Decode("weather: daily", err)
		}
	}

	for i := range out {
		date, err := time.ParseInLocation(dateLayout, d.Time[i], loc)
		if err != nil {
			return out, fault.Decode("weather: daily", err)
		}
		out[i] = model.DailyForecast{
			Date: date,
			Min:  d.TemperatureMin[i],
			Max:  d.TemperatureMax[i],
			Code: weatherCode(d.WeatherCode[i]),
		}
	}
	return out, nil
}

func checkLen(field string, got, want int) error {
	if got != want {
		return fmt.Errorf("%s has %d entries, want %d", field, got, want)
	}
	return nil
}

func weatherCode(raw int) model.WeatherCode {
	c, ok := model.ParseWeatherCode(raw)
	if !ok {
		appLog.Warn("unknown weather code", "code", raw)
	}
	return c
}

// Upcoming picks n entries starting at the current hour, step hours apart.
// The result is shorter than n when the forecast runs out.
func Upcoming(hourly [HourlyCount]model.HourlyForecast, hour, n, step int) []model.HourlyForecast {
	if step <= 0 {
		step = 1
	}
	out := make([]model.HourlyForecast, 0, n)
	for i := hour; i >= 0 && i < len(hourly) && len(out) < n; i += step {
		out = append(out, hourly[i])
	}
	return out
}

// AfterToday drops the first daily entry, which is today.
func AfterToday(daily [DailyCount]model.DailyForecast) []model.DailyForecast {
	return daily[1:]
}
