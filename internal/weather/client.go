package weather

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"homedash/internal/fetch"
	"homedash/internal/model"
)

// Response size ceilings. A longer body is a ResourceExhausted fault.
const (
	HourlyLimit = 16 << 10
	DailyLimit  = 8 << 10
)

// Getter is the subset of fetch.Client the weather client needs.
type Getter interface {
	ReadLimited(ctx context.Context, url string, hdr fetch.Header, limit int) ([]byte, error)
}

// Client fetches forecasts for one location.
type Client struct {
	Getter    Getter
	BaseURL   string
	Latitude  float64
	Longitude float64
	// Timezone is the IANA name sent to the API so hourly entries start at
	// local midnight.
	Timezone string
	Location *time.Location
}

// Hourly fetches and decodes the 48-hour forecast.
func (c *Client) Hourly(ctx context.Context) ([HourlyCount]model.HourlyForecast, error) {
	q := c.query()
	q.Set("hourly", "temperature_2m,weather_code")
	q.Set("forecast_days", "2")

	body, err := c.Getter.ReadLimited(ctx, c.BaseURL+"?"+q.Encode(), fetch.Header{}, HourlyLimit)
	if err != nil {
		return [HourlyCount]model.HourlyForecast{}, err
	}
	return DecodeHourly(body)
}

// Daily fetches and decodes the 4-day forecast.
func (c *Client) Daily(ctx context.Context) ([DailyCount]model.DailyForecast, error) {
	q := c.query()
	q.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min")
	q.Set("forecast_days", strconv.Itoa(DailyCount))

	body, err := c.Getter.ReadLimited(ctx, c.BaseURL+"?"+q.Encode(), fetch.Header{}, DailyLimit)
	if err != nil {
		return [DailyCount]model.DailyForecast{}, err
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return DecodeDaily(body, loc)
}

func (c *Client) query() url.Values {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(c.Longitude, 'f', -1, 64))
	if c.Timezone != "" {
		q.Set("timezone", c.Timezone)
	}
	return q
}
