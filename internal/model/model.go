package model

import "time"

// MaxSummaryLength is the capacity of Event.Summary in bytes.
const MaxSummaryLength = 32

// Event is a single calendar entry as produced by the streaming parser.
//
// Start / End are in the configured display timezone. The parser does not
// enforce Start <= End; consumers must tolerate End before Start.
type Event struct {
	Start   time.Time
	End     time.Time
	Summary string
}

// HourlyForecast is one hour of the 48-hour forecast.
type HourlyForecast struct {
	// Hour is the hour of day 0..23 this entry applies to.
	Hour        int
	Temperature float64
	Code        WeatherCode
}

// DailyForecast is one day of the 4-day forecast.
type DailyForecast struct {
	// Date is midnight of the forecast day in the display timezone.
	Date time.Time
	Min  float64
	Max  float64
	Code WeatherCode
}

// Todo is a single line of the todo list.
type Todo string

// BatteryStatus is one reading of the battery gauge.
type BatteryStatus struct {
	// Percent is the charge level 0..100.
	Percent int `json:"percent"`
	// VoltageMv is the cell voltage in millivolts, 0 when unknown.
	VoltageMv int `json:"voltage_mv"`
}
