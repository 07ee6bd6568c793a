package model

import (
	"strconv"
)

// WeatherCode is a WMO weather interpretation code as reported by
// open-meteo. Codes outside the documented set decode to WeatherUnknown.
type WeatherCode uint8

const (
	WeatherClear                  WeatherCode = 0
	WeatherMainlyClear            WeatherCode = 1
	WeatherPartlyCloudy           WeatherCode = 2
	WeatherOvercast               WeatherCode = 3
	WeatherFog                    WeatherCode = 45
	WeatherDepositingRimeFog      WeatherCode = 48
	WeatherLightDrizzle           WeatherCode = 51
	WeatherModerateDrizzle        WeatherCode = 53
	WeatherDenseDrizzle           WeatherCode = 55
	WeatherLightFreezingDrizzle   WeatherCode = 56
	WeatherDenseFreezingDrizzle   WeatherCode = 57
	WeatherSlightRain             WeatherCode = 61
	WeatherModerateRain           WeatherCode = 63
	WeatherHeavyRain              WeatherCode = 65
	WeatherFreezingLightRain      WeatherCode = 66
	WeatherFreezingHeavyRain      WeatherCode = 67
	WeatherSlightSnow             WeatherCode = 71
	WeatherModerateSnow           WeatherCode = 73
	WeatherHeavySnow              WeatherCode = 75
	WeatherSnowGrains             WeatherCode = 77
	WeatherSlightRainShower       WeatherCode = 80
	WeatherModerateRainShower     WeatherCode = 81
	WeatherViolentRainShower      WeatherCode = 82
	WeatherSlightSnowShower       WeatherCode = 85
	WeatherHeavySnowShower        WeatherCode = 86
	WeatherThunderstorm           WeatherCode = 95
	WeatherThunderstormSlightHail WeatherCode = 96
	WeatherThunderstormHeavyHail  WeatherCode = 99
	WeatherUnknown                WeatherCode = 255
)

var weatherNames = map[WeatherCode]string{
	WeatherClear:                  "clear",
	WeatherMainlyClear:            "mainly_clear",
	WeatherPartlyCloudy:           "partly_cloudy",
	WeatherOvercast:               "overcast",
	WeatherFog:                    "fog",
	WeatherDepositingRimeFog:      "rime_fog",
	WeatherLightDrizzle:           "light_drizzle",
	WeatherModerateDrizzle:        "moderate_drizzle",
	WeatherDenseDrizzle:           "dense_drizzle",
	WeatherLightFreezingDrizzle:   "light_freezing_drizzle",
	WeatherDenseFreezingDrizzle:   "dense_freezing_drizzle",
	WeatherSlightRain:             "slight_rain",
	WeatherModerateRain:           "moderate_rain",
	WeatherHeavyRain:              "heavy_rain",
	WeatherFreezingLightRain:      "freezing_light_rain",
	WeatherFreezingHeavyRain:      "freezing_heavy_rain",
	WeatherSlightSnow:             "slight_snow",
	WeatherModerateSnow:           "moderate_snow",
	WeatherHeavySnow:              "heavy_snow",
	WeatherSnowGrains:             "snow_grains",
	WeatherSlightRainShower:       "slight_rain_shower",
	WeatherModerateRainShower:     "moderate_rain_shower",
	WeatherViolentRainShower:      "violent_rain_shower",
	WeatherSlightSnowShower:       "slight_snow_shower",
	WeatherHeavySnowShower:        "heavy_snow_shower",
	WeatherThunderstorm:           "thunderstorm",
	WeatherThunderstormSlightHail: "thunderstorm_slight_hail",
	WeatherThunderstormHeavyHail:  "thunderstorm_heavy_hail",
	WeatherUnknown:                "unknown",
}

// ParseWeatherCode maps a raw code to a WeatherCode. ok is false when the
// code is undocumented; the returned value is then WeatherUnknown.
func ParseWeatherCode(raw int) (code WeatherCode, ok bool) {
	if raw < 0 || raw > 254 {
		return WeatherUnknown, false
	}
	c := WeatherCode(raw)
	if _, known := weatherNames[c]; !known {
		return WeatherUnknown, false
	}
	return c, true
}

func (c WeatherCode) String() string {
	if n, ok := weatherNames[c]; ok {
		return n
	}
	return "code(" + strconv.Itoa(int(c)) + ")"
}

// Icon names a pictogram for the code at the given hour of day. Night hours
// (20..7) swap sun for moon. The second return value is false when the code
// has no dedicated icon and the fallback "sun" was used.
func (c WeatherCode) Icon(hour int) (string, bool) {
	day := hour >= 8 && hour <= 19

	switch c {
	case WeatherClear, WeatherMainlyClear:
		if day {
			return "sun", true
		}
		return "moon", true
	case WeatherPartlyCloudy:
		if day {
			return "cloud_sun", true
		}
		return "cloud_moon", true
	case WeatherOvercast:
		return "cloud", true
	case WeatherFog, WeatherDepositingRimeFog:
		return "cloud_wind", true
	case WeatherSlightRain, WeatherLightDrizzle, WeatherModerateDrizzle, WeatherDenseDrizzle:
		return "rain0", true
	case WeatherModerateRain, WeatherSlightRainShower, WeatherModerateRainShower:
		return "rain1", true
	case WeatherHeavyRain, WeatherViolentRainShower:
		return "rain2", true
	case WeatherLightFreezingDrizzle, WeatherDenseFreezingDrizzle,
		WeatherFreezingLightRain, WeatherFreezingHeavyRain:
		return "rain_snow", true
	case WeatherSlightSnow, WeatherModerateSnow, WeatherHeavySnow, WeatherSnowGrains,
		WeatherSlightSnowShower, WeatherHeavySnowShower:
		return "snow", true
	case WeatherThunderstorm, WeatherThunderstormSlightHail, WeatherThunderstormHeavyHail:
		return "rain_lightning", true
	default:
		return "sun", false
	}
}
