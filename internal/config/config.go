package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: configuration is read once at startup and never reloaded. A missing
// file is created with defaults (0600) so the operator has something to edit.

// WiFiConfig holds wireless association settings.
type WiFiConfig struct {
	// Backend selects the link implementation:
	//   - "nm"        NetworkManager over D-Bus (default)
	//   - "interface" only watch an already-configured interface
	Backend   string `yaml:"backend"`
	Interface string `yaml:"interface"`
	SSID      string `yaml:"ssid"`
	Password  string `yaml:"password"`
	// PollInterval controls how often link state is re-checked.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// TodoConfig describes the optional todo source.
type TodoConfig struct {
	URL string `yaml:"url"`
	// Authorization is sent verbatim as the Authorization header,
	// e.g. "Bearer abc".
	Authorization string `yaml:"authorization"`
}

// Enabled reports whether the todo step should run.
func (t TodoConfig) Enabled() bool {
	return t.URL != "" && t.Authorization != ""
}

// WeatherConfig holds the forecast location.
type WeatherConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	// BaseURL is the forecast endpoint (open-meteo compatible).
	BaseURL string `yaml:"base_url"`
}

// DisplayConfig selects and wires the e-paper panel.
type DisplayConfig struct {
	// Model is one of "7in5v2", "2in13v4" or "preview".
	Model string `yaml:"model"`
	// SPIPort is the periph.io SPI port name ("" = first available).
	SPIPort string `yaml:"spi_port"`
	// PreviewDir is where the preview panel writes PNG frames.
	PreviewDir string `yaml:"preview_dir"`
	// BCM GPIO numbers for the 7.5" V2 HAT.
	PinDC   int `yaml:"pin_dc"`
	PinRST  int `yaml:"pin_rst"`
	PinBusy int `yaml:"pin_busy"`
	PinCS   int `yaml:"pin_cs"`
	// SettleDelay is waited after triggering a refresh and before polling
	// the busy line.
	SettleDelay time.Duration `yaml:"settle_delay"`
	// Timeout bounds one full panel update. A busy line that never
	// releases fails the display step instead of stalling the schedule.
	Timeout time.Duration `yaml:"timeout"`
}

// BatteryConfig enables the PiSugar battery gauge.
type BatteryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bus     string `yaml:"bus"`
	Address uint16 `yaml:"address"`
	// Mock uses a fixed reading instead of I2C.
	Mock bool `yaml:"mock"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone used for every displayed instant.
	Timezone string `yaml:"timezone"`
	// TimezoneFile, if set, points at TZif rule data used instead of the
	// system zoneinfo database.
	TimezoneFile string `yaml:"timezone_file"`

	WiFi WiFiConfig `yaml:"wifi"`

	CalendarURL string `yaml:"calendar_url"`
	// MaxEvents is the calendar output capacity.
	MaxEvents int `yaml:"max_events"`

	Todo    TodoConfig    `yaml:"todo"`
	Weather WeatherConfig `yaml:"weather"`

	NTPHost     string        `yaml:"ntp_host"`
	NTPInterval time.Duration `yaml:"ntp_interval"`

	// Refresh is an optional cron expression (robfig/cron standard syntax).
	// Empty means: every hour, one minute past.
	Refresh string `yaml:"refresh"`

	// FetchTimeout bounds every single network fetch.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// PoolSize is the number of concurrently usable sockets.
	PoolSize int `yaml:"pool_size"`

	// RetryAfterFault is how long the degraded state idles before the
	// supervised tasks are restarted.
	RetryAfterFault time.Duration `yaml:"retry_after_fault"`

	Display DisplayConfig `yaml:"display"`
	Battery BatteryConfig `yaml:"battery"`

	// Listen enables the status/preview HTTP server when non-empty.
	Listen string `yaml:"listen"`

	Log LogConfig `yaml:"log"`
}

const (
	defaultTimezone    = "Europe/Berlin"
	defaultNTPHost     = "pool.ntp.org"
	defaultWeatherBase = "https://api.open-meteo.com/v1/forecast"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		Weather: WeatherConfig{
			Latitude:  49.0068901,
			Longitude: 8.4036527,
		},
	}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.WiFi.Backend {
	case "nm", "interface":
		// ok
	default:
		c.WiFi.Backend = "nm"
	}
	if c.WiFi.Interface == "" {
		c.WiFi.Interface = "wlan0"
	}
	if c.WiFi.PollInterval <= 0 {
		c.WiFi.PollInterval = 10 * time.Second
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = 10
	}
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = defaultWeatherBase
	}
	if c.NTPHost == "" {
		c.NTPHost = defaultNTPHost
	}
	if c.NTPInterval <= 0 {
		c.NTPInterval = time.Hour
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.PoolSize <= 0 {
		// One slot for the HTTP client, one for the SNTP socket.
		c.PoolSize = 2
	}
	if c.RetryAfterFault <= 0 {
		c.RetryAfterFault = 15 * time.Minute
	}

	switch c.Display.Model {
	case "7in5v2", "2in13v4", "preview":
		// ok
	default:
		c.Display.Model = "preview"
	}
	if c.Display.PreviewDir == "" {
		c.Display.PreviewDir = "./var/preview"
	}
	// Waveshare e-Paper HAT defaults (BCM numbering).
	if c.Display.PinDC == 0 {
		c.Display.PinDC = 25
	}
	if c.Display.PinRST == 0 {
		c.Display.PinRST = 17
	}
	if c.Display.PinBusy == 0 {
		c.Display.PinBusy = 24
	}
	if c.Display.PinCS == 0 {
		c.Display.PinCS = 8
	}
	if c.Display.SettleDelay <= 0 {
		c.Display.SettleDelay = time.Second
	}
	if c.Display.Timeout <= 0 {
		c.Display.Timeout = 2 * time.Minute
	}

	if c.Battery.Address == 0 {
		c.Battery.Address = 0x57
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// ApplyEnv overrides secrets from the environment so they do not have to
// live in the YAML file.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("HOMEDASH_WIFI_PASSWORD"); ok {
		c.WiFi.Password = v
	}
	if v, ok := lookup("HOMEDASH_CALENDAR_URL"); ok {
		c.CalendarURL = v
	}
	if v, ok := lookup("HOMEDASH_TODO_AUTHORIZATION"); ok {
		c.Todo.Authorization = v
	}
}

// Validate reports configuration that cannot work at all.
func (c *Config) Validate() error {
	if c.CalendarURL == "" {
		return errors.New("config: calendar_url is required")
	}
	if c.WiFi.Backend == "nm" && c.WiFi.SSID == "" {
		return errors.New("config: wifi.ssid is required for the nm backend")
	}
	if c.Todo.URL != "" && c.Todo.Authorization == "" {
		return errors.New("config: todo.authorization is required when todo.url is set")
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".homedash-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
