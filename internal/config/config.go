// Package config loads catprint's settings from a TOML file, a .env file
// and CATPRINT_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"tomgalvin.uk/catprint/internal/printer"
	"tomgalvin.uk/catprint/internal/render"
)

const (
	CfgFile   = "catprint.toml"
	CfgEnv    = "CATPRINT_CONFIG"
	EnvPrefix = "CATPRINT_"

	TransportBluetooth = "bluetooth"
	TransportHCI       = "hci"
)

// Duration reads "15s" style strings from TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Print holds the defaults applied to print and preview requests that
// don't set their own.
type Print struct {
	Dither     string `toml:"dither"`
	Threshold  int    `toml:"threshold"`
	Brightness int    `toml:"brightness"`
	Contrast   int    `toml:"contrast"`
	Sharpen    int    `toml:"sharpen"`
	Energy     int    `toml:"energy"`
	FeedLines  int    `toml:"feed_lines"`
}

type Values struct {
	Listen       string   `toml:"listen"`
	Database     string   `toml:"database"`
	Transport    string   `toml:"transport"`
	DeviceName   string   `toml:"device_name,omitempty"`
	ScanTimeout  Duration `toml:"scan_timeout"`
	ChunkSize    int      `toml:"chunk_size"`
	DebugLogging bool     `toml:"debug_logging"`
	Print        Print    `toml:"print"`
}

func Defaults() Values {
	return Values{
		Listen:      "127.0.0.1:8080",
		Database:    "catprint.db",
		Transport:   TransportBluetooth,
		ScanTimeout: Duration{printer.DefaultScanTimeout},
		ChunkSize:   printer.DefaultChunkSize,
		Print: Print{
			Dither:    string(render.Atkinson),
			Threshold: render.DefaultThreshold,
			Energy:    printer.DefaultEnergy,
			FeedLines: printer.DefaultFeedLines,
		},
	}
}

// Path returns the config file to use: $CATPRINT_CONFIG if set, otherwise
// catprint.toml in dir.
func Path(dir string) string {
	if p := os.Getenv(CfgEnv); p != "" {
		return p
	}
	return filepath.Join(dir, CfgFile)
}

// LoadEnvFile loads variables from a .env file without overriding ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("Couldn't load %s:\n%w", path, err)
	}
	return nil
}

// Load reads the TOML file at path over the defaults, then applies the
// environment. A missing file leaves the defaults in place.
func Load(path string) (Values, error) {
	vals := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("No config file, using defaults", "path", path)
	case err != nil:
		return vals, fmt.Errorf("Couldn't read config file:\n%w", err)
	default:
		if err := toml.Unmarshal(data, &vals); err != nil {
			return vals, fmt.Errorf("Couldn't parse config file %s:\n%w", path, err)
		}
	}

	if err := applyEnv(&vals); err != nil {
		return vals, err
	}
	if err := vals.Validate(); err != nil {
		return vals, err
	}
	return vals, nil
}

// Save writes the values as TOML, creating the directory if needed.
func Save(path string, vals Values) error {
	data, err := toml.Marshal(&vals)
	if err != nil {
		return fmt.Errorf("Couldn't encode config:\n%w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("Couldn't create config directory:\n%w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("Couldn't write config file:\n%w", err)
	}
	return nil
}

func applyEnv(v *Values) error {
	str := func(key string, dst *string) {
		if s, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = s
		}
	}
	num := func(key string, dst *int) error {
		s, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("Invalid %s%s:\n%w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("LISTEN", &v.Listen)
	str("DATABASE", &v.Database)
	str("TRANSPORT", &v.Transport)
	str("DEVICE_NAME", &v.DeviceName)
	str("DITHER", &v.Print.Dither)

	if s, ok := os.LookupEnv(EnvPrefix + "SCAN_TIMEOUT"); ok {
		if err := v.ScanTimeout.UnmarshalText([]byte(s)); err != nil {
			return fmt.Errorf("Invalid %sSCAN_TIMEOUT:\n%w", EnvPrefix, err)
		}
	}
	if s, ok := os.LookupEnv(EnvPrefix + "DEBUG_LOGGING"); ok {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("Invalid %sDEBUG_LOGGING:\n%w", EnvPrefix, err)
		}
		v.DebugLogging = b
	}

	return errors.Join(
		num("CHUNK_SIZE", &v.ChunkSize),
		num("ENERGY", &v.Print.Energy),
		num("FEED_LINES", &v.Print.FeedLines),
	)
}

func (v Values) Validate() error {
	var errs []error
	if v.Transport != TransportBluetooth && v.Transport != TransportHCI {
		errs = append(errs, fmt.Errorf("transport must be %q or %q, not %q", TransportBluetooth, TransportHCI, v.Transport))
	}
	if v.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, not %d", v.ChunkSize))
	}
	if v.ScanTimeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("scan_timeout must be positive, not %v", v.ScanTimeout))
	}
	if _, err := render.ParseAlgorithm(v.Print.Dither); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("Invalid configuration:\n%w", err)
	}
	return nil
}

func (p Print) RenderOptions() render.Options {
	// Validate has already checked the name
	a, _ := render.ParseAlgorithm(p.Dither)
	return render.Options{
		Algorithm:  a,
		Threshold:  p.Threshold,
		Brightness: p.Brightness,
		Contrast:   p.Contrast,
		Sharpen:    p.Sharpen,
	}
}

func (p Print) PrintParams() printer.PrintParams {
	return printer.PrintParams{Energy: p.Energy, FeedLines: p.FeedLines}
}

func (v Values) DiscoveryOptions(logger *slog.Logger) printer.DiscoveryOptions {
	return printer.DiscoveryOptions{
		DeviceName:  v.DeviceName,
		ScanTimeout: v.ScanTimeout.Duration,
		Logger:      logger,
	}
}

func (v Values) LogLevel() slog.Level {
	if v.DebugLogging {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
