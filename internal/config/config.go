// Package config resolves server settings from flags, environment, an
// optional config file and a .env file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "BROWSER"

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// DefaultHTTPAddr is used when the http transport is chosen without an address
const DefaultHTTPAddr = ":8080"

// Keys
const (
	KeyConfigFile        = "config"
	KeyTransport         = "transport"
	KeyHTTPAddr          = "http_addr"
	KeyPublicURL         = "public_url"
	KeyScreenshotsDir    = "screenshots_dir"
	KeyRecordingsDir     = "recordings_dir"
	KeyDefaultRegion     = "default_region"
	KeyRegions           = "regions"
	KeyRegionCapacity    = "region_capacity"
	KeyBrowserImage      = "browser_image"
	KeyBrowserHost       = "browser_host"
	KeyBrowserReady      = "browser_ready_timeout"
	KeyCDPEndpoint       = "cdp_endpoint"
	KeyCDPHeaders        = "cdp_headers"
	KeySessionTimeout    = "session_timeout"
	KeyOperationTimeout  = "operation_timeout"
	KeyNavigationTimeout = "navigation_timeout"
	KeySweepInterval     = "sweep_interval"
	KeyReleaseTimeout    = "release_timeout"
	KeyRateLimit         = "rate_limit"
	KeyRateBurst         = "rate_burst"
	KeyInstallBrowsers   = "install_browsers"
)

// Config holds every server setting
type Config struct {
	Transport         string
	HTTPAddr          string
	PublicURL         string
	ScreenshotsDir    string
	RecordingsDir     string
	DefaultRegion     string
	Regions           []string
	RegionCapacity    int64
	BrowserImage      string
	BrowserHost       string
	BrowserReady      time.Duration
	CDPEndpoint       string
	CDPHeaders        map[string]string
	SessionTimeout    time.Duration
	OperationTimeout  time.Duration
	NavigationTimeout time.Duration
	SweepInterval     time.Duration
	ReleaseTimeout    time.Duration
	RateLimit         int
	RateBurst         int
	InstallBrowsers   bool
}

// New returns a viper instance with defaults and environment binding set up
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyTransport, TransportStdio)
	v.SetDefault(KeyHTTPAddr, "")
	v.SetDefault(KeyPublicURL, "")
	v.SetDefault(KeyScreenshotsDir, "screenshots")
	v.SetDefault(KeyRecordingsDir, "recordings")
	v.SetDefault(KeyDefaultRegion, "us-west-2")
	v.SetDefault(KeyRegions, []string{"us-west-2", "us-east-1", "eu-central-1"})
	v.SetDefault(KeyRegionCapacity, 10)
	v.SetDefault(KeyBrowserImage, "browserless/chrome:latest")
	v.SetDefault(KeyBrowserHost, "localhost")
	v.SetDefault(KeyBrowserReady, 10*time.Second)
	v.SetDefault(KeyCDPEndpoint, "")
	v.SetDefault(KeyCDPHeaders, "")
	v.SetDefault(KeySessionTimeout, time.Hour)
	v.SetDefault(KeyOperationTimeout, 30*time.Second)
	v.SetDefault(KeyNavigationTimeout, 60*time.Second)
	v.SetDefault(KeySweepInterval, time.Minute)
	v.SetDefault(KeyReleaseTimeout, 30*time.Second)
	v.SetDefault(KeyRateLimit, 100)
	v.SetDefault(KeyRateBurst, 10)
	v.SetDefault(KeyInstallBrowsers, false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	return v
}

// BindFlags registers the server flags on cmd and binds them into v
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.Flags()

	flags.String(KeyConfigFile, "", "Config file (yaml, json or toml)")
	flags.String(KeyTransport, v.GetString(KeyTransport), "Transport to serve tools on (stdio|http)")
	flags.String(KeyHTTPAddr, v.GetString(KeyHTTPAddr), "Address for the HTTP API and live view (default :8080 with --transport=http)")
	flags.String(KeyPublicURL, v.GetString(KeyPublicURL), "Externally reachable base URL used in live view links")
	flags.String(KeyScreenshotsDir, v.GetString(KeyScreenshotsDir), "Directory for screenshots taken without a path")
	flags.String(KeyRecordingsDir, v.GetString(KeyRecordingsDir), "Directory for archived session recordings")
	flags.String(KeyDefaultRegion, v.GetString(KeyDefaultRegion), "Region for sessions that do not name one")
	flags.StringSlice(KeyRegions, v.GetStringSlice(KeyRegions), "Regions with a browser pool")
	flags.Int64(KeyRegionCapacity, v.GetInt64(KeyRegionCapacity), "Maximum concurrent browsers per region (0 for unlimited)")
	flags.String(KeyBrowserImage, v.GetString(KeyBrowserImage), "Container image for browsers")
	flags.String(KeyBrowserHost, v.GetString(KeyBrowserHost), "Host the browser containers publish their CDP port on")
	flags.String(KeyCDPEndpoint, v.GetString(KeyCDPEndpoint), "Connect every session to this CDP websocket instead of launching containers")
	flags.Duration(KeyOperationTimeout, v.GetDuration(KeyOperationTimeout), "Deadline for a single page operation")
	flags.Duration(KeyNavigationTimeout, v.GetDuration(KeyNavigationTimeout), "Deadline for navigation")
	flags.Duration(KeySweepInterval, v.GetDuration(KeySweepInterval), "How often idle sessions are swept (0 disables the background sweep)")
	flags.Int(KeyRateLimit, v.GetInt(KeyRateLimit), "HTTP requests per minute per client (0 disables)")
	flags.Bool(KeyInstallBrowsers, v.GetBool(KeyInstallBrowsers), "Install the playwright driver on startup")

	return v.BindPFlags(flags)
}

// Load reads the .env file and optional config file, then resolves a Config
func Load(v *viper.Viper) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Transport:         strings.ToLower(v.GetString(KeyTransport)),
		HTTPAddr:          v.GetString(KeyHTTPAddr),
		PublicURL:         strings.TrimRight(v.GetString(KeyPublicURL), "/"),
		ScreenshotsDir:    v.GetString(KeyScreenshotsDir),
		RecordingsDir:     v.GetString(KeyRecordingsDir),
		DefaultRegion:     v.GetString(KeyDefaultRegion),
		Regions:           splitList(v.GetStringSlice(KeyRegions)),
		RegionCapacity:    v.GetInt64(KeyRegionCapacity),
		BrowserImage:      v.GetString(KeyBrowserImage),
		BrowserHost:       v.GetString(KeyBrowserHost),
		BrowserReady:      v.GetDuration(KeyBrowserReady),
		CDPEndpoint:       v.GetString(KeyCDPEndpoint),
		SessionTimeout:    v.GetDuration(KeySessionTimeout),
		OperationTimeout:  v.GetDuration(KeyOperationTimeout),
		NavigationTimeout: v.GetDuration(KeyNavigationTimeout),
		SweepInterval:     v.GetDuration(KeySweepInterval),
		ReleaseTimeout:    v.GetDuration(KeyReleaseTimeout),
		RateLimit:         v.GetInt(KeyRateLimit),
		RateBurst:         v.GetInt(KeyRateBurst),
		InstallBrowsers:   v.GetBool(KeyInstallBrowsers),
	}

	headers, err := parseHeaders(v.Get(KeyCDPHeaders))
	if err != nil {
		return nil, err
	}
	cfg.CDPHeaders = headers

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.HTTPAddr == "" {
			c.HTTPAddr = DefaultHTTPAddr
		}
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportStdio, TransportHTTP)
	}

	if c.SessionTimeout < time.Second {
		return errors.New("session_timeout must be at least 1s")
	}
	if c.OperationTimeout <= 0 || c.NavigationTimeout <= 0 {
		return errors.New("operation and navigation timeouts must be positive")
	}
	if c.CDPEndpoint == "" && len(c.Regions) == 0 {
		return errors.New("at least one region is required when no cdp_endpoint is set")
	}
	return nil
}

// splitList accepts both repeated values and comma separated ones
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseHeaders reads a map from a config file or "Name=value,Name=value"
// from the environment
func parseHeaders(raw any) (map[string]string, error) {
	headers := make(map[string]string)

	switch v := raw.(type) {
	case nil:
	case map[string]any:
		for k, val := range v {
			headers[k] = fmt.Sprint(val)
		}
	case map[string]string:
		for k, val := range v {
			headers[k] = val
		}
	case string:
		for _, pair := range splitList([]string{v}) {
			name, value, ok := strings.Cut(pair, "=")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("cdp_headers entry %q is not Name=value", pair)
			}
			headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	default:
		return nil, fmt.Errorf("cdp_headers has unsupported type %T", raw)
	}

	return headers, nil
}
