package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of all environment variables read by Load.
const EnvPrefix = "ODATA"

// Config holds all configuration options of the restrictions tool
type Config struct {
	// Metadata source, exactly one of the two
	ServiceURL   string `mapstructure:"service_url"`
	MetadataFile string `mapstructure:"metadata_file"`
	SAPClient    string `mapstructure:"sap_client"`

	// Authentication
	Username     string            `mapstructure:"username"`
	Password     string            `mapstructure:"password"`
	CookieFile   string            `mapstructure:"cookie_file"`
	CookieString string            `mapstructure:"cookie_string"`
	Cookies      map[string]string `mapstructure:"-"` // Parsed cookies

	// Condition synthesis
	UseSemanticDateRange bool   `mapstructure:"semantic_date_range"`
	SettingsFile         string `mapstructure:"settings_file"` // Filter field settings JSON

	// Retry behavior for metadata requests
	MaxRetries        int     `mapstructure:"max_retries"`
	InitialBackoffMs  int     `mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int     `mapstructure:"max_backoff_ms"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`

	// Output and debugging
	Verbose bool `mapstructure:"verbose"`
	Trace   bool `mapstructure:"trace"`
}

var defaults = map[string]any{
	"service_url":         "",
	"metadata_file":       "",
	"sap_client":          "",
	"username":            "",
	"password":            "",
	"cookie_file":         "",
	"cookie_string":       "",
	"semantic_date_range": false,
	"settings_file":       "",
	"max_retries":         3,
	"initial_backoff_ms":  100,
	"max_backoff_ms":      10000,
	"backoff_multiplier":  2.0,
	"verbose":             false,
	"trace":               false,
}

// NewViper returns a viper instance that knows every configuration key and
// reads ODATA_* environment variables. ODATA_URL, ODATA_USER and ODATA_PASS
// are accepted as aliases.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.BindEnv("service_url", EnvPrefix+"_SERVICE_URL", EnvPrefix+"_URL")
	v.BindEnv("username", EnvPrefix+"_USERNAME", EnvPrefix+"_USER")
	v.BindEnv("password", EnvPrefix+"_PASSWORD", EnvPrefix+"_PASS")
	return v
}

// Load decodes the configuration from v, resolves cookie authentication and
// validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.ResolveAuthentication(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the metadata source and retry settings.
func (c *Config) Validate() error {
	switch {
	case c.ServiceURL == "" && c.MetadataFile == "":
		return errors.New("metadata source not provided. Use --metadata-file, --service or the ODATA_URL environment variable")
	case c.ServiceURL != "" && c.MetadataFile != "":
		return errors.New("--metadata-file and --service cannot be used at the same time")
	case c.MaxRetries < 0:
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	case c.InitialBackoffMs < 0 || c.MaxBackoffMs < c.InitialBackoffMs:
		return fmt.Errorf("invalid backoff range %dms..%dms", c.InitialBackoffMs, c.MaxBackoffMs)
	case c.BackoffMultiplier < 1:
		return fmt.Errorf("backoff multiplier must be at least 1, got %v", c.BackoffMultiplier)
	}
	return nil
}

// ResolveAuthentication checks that at most one authentication method is
// configured and parses cookies from the cookie file or cookie string.
func (c *Config) ResolveAuthentication() error {
	authMethods := 0
	for _, set := range []bool{c.CookieFile != "", c.CookieString != "", c.Username != ""} {
		if set {
			authMethods++
		}
	}
	if authMethods > 1 {
		return errors.New("only one authentication method can be used at a time")
	}

	switch {
	case c.CookieFile != "":
		if _, err := os.Stat(c.CookieFile); os.IsNotExist(err) {
			return fmt.Errorf("cookie file not found: %s", c.CookieFile)
		}
		cookies, err := LoadCookiesFromFile(c.CookieFile)
		if err != nil {
			return fmt.Errorf("failed to load cookies from file: %w", err)
		}
		c.Cookies = cookies
	case c.CookieString != "":
		cookies := ParseCookieString(c.CookieString)
		if len(cookies) == 0 {
			return errors.New("failed to parse cookie string")
		}
		c.Cookies = cookies
	case c.Username != "" && c.Password == "":
		return fmt.Errorf("password missing for user %s", c.Username)
	}
	return nil
}

// HasBasicAuth returns true if username and password are configured
func (c *Config) HasBasicAuth() bool {
	return c.Username != "" && c.Password != ""
}

// HasCookieAuth returns true if cookies are configured
func (c *Config) HasCookieAuth() bool {
	return len(c.Cookies) > 0
}

// LoadCookiesFromFile reads cookies in Netscape format, falling back to
// name=value lines.
func LoadCookiesFromFile(cookieFile string) (map[string]string, error) {
	cookies := make(map[string]string)

	file, err := os.Open(cookieFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// domain, flag, path, secure, expiration, name, value
		if parts := strings.Split(line, "\t"); len(parts) >= 7 {
			cookies[parts[5]] = parts[6]
			continue
		}
		if name, value, ok := strings.Cut(line, "="); ok {
			cookies[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}

	return cookies, scanner.Err()
}

// ParseCookieString parses "key1=val1; key2=val2".
func ParseCookieString(cookieString string) map[string]string {
	cookies := make(map[string]string)
	for _, cookie := range strings.Split(cookieString, ";") {
		if name, value, ok := strings.Cut(strings.TrimSpace(cookie), "="); ok {
			cookies[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
	return cookies
}
