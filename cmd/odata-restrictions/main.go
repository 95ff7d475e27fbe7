package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zmcp/odata-filter-restrictions/internal/client"
	"github.com/zmcp/odata-filter-restrictions/internal/config"
	"github.com/zmcp/odata-filter-restrictions/internal/debug"
	"github.com/zmcp/odata-filter-restrictions/internal/metadata"
	"github.com/zmcp/odata-filter-restrictions/internal/operators"
)

// app carries the state shared by all subcommands once the root command
// has loaded configuration and metadata.
type app struct {
	v        *viper.Viper
	cfg      *config.Config
	logger   *slog.Logger
	trace    *debug.Trace
	model    *metadata.Model
	settings *operators.Settings
}

// flag name -> configuration key
var flagKeys = map[string]string{
	"service":             "service_url",
	"metadata-file":       "metadata_file",
	"sap-client":          "sap_client",
	"user":                "username",
	"password":            "password",
	"cookie-file":         "cookie_file",
	"cookie-string":       "cookie_string",
	"semantic-date-range": "semantic_date_range",
	"settings-file":       "settings_file",
	"max-retries":         "max_retries",
	"initial-backoff-ms":  "initial_backoff_ms",
	"max-backoff-ms":      "max_backoff_ms",
	"backoff-multiplier":  "backoff_multiplier",
	"verbose":             "verbose",
	"trace":               "trace",
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:   "odata-restrictions",
		Short: "Resolve OData filter restrictions and synthesize filter conditions",
		Long: `Resolve OData filter restrictions and synthesize filter conditions.

Reads capability annotations (filter, search, navigation, insert and update
restrictions) from service metadata, decides which properties are filterable
and with which operators, and converts selection variants into filter
conditions and back.

Examples:
  odata-restrictions --metadata-file service.xml restrictions /Orders
  odata-restrictions --service https://my-sap-service.com/sap/opu/odata4/sap/SRV/ filterable /Orders Status
  odata-restrictions --metadata-file service.xml operators /Orders OrderDate --semantic-date-range
  odata-restrictions --metadata-file service.xml conditions /Orders variant.json`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("service", "", "URL of the OData service (overrides ODATA_SERVICE_URL / ODATA_URL env vars)")
	flags.String("metadata-file", "", "Read metadata from a local EDMX file instead of the service")
	flags.String("sap-client", "", "SAP client sent as sap-client query parameter")
	flags.StringP("user", "u", "", "Username for basic authentication (overrides ODATA_USERNAME env var)")
	flags.StringP("password", "p", "", "Password for basic authentication (overrides ODATA_PASSWORD env var)")
	flags.String("cookie-file", "", "Path to cookie file in Netscape format")
	flags.String("cookie-string", "", "Cookie string (key1=val1; key2=val2)")
	flags.Bool("semantic-date-range", false, "Offer and accept semantic date operators for date properties")
	flags.String("settings-file", "", "Filter field settings JSON with an operatorConfiguration")
	flags.Int("max-retries", 3, "Maximum number of retries for metadata requests")
	flags.Int("initial-backoff-ms", 100, "Initial retry backoff in milliseconds")
	flags.Int("max-backoff-ms", 10000, "Maximum retry backoff in milliseconds")
	flags.Float64("backoff-multiplier", 2.0, "Multiplier for exponential backoff")
	flags.BoolP("verbose", "v", false, "Enable verbose output to stderr")
	flags.Bool("trace", false, "Write debug logs as JSON lines to a trace file in the temp directory")

	for name, key := range flagKeys {
		a.v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(
		a.restrictionsCmd(),
		a.capabilitiesCmd(),
		a.filterableCmd(),
		a.operatorsCmd(),
		a.requiredCmd(),
		a.conditionsCmd(),
		a.externalizeCmd(),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if cfg.Trace {
		trace, err := debug.NewTrace()
		if err != nil {
			return err
		}
		a.trace = trace
		fmt.Fprintf(cmd.ErrOrStderr(), "Trace file: %s\n", trace.Filename())
	}
	a.logger = debug.NewLogger(cmd.ErrOrStderr(), cfg.Verbose, a.trace)

	if cfg.SettingsFile != "" {
		data, err := os.ReadFile(cfg.SettingsFile)
		if err != nil {
			return fmt.Errorf("failed to read settings file: %w", err)
		}
		if a.settings, err = operators.ParseSettings(data); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	model, err := a.loadModel(ctx)
	if err != nil {
		return err
	}
	a.model = model
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) error {
	if a.trace != nil {
		return a.trace.Close()
	}
	return nil
}

func (a *app) loadModel(ctx context.Context) (*metadata.Model, error) {
	if a.cfg.MetadataFile != "" {
		data, err := os.ReadFile(a.cfg.MetadataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata file: %w", err)
		}
		model, err := metadata.Load(data, "")
		if err != nil {
			return nil, fmt.Errorf("failed to parse metadata file %s: %w", a.cfg.MetadataFile, err)
		}
		a.logger.Debug("loaded metadata file", "file", a.cfg.MetadataFile)
		return model, nil
	}

	c := client.New(a.cfg.ServiceURL, a.logger)
	if a.cfg.HasBasicAuth() {
		a.logger.Debug("using basic authentication", "user", a.cfg.Username)
		c.SetBasicAuth(a.cfg.Username, a.cfg.Password)
	}
	if a.cfg.HasCookieAuth() {
		a.logger.Debug("using cookie authentication", "cookies", len(a.cfg.Cookies))
		c.SetCookies(a.cfg.Cookies)
	}
	if a.cfg.SAPClient != "" {
		c.SetQueryParam("sap-client", a.cfg.SAPClient)
	}
	c.ConfigureRetry(a.cfg.MaxRetries, a.cfg.InitialBackoffMs, a.cfg.MaxBackoffMs, a.cfg.BackoffMultiplier)

	model, err := c.LoadModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata from %s: %w", debug.MaskURL(a.cfg.ServiceURL), err)
	}
	return model, nil
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func main() {
	// Load .env file if it exists
	godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
