package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opengovern/resilient-bridge/v2/adapters"
)

const defaultEnvFile = ".env"

var (
	// ErrParsingConfig is returned when the environment cannot be parsed into Config.
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	// ErrInvalidConfig is returned when a parsed value is out of range.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the server configuration.
type Config struct {
	Addr            string        `env:"BRIDGE_ADDR" envDefault:":8080"`
	WebhookPath     string        `env:"BRIDGE_WEBHOOK_PATH" envDefault:"/webhooks"`
	LogLevel        string        `env:"BRIDGE_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"BRIDGE_LOG_FORMAT" envDefault:"text"`
	ShutdownTimeout time.Duration `env:"BRIDGE_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// WebhookProviders limits the mounted providers. Empty mounts all of them.
	WebhookProviders []string `env:"BRIDGE_WEBHOOK_PROVIDERS" envSeparator:","`
	// AllowUnsigned mounts providers that have no secret configured. Their deliveries
	// are not authenticated.
	AllowUnsigned   bool `env:"BRIDGE_ALLOW_UNSIGNED"`
	ContinueOnError bool `env:"BRIDGE_CONTINUE_ON_ERROR"`

	Webhooks WebhookConfig
}

// WebhookConfig holds the verification material for each webhook provider.
type WebhookConfig struct {
	GitHubSecret     string `env:"GITHUB_WEBHOOK_SECRET"`
	SlackSecret      string `env:"SLACK_SIGNING_SECRET"`
	DiscordPublicKey string `env:"DISCORD_PUBLIC_KEY"`
	HubSpotSecret    string `env:"HUBSPOT_CLIENT_SECRET"`
	LinearSecret     string `env:"LINEAR_WEBHOOK_SECRET"`
}

func (w WebhookConfig) secrets() adapters.WebhookSecrets {
	return adapters.WebhookSecrets{
		GitHub:     w.GitHubSecret,
		Slack:      w.SlackSecret,
		DiscordKey: w.DiscordPublicKey,
		HubSpot:    w.HubSpotSecret,
		Linear:     w.LinearSecret,
	}
}

// LoadConfig reads envFiles (or .env when it exists and none are given) and parses the
// merged environment. Process environment variables override file values.
func LoadConfig(envFiles ...string) (Config, error) {
	environ, err := readEnvironment(envFiles)
	if err != nil {
		return Config{}, err
	}
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: environ})
	if err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readEnvironment(envFiles []string) (map[string]string, error) {
	merged := map[string]string{}
	files := envFiles
	if len(files) == 0 {
		files = []string{defaultEnvFile}
	}
	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			// The default file is optional.
			if len(envFiles) == 0 && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		for k, v := range values {
			merged[k] = v
		}
	}
	for k, v := range env.ToMap(os.Environ()) {
		merged[k] = v
	}
	return merged, nil
}

func (c Config) validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: BRIDGE_LOG_LEVEL: %v", ErrInvalidConfig, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: BRIDGE_LOG_FORMAT must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if !strings.HasPrefix(c.WebhookPath, "/") {
		return fmt.Errorf("%w: BRIDGE_WEBHOOK_PATH must start with /, got %q", ErrInvalidConfig, c.WebhookPath)
	}
	known := webhookProviderNames()
	for _, name := range c.WebhookProviders {
		if !slices.Contains(known, name) {
			return fmt.Errorf("%w: unknown webhook provider %q (known: %s)", ErrInvalidConfig, name, strings.Join(known, ", "))
		}
	}
	return nil
}

// mounts reports whether the named webhook provider is selected.
func (c Config) mounts(name string) bool {
	return len(c.WebhookProviders) == 0 || slices.Contains(c.WebhookProviders, name)
}

func webhookProviderNames() []string {
	var names []string
	for _, p := range adapters.WebhookProviders(adapters.WebhookSecrets{}) {
		names = append(names, p.Name())
	}
	return names
}

// newLogger builds the process logger from the config.
func newLogger(cfg Config, verbose bool) *log.Logger {
	logger := log.New()
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func newConfigCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective server configuration",
		Long: `Show the configuration "bridge serve" would run with. Secrets are not
printed; each webhook provider is reported as signed, unsigned or disabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(global.envFiles...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "addr:              %s\n", cfg.Addr)
			fmt.Fprintf(out, "webhook path:      %s\n", cfg.WebhookPath)
			fmt.Fprintf(out, "log:               %s (%s)\n", cfg.LogLevel, cfg.LogFormat)
			fmt.Fprintf(out, "shutdown timeout:  %s\n", cfg.ShutdownTimeout)
			fmt.Fprintf(out, "continue on error: %t\n", cfg.ContinueOnError)
			fmt.Fprintln(out, "webhook providers:")
			for _, p := range adapters.WebhookProviders(cfg.Webhooks.secrets()) {
				fmt.Fprintf(out, "  %-8s %s\n", p.Name(), providerState(cfg, p.Name(), signed(p)))
			}
			return nil
		},
	}
}

func providerState(cfg Config, name string, isSigned bool) string {
	switch {
	case !cfg.mounts(name):
		return "disabled"
	case isSigned:
		return "signed"
	case cfg.AllowUnsigned:
		return "unsigned"
	default:
		return "disabled (no secret)"
	}
}
