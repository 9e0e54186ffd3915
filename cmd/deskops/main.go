// Command deskops runs the IT-support ticket workflow server.
//
// Usage:
//
//	deskops serve --config config.yaml
//	deskops serve --provider anthropic --model claude-sonnet-4-20250514
//	deskops validate --config config.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/deskops-io/deskops/pkg/config"
	"github.com/deskops-io/deskops/pkg/knowledge"
	"github.com/deskops-io/deskops/pkg/llm"
	"github.com/deskops-io/deskops/pkg/ratelimit"
	"github.com/deskops-io/deskops/pkg/remediation"
	"github.com/deskops-io/deskops/pkg/server"
	"github.com/deskops-io/deskops/pkg/stages"
	"github.com/deskops-io/deskops/pkg/workflow"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the ticket workflow server."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("deskops version %s\n", version)
	return nil
}

// ServeCmd starts the workflow server.
type ServeCmd struct {
	// Zero-config options
	Provider string `help:"Model provider (anthropic, mock)."`
	Model    string `help:"Model name."`
	APIKey   string `name:"api-key" help:"API key (defaults to ANTHROPIC_API_KEY)."`
	Port     int    `help:"Port to listen on." default:"8080"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, err := c.loadConfig(cli.Config)
	if err != nil {
		return err
	}

	// Knowledge base with the built-in runbooks
	kb, err := knowledge.NewStore()
	if err != nil {
		return fmt.Errorf("failed to create knowledge store: %w", err)
	}
	if err := kb.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("failed to seed knowledge store: %w", err)
	}

	provider, err := buildProvider(&cfg.Model)
	if err != nil {
		return err
	}
	defer provider.Close()

	limiter, err := buildLimiter(&cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("failed to create rate limiter: %w", err)
	}

	var invokerOpts []llm.InvokerOption
	if est, err := llm.NewTokenEstimator(cfg.Model.Model); err != nil {
		slog.Warn("Token estimation disabled", "error", err)
	} else {
		invokerOpts = append(invokerOpts, llm.WithEstimator(est))
	}
	invoker := llm.NewInvoker(provider, limiter, llm.PolicyFromConfig(&cfg.Model), invokerOpts...)

	classifier, err := stages.NewClassifier(invoker, kb)
	if err != nil {
		return fmt.Errorf("failed to create classifier: %w", err)
	}
	validator, err := stages.NewValidator(invoker)
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}
	remediator, err := stages.NewRemediator(invoker, kb, remediation.NewEngine())
	if err != nil {
		return fmt.Errorf("failed to create remediator: %w", err)
	}

	orch, err := workflow.New(&cfg.Workflow, classifier, validator, remediator, workflow.NewMemoryStore())
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	srv := server.New(&cfg.Server, orch, limiter)

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown error", "error", err)
		}
	}()

	fmt.Printf("\ndeskops server ready\n")
	fmt.Printf("   Tickets:     http://%s/api/v1/tickets\n", cfg.Server.Address())
	fmt.Printf("   Rate limit:  http://%s/api/v1/ratelimit\n", cfg.Server.Address())
	fmt.Printf("   Health:      http://%s/healthz\n", cfg.Server.Address())
	fmt.Printf("   Metrics:     http://%s/metrics\n", cfg.Server.Address())
	fmt.Printf("   Model:       %s (%s)\n", cfg.Model.Model, cfg.Model.Provider)
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.ListenAndServe()
}

// loadConfig loads configuration from file or builds a zero-config from flags.
func (c *ServeCmd) loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		_ = config.LoadDotEnvForConfig(configPath)
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		slog.Info("Loaded configuration", "path", configPath)

		// Override port if explicitly specified
		if c.Port != 0 && c.Port != 8080 {
			cfg.Server.Port = c.Port
		}
		return cfg, nil
	}

	// Zero-config mode
	cfg := config.Default()
	if c.Provider != "" {
		cfg.Model.Provider = c.Provider
	}
	if c.Model != "" {
		cfg.Model.Model = c.Model
	}
	if c.APIKey != "" {
		cfg.Model.APIKey = c.APIKey
	}
	cfg.Server.Port = c.Port
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	slog.Info("Using zero-config mode", "provider", cfg.Model.Provider, "model", cfg.Model.Model)
	return cfg, nil
}

// buildProvider constructs the configured model provider. When the
// anthropic provider has no API key, the flag, config, and
// ANTHROPIC_API_KEY are all empty, so the server falls back to the mock
// provider rather than failing every ticket.
func buildProvider(cfg *config.ModelConfig) (llm.Provider, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	switch {
	case cfg.Provider == "mock":
		return &llm.MockProvider{Model: cfg.Model}, nil
	case cfg.APIKey == "":
		slog.Warn("No API key configured, using mock provider")
		return &llm.MockProvider{Model: cfg.Model}, nil
	default:
		return llm.NewAnthropicProvider(cfg)
	}
}

// buildLimiter constructs the plain or tiered limiter per configuration.
// The tiered variant is adapted to the invoker's single-caller surface.
func buildLimiter(cfg *config.RateLimitConfig) (llm.Limiter, error) {
	if cfg.Tiered.IsEnabled() {
		tiered, err := ratelimit.NewTiered(cfg)
		if err != nil {
			return nil, err
		}
		return &llm.CallerLimiter{Tiered: tiered, CallerID: "workflow"}, nil
	}
	return ratelimit.New(cfg)
}

// ValidateCmd validates a configuration file.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate command")
	}

	_ = config.LoadDotEnvForConfig(cli.Config)
	if _, err := config.Load(cli.Config); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Printf("Configuration %s is valid\n", cli.Config)
	return nil
}

func main() {
	_ = config.LoadDotEnv()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("deskops"),
		kong.Description("deskops - IT-support ticket workflow engine"),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
