package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/miradorstack/instana-sre/internal/actions"
	"github.com/miradorstack/instana-sre/internal/cache"
	"github.com/miradorstack/instana-sre/internal/config"
	"github.com/miradorstack/instana-sre/internal/engine"
	"github.com/miradorstack/instana-sre/internal/metrics"
	"github.com/miradorstack/instana-sre/internal/repo"
	"github.com/miradorstack/instana-sre/internal/retry"
	"github.com/miradorstack/instana-sre/internal/utils"
)

const Version = "1.0.0"

var (
	configPath string
	envFile    string
	logLevel   string
	incidentID int
)

var rootCmd = &cobra.Command{
	Use:   "instana-sre",
	Short: "Instana SRE toolkit",
	Long: `instana-sre enriches Instana probable root causes with entity labels,
toggles application alert configurations, and asks the Instana AI action
endpoints for recommended and remediation actions.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&incidentID, "incident-id", -1, "Narrow incidents to the selector profile of this incident id")

	rootCmd.AddCommand(prcCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(actionsCmd)
	rootCmd.AddCommand(serveCmd)
}

// HandleError prints error and exits
func HandleError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}

// runtime holds what every command builds from the loaded configuration.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	cache  cache.Provider
	client *repo.InstanaClient
}

// setup loads the configuration, applies flag overrides and builds the shared client.
func setup(requireApplication bool, overrides ...func(*config.Config)) (*runtime, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if incidentID >= 0 {
		id := incidentID
		cfg.Filters.IncidentID = &id
	}
	for _, override := range overrides {
		override(cfg)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}

	validate := cfg.Validate
	if requireApplication {
		validate = cfg.ValidateAlerts
	}
	if err := validate(); err != nil {
		return nil, err
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	provider, err := cache.New(cache.Options{
		Enabled: cfg.Cache.Enabled,
		Backend: cfg.Cache.Backend,
		Size:    cfg.Cache.Size,
		TTL:     cfg.Cache.TTL,
		Valkey: cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		},
	})
	if err != nil {
		logger.Warn("label cache unavailable", slog.String("backend", cfg.Cache.Backend), slog.Any("error", err))
		provider = cache.NoopProvider{}
	}

	client := repo.NewInstanaClient(repo.ClientOptions{
		BaseURL:   cfg.Instana.BaseURL,
		APIToken:  cfg.Instana.APIToken,
		Timeout:   cfg.Instana.Timeout,
		RateLimit: cfg.Instana.RateLimit,
		Burst:     cfg.Instana.Burst,
		Cache:     provider,
		CacheTTL:  cfg.Cache.TTL,
		Logger:    logger,
	})

	return &runtime{cfg: cfg, logger: logger, cache: provider, client: client}, nil
}

func (r *runtime) Close() {
	if err := r.cache.Close(); err != nil {
		r.logger.Warn("close cache", slog.Any("error", err))
	}
}

func (r *runtime) resolver() *engine.LabelResolver {
	return engine.NewLabelResolver(r.client, r.logger, r.cfg.Enrichment.RetrievalSize)
}

func (r *runtime) pipeline(outputPath string) *engine.Pipeline {
	enricher := engine.NewEnricher(r.resolver(), r.logger, r.cfg.Enrichment.MaxConcurrency)
	filters := r.cfg.Filters
	return engine.NewPipeline(r.logger, r.client, enricher, engine.PipelineOptions{
		Filter:         engine.NewIncidentFilter(filters.PRC, filters.Selectors, filters.IncidentID),
		IncidentID:     filters.IncidentID,
		OutputPath:     outputPath,
		MaxConcurrency: r.cfg.Enrichment.MaxConcurrency,
	})
}

func (r *runtime) actionOptions(outputPath string) actions.Options {
	filters := r.cfg.Filters
	return actions.Options{
		Filter:     engine.NewIncidentFilter(filters.Actions, filters.Selectors, filters.IncidentID),
		IncidentID: filters.IncidentID,
		OutputPath: outputPath,
		Retry:      retry.FromConfig(r.cfg.Actions.Retry),
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
