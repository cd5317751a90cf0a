package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kengibson1111/go-gw2-story-progress/cache"
	"github.com/kengibson1111/go-gw2-story-progress/gw2"
	"github.com/kengibson1111/go-gw2-story-progress/internal"
	"github.com/kengibson1111/go-gw2-story-progress/progress"
)

const apiKeyEnv = "GW2_API_KEY"

var (
	// Global flags
	envFile      string
	apiKey       string
	rulesFile    string
	logLevel     string
	forceRefresh bool
	timeout      time.Duration

	// Built in PersistentPreRunE
	logger *zap.Logger
	config *internal.Config
	store  internal.Store
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gw2progress",
	Short: "Guild Wars 2 story progress per character",
	Long: `gw2progress reads completed quests for every character on a Guild Wars 2
account and reports which stories and seasons each character finished.

The API key is read from --api-key or GW2_API_KEY. Responses are cached for
an hour in the backend selected by GW2_CACHE_BACKEND (memory, redis, sqlite).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		config, err = internal.LoadConfig(envFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			config.Log.Level = logLevel
		}
		if rulesFile == "" {
			rulesFile = config.RulesFile
		}

		logger, err = internal.NewLogger(config.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		store, err = internal.OpenStore(cmd.Context(), config)
		if err != nil {
			return fmt.Errorf("failed to open %s cache: %w", config.CacheBackend, err)
		}
		logger.Debug("cache store ready", zap.String("backend", config.CacheBackend))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			if err := store.Close(); err != nil && logger != nil {
				logger.Warn("failed to close cache store", zap.Error(err))
			}
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "GW2 API key (or set "+apiKeyEnv+")")
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "YAML file with status and phase rules (or set GW2_RULES_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&forceRefresh, "force", false, "Bypass cached responses")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheForgetCmd)
	cacheCmd.AddCommand(cacheHealthCmd)

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(charactersCmd)
	rootCmd.AddCommand(storiesCmd)
	rootCmd.AddCommand(seasonsCmd)
	rootCmd.AddCommand(phasesCmd)
	rootCmd.AddCommand(cacheCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// operationContext bounds a command by --timeout
func operationContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func newClient() *gw2.Client {
	return gw2.NewClient(
		gw2.WithBaseURL(config.APIBase),
		gw2.WithRequestInterval(config.RequestInterval),
		gw2.WithHTTPClient(newHTTPClient(config.HTTPTimeout)),
		gw2.WithLogger(logger.Named("gw2")),
	)
}

func newService(client progress.API) *progress.Service {
	c := cache.New(store, cache.WithLogger(logger.Named("cache")))
	return progress.NewService(client, c,
		progress.WithServiceLogger(logger.Named("progress")),
		progress.WithProgress(func(step string, current, total int) {
			logger.Debug("loading", zap.String("step", step), zap.Int("current", current), zap.Int("total", total))
		}),
	)
}

// credentials returns the access token from --api-key or the environment
func credentials() (string, error) {
	creds := progress.NewEnvCredentials(apiKeyEnv)
	if apiKey != "" {
		creds.SetToken(apiKey)
	}
	token, ok := creds.Token()
	if !ok {
		return "", fmt.Errorf("no API key: pass --api-key or set %s", apiKeyEnv)
	}
	return token, nil
}

func newSession() (*progress.Session, error) {
	token, err := credentials()
	if err != nil {
		return nil, err
	}

	rules, err := progress.LoadRules(rulesFile)
	if err != nil {
		return nil, err
	}

	return progress.NewSession(newService(newClient()), token, rules)
}
