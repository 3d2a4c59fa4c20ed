package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/config"
	logpkg "github.com/kailas-cloud/clinrag/internal/logger"
)

var (
	configPath string
	envName    string
)

var rootCmd = &cobra.Command{
	Use:   "clinrag",
	Short: "Clinical evidence retrieval for note drafting",
	Long: `clinrag chunks clinical guidelines, calculator documentation and literature
along their structure, stores the chunks with their embeddings in a graph, and
retrieves the most relevant evidence for a query with hybrid search, reranking,
MMR diversification and graph expansion.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default config/<env>.yaml)")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "environment name (default $ENV or local)")
}

// loadConfig resolves the config file from --config, --env or $ENV.
func loadConfig() (config.Config, string, error) {
	env := envName
	if env == "" {
		env = config.GetEnv()
	}

	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, env, nil
}

// setup loads the config and builds the logger every command starts from.
func setup() (config.Config, *zap.Logger, error) {
	cfg, env, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}
