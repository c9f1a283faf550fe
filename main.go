package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"companystatus/config"
	"companystatus/logging"
	"companystatus/ml"
	"companystatus/pipeline"
)

var (
	configPath string
	modelPath  string
	logLevel   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:           "companystatus",
	Short:         "Predict whether a startup is operating, acquired, IPO'd or closed",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Configuration file (built-in defaults when absent)")
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "Model artifact path (overrides model.path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides log.level)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, falling back to defaults when it
// does not exist, and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if modelPath != "" {
		cfg.Model.Path = modelPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// setup loads configuration, the logger and the model, and builds the
// prediction pipeline shared by every command.
func setup() (*config.Config, *zap.Logger, zap.AtomicLevel, *pipeline.Pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, zap.AtomicLevel{}, nil, err
	}

	logger, level, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, level, nil, fmt.Errorf("init logger: %w", err)
	}

	loader := ml.NewLoader(cfg.Model.Path)
	model, err := loader.Load()
	if err != nil {
		logger.Error("model load failed", zap.String("path", loader.Path()), zap.Error(err))
		return nil, nil, level, nil, err
	}
	logger.Info("model loaded",
		zap.String("path", loader.Path()),
		zap.Int("features", len(model.FeatureNames())),
		zap.Strings("classes", model.ClassNames()),
	)

	p, err := pipeline.New(model, pipelineOptions(cfg), logger)
	if err != nil {
		return nil, nil, level, nil, fmt.Errorf("build pipeline: %w", err)
	}
	return cfg, logger, level, p, nil
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Schema: pipeline.SchemaOptions{
			CategoricalMarkers: cfg.Schema.CategoricalMarkers,
			Categorical:        cfg.Schema.Categorical,
			Numeric:            cfg.Schema.Numeric,
			Defaults:           cfg.Schema.Defaults,
			Descriptions:       cfg.Schema.Descriptions,
			Strict:             cfg.Schema.Strict,
		},
		Echo: pipeline.EchoPolicy(cfg.Export.Echo),
	}
}
