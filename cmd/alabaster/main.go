package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ArtifactDB/alabaster-go/pkg/config"
	"github.com/ArtifactDB/alabaster-go/pkg/legacy"
	"github.com/ArtifactDB/alabaster-go/pkg/logger"
	"github.com/ArtifactDB/alabaster-go/pkg/observability"
	"github.com/ArtifactDB/alabaster-go/pkg/registry"
	"github.com/ArtifactDB/alabaster-go/pkg/validate"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	var (
		configPath string
		logLevel   string
		maxDepth   int
	)

	root := &cobra.Command{
		Use:   "alabaster",
		Short: "Alabaster - object directory validation tooling",
		Long: `Alabaster validates on-disk object directories against their registered
type handlers, and checks legacy metadata graphs for referential consistency.`,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().IntVar(&maxDepth, "max-depth", 0, "maximum object nesting depth override")

	setup := func() (*config.Config, error) {
		cfg := config.Default()
		if configPath != "" {
			loaded, err := config.LoadFile(configPath)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if maxDepth > 0 {
			cfg.Validation.MaxDepth = maxDepth
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := logger.Init(cfg.Logger()); err != nil {
			return nil, err
		}
		if cfg.Tracing.Enabled {
			if err := observability.Init(cfg.Observability()); err != nil {
				return nil, err
			}
		}
		return cfg, nil
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Alabaster v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "validate <directory>",
		Short: "Validate an object directory in the current format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			v := validate.New(registry.Default(),
				validate.WithMaxDepth(cfg.Validation.MaxDepth))
			if err := v.Validate(context.Background(), args[0]); err != nil {
				return err
			}
			logger.Get().Info("directory is valid", zap.String("root", args[0]))
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "validate-legacy <directory>",
		Short: "Validate a directory in the legacy metadata-graph format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup(); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if err := legacy.ValidateDirectory(context.Background(), args[0]); err != nil {
				return err
			}
			logger.Get().Info("legacy directory is valid", zap.String("root", args[0]))
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
