package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cleanrag/internal/config"
	"cleanrag/internal/logging"
)

var (
	cfgPath string
	verbose bool

	cfg    *config.AppConfig
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cleanrag",
	Short: "Laundry advice chat backed by retrieval-augmented generation",
	Long: `cleanrag answers laundry and stain-removal questions as a veteran
cleaner would, grounded in a knowledge index, and recommends partner shops
when home treatment is risky.

Secrets are read from the environment (a .env file is loaded if present).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		if cfgPath == "" {
			var path string
			cfg, path, err = config.LoadDefault()
			if err == nil && verbose {
				fmt.Fprintln(os.Stderr, "using config", path)
			}
		} else {
			cfg, err = config.Load(cfgPath)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger, err = logging.New(cfg.Environment, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (default: ./config.yaml or ~/.config/cleanrag/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	askCmd.Flags().StringVar(&askZipcode, "zipcode", "", "Restrict shop recommendations to this zipcode")
	seedCmd.Flags().StringVar(&seedIndex, "index", "", "Only seed this index: knowledge or providers")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
