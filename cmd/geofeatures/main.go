package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/epigeo/geofeatures/internal/infrastructure/config"
	"github.com/epigeo/geofeatures/internal/infrastructure/logging"
)

var rootCmd = &cobra.Command{
	Use:   "geofeatures",
	Short: "Geographic feature extraction for epidemiological modelling",
	Long: `geofeatures derives spatial predictors from rasters and polygon
collections: zonal summaries, covering grids and Climate Data Store
retrievals such as the ESA CCI land-cover product.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// newLogger builds the process logger from environment configuration. The
// --verbose flag overrides the configured level.
func newLogger(cmd *cobra.Command) (*logging.Logger, *config.Config) {
	cfg := config.LoadOrDefault()

	logCfg := logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logCfg.Level = "debug"
	}

	log, err := logging.New(logCfg)
	if err != nil {
		log = logging.NewDefault()
		log.Warn("invalid log configuration, using defaults")
	}
	return log, cfg
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	// Accept underscores in flag names for parity with the environment
	// variable spelling.
	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
