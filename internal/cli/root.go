// Package cli provides wallhue's command-line interface, grounded on
// tinct/internal/cli/root.go's rootCmd/persistent-flags/subcommand
// registration idiom.
package cli

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmylchreest/wallhue/internal/config"
)

var (
	configPath string
	verbose    bool
	quiet      bool

	sharedLog hclog.Logger

	rootCmd = &cobra.Command{
		Use:   "wallhue",
		Short: "Extract color palettes from wallpapers and apply them system-wide",
		Long: `wallhue derives a 16-color palette and a set of effect-applied wallpaper
variants from a source image, caches the results, and applies the wallpaper
through a pluggable output interface.`,
		SilenceUsage: true,
	}
)

// Execute runs the root command; called from main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: $HOME/.config/wallhue/wallhue.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger() hclog.Logger {
	level := hclog.Info
	if verbose {
		level = hclog.Debug
	}
	if quiet {
		level = hclog.Error
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "wallhue",
		Level:  level,
		Color:  colorOption(),
		Output: os.Stderr,
	})
}

// colorOption mirrors tinct's tty-aware color decision: only emit ANSI
// color codes when stderr is actually a terminal.
func colorOption() hclog.ColorOption {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return hclog.AutoColor
	}
	return hclog.ColorOff
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("wallhue (development build)")
	},
}
