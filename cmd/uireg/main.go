package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/uireg/internal/config"
	"github.com/vango-dev/uireg/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┬ ┬┬┬─┐┌─┐┌─┐
  │ ││├┬┘├┤ │ ┬
  └─┘┴┴└─└─┘└─┘
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	rootCmd := &cobra.Command{
		Use:   "uireg",
		Short: "A registry for React UI components",
		Long: `uireg runs a registry where authors publish React components.

Authors paste a component and a demo, resolve its imports, preview it
live and publish it under their username. Readers search the registry
and install components with a single URL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "",
		"Directory containing uireg.json (default: search upwards from the working directory)")

	load := func() (*config.Config, error) {
		return loadConfig(configDir)
	}

	rootCmd.AddCommand(
		serveCmd(load),
		migrateCmd(load),
		analyzeCmd(load),
		previewCmd(load),
		searchCmd(load),
		initCmd(),
		versionCmd(),
	)
	return rootCmd
}

// loadConfig loads uireg.json from dir, or from the nearest project root
// when dir is empty, and validates it.
func loadConfig(dir string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if dir != "" {
		cfg, err = config.Load(dir)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// printBanner prints the uireg ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
