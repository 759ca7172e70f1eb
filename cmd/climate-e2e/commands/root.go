package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/logging"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	logLevelFlags []string // repeatable --log-level
)

var rootCmd = &cobra.Command{
	Use:   "climate-e2e",
	Short: "climate-e2e - end-to-end checks for the climate data portal",
	Long: `climate-e2e checks the AHCCD download scenarios of the climate data portal
against its OGC API - Features backend. The browser suite in tests/e2e drives the
same scenarios through the portal UI.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLog(logLevelFlags)
	},
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	// --log-level debug --log-level ahccd=warn --log-level poll.*=debug
	rootCmd.PersistentFlags().StringSliceVar(&logLevelFlags, "log-level",
		[]string{"info"},
		"Log level for packages. Use 'level' or 'default=level' for the default, 'package=level' per package.\n"+
			"Examples: --log-level debug, --log-level poll=debug --log-level oapif=warn")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(scenariosCmd)
}

// setupLog initializes logging from the flags and LOG_LEVEL_* environment variables.
// Flags win over the environment.
func setupLog(flags []string) error {
	defaultLevel, packageLevels, err := parseLogLevelFlags(flags)
	if err != nil {
		return err
	}
	return logging.Initialize(defaultLevel, packageLevels)
}

// parseLogLevelFlags merges LOG_LEVEL_* environment variables and --log-level flags
// into a default level and per-package levels.
//
// Flag forms: "debug", "default=info", "oapif=debug".
// Env form: LOG_LEVEL_OAPIF=debug (package name upper-cased, dots as underscores).
func parseLogLevelFlags(flags []string) (string, map[string]string, error) {
	levels := logging.PackageLevelsFromEnv()

	for _, flag := range flags {
		pkg, level, ok := strings.Cut(flag, "=")
		if !ok {
			levels["default"] = flag
			continue
		}
		levels[pkg] = level
	}

	defaultLevel := "info"
	if level, ok := levels["default"]; ok {
		defaultLevel = level
		delete(levels, "default")
	}

	if err := validateLogLevel(defaultLevel); err != nil {
		return "", nil, err
	}
	for pkg, level := range levels {
		if err := validateLogLevel(level); err != nil {
			return "", nil, fmt.Errorf("invalid log level for package %q: %v", pkg, err)
		}
	}

	return defaultLevel, levels, nil
}

func validateLogLevel(level string) error {
	if _, err := logging.ParseLevel(level); err != nil {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error, fatal)", level)
	}
	return nil
}
