package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"

	// Global flags
	apiURL       string
	storeBackend backendFlag
	sessionID    string
	outputFormat string
	debug        bool
	noPreview    bool

	// Watch flags
	watchExisting bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var showVersion bool
	storeBackend = ""

	rootCmd := &cobra.Command{
		Use:   "huskytrace",
		Short: "Image metadata inspector",
		Long: `huskytrace - Send a PNG or JPEG image to an analysis service and
show what it found: camera, settings, dates and where the photo was taken.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(cmd)
				return nil
			}
			// Show help if no subcommand is provided
			return cmd.Help()
		},
	}

	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "version for huskytrace")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&apiURL, "api-url", "", "Analysis service base URL (default from config)")
	flags.Var(&storeBackend, "store", "Handoff store: memory, sqlite, redis")
	flags.StringVar(&sessionID, "session", "", "Session id (default: one per terminal)")
	flags.StringVar(&outputFormat, "format", "", "Output format: text, markdown, json or a template name")
	flags.BoolVar(&debug, "debug", false, "Log debug output to stderr")
	flags.BoolVar(&noPreview, "no-preview", false, "Do not show the inline image preview")

	// Analyze command (the file picker)
	analyzeCmd := &cobra.Command{
		Use:   "analyze [image]",
		Short: "Analyze an image and show the results",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeCommand,
	}

	// Drop command (text a terminal pastes when a file is dragged onto it)
	dropCmd := &cobra.Command{
		Use:   "drop [dropped text]",
		Short: "Analyze a dragged-and-dropped file",
		Args:  cobra.MinimumNArgs(1),
		RunE:  dropCommand,
	}

	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "Show the last result of this session",
		Args:  cobra.NoArgs,
		RunE:  resultsCommand,
	}

	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive intake and results screens",
		Args:  cobra.NoArgs,
		RunE:  shellCommand,
	}

	watchCmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Analyze images as they are saved into a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  watchCommand,
	}
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "Also analyze images already in the directory")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Speak the JSON protocol on stdin/stdout for a GUI",
		Args:  cobra.NoArgs,
		RunE:  serveCommand,
	}

	// Config command
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Show configuration",
		RunE:  configShowCommand,
	}

	configSetCmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE:  configSetCommand,
	}

	configCmd.AddCommand(configShowCmd, configSetCmd)

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd)
		},
	}

	// Add commands to root
	rootCmd.AddCommand(analyzeCmd, dropCmd, resultsCmd, shellCmd, watchCmd, serveCmd, configCmd, versionCmd)

	return rootCmd
}

func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "huskytrace version %s\n", version)
	if version != "dev" {
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	}
}
