// Package commands provides the CLI commands for colorbook.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs bool
	logLevel  string
	dataDir   string
	workDir   string
	assumeYes bool
)

var rootCmd = &cobra.Command{
	Use:   "colorbook",
	Short: "colorbook - a coloring book for your terminal",
	Long: `colorbook turns pictures into coloring pages and keeps your progress.

Run 'colorbook project create <file>' to start a page, 'colorbook edit <id>'
to color it, or 'colorbook search <query>' to find a picture online. Searches
made while offline are saved and offered again when you reconnect.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: XDG data dir)")
	rootCmd.PersistentFlags().StringVar(&workDir, "directory", "", "Directory to look for .colorbook config in")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to confirmation prompts")

	rootCmd.SetVersionTemplate(fmt.Sprintf("colorbook %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(netCmd)
	rootCmd.AddCommand(watchCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
