package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/kidcolor/colorbook/internal/app"
	"github.com/kidcolor/colorbook/internal/syncer"
)

var netCmd = &cobra.Command{
	Use:   "net",
	Short: "Report or change connectivity",
	Long: `colorbook learns about connectivity from a status file under the state
directory containing "online" or "offline". A running 'colorbook watch'
follows the file; these commands write it.`,
}

var netOnlineCmd = &cobra.Command{
	Use:   "online",
	Short: "Mark the device online and offer saved requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNetSet(cmd, true)
	},
}

var netOfflineCmd = &cobra.Command{
	Use:   "offline",
	Short: "Mark the device offline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNetSet(cmd, false)
	},
}

var netStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity",
	Args:  cobra.NoArgs,
	RunE:  runNetStatus,
}

func init() {
	netCmd.AddCommand(netOnlineCmd)
	netCmd.AddCommand(netOfflineCmd)
	netCmd.AddCommand(netStatusCmd)
}

func runNetSet(cmd *cobra.Command, online bool) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	a, err := openApp(ctx, app.Options{SkipStartupCheck: true})
	if err != nil {
		return err
	}
	defer a.Close()

	changed, err := a.SetOnline(online)
	if err != nil {
		return err
	}
	printOnline(cmd, online)

	// a transition to online runs the queue check in the background
	a.Sync.Wait()
	if online && !changed {
		report, err := a.Sync.CheckOfflineQueue(ctx)
		if errors.Is(err, syncer.ErrBusy) {
			return nil
		}
		if err != nil {
			return err
		}
		if report.Pending > 0 {
			printReport(cmd.OutOrStdout(), report)
		}
	}
	return nil
}

func runNetStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), app.Options{SkipStartupCheck: true})
	if err != nil {
		return err
	}
	defer a.Close()

	printOnline(cmd, a.Monitor.Online())
	faint.Fprintln(cmd.OutOrStdout(), a.StatusFile())
	return nil
}

func printOnline(cmd *cobra.Command, online bool) {
	if online {
		success.Fprintln(cmd.OutOrStdout(), "online")
		return
	}
	warn.Fprintln(cmd.OutOrStdout(), "offline")
}
