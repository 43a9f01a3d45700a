package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kidcolor/colorbook/internal/app"
	"github.com/kidcolor/colorbook/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Offer to run searches saved while offline",
	Long: `Check the offline queue and, after confirmation, run every saved
request. Failed requests are reported and dropped; the queue is emptied once
the batch has been attempted.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	a, err := openApp(ctx, app.Options{SkipStartupCheck: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Monitor.Online() {
		warn.Fprintln(cmd.ErrOrStderr(), "You are offline; saved requests will run when you reconnect.")
		return nil
	}

	report, err := a.Sync.CheckOfflineQueue(ctx)
	if errors.Is(err, syncer.ErrBusy) {
		warn.Fprintln(cmd.ErrOrStderr(), "Saved requests are already being handled by another colorbook.")
		return nil
	}
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func printReport(w io.Writer, r syncer.Report) {
	switch {
	case r.Pending == 0:
		faint.Fprintln(w, "Nothing saved.")
	case !r.Confirmed:
		faint.Fprintf(w, "Kept %d saved request(s) for later.\n", r.Pending)
	default:
		success.Fprintf(w, "Ran %d of %d saved request(s)", len(r.Replayed), r.Pending)
		if n := len(r.Failed); n > 0 {
			failure.Fprintf(w, ", %d failed", n)
		}
		if n := len(r.Skipped); n > 0 {
			warn.Fprintf(w, ", %d skipped", n)
		}
		fmt.Fprintln(w)
	}
}
