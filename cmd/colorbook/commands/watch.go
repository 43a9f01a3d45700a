package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kidcolor/colorbook/internal/app"
	"github.com/kidcolor/colorbook/internal/event"
	"github.com/kidcolor/colorbook/internal/logging"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow connectivity and run saved requests on reconnect",
	Long: `Watch the connectivity status file. Each time it switches to online,
requests saved while offline are offered for replay. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	a, err := newApp(ctx, app.Options{SkipStartupCheck: true})
	if err != nil {
		return err
	}
	defer a.Close()

	notes, err := a.Bus.Notifications(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	a.Bus.Subscribe(event.ConnectivityChanged, func(e event.Event) {
		data := e.Data.(event.ConnectivityChangedData)
		state := "offline"
		if data.Online {
			state = "online"
		}
		fmt.Fprintf(out, "%s ", faint.Sprint(time.Now().Format("15:04:05")))
		accent.Fprintf(out, "now %s\n", state)
	})
	a.Bus.Subscribe(event.QueueCleared, func(e event.Event) {
		data := e.Data.(event.QueueClearedData)
		faint.Fprintf(out, "cleared %d saved request(s)\n", data.Count)
	})

	if err := a.Watch(); err != nil {
		return err
	}
	logging.Info().Str("path", a.StatusFile()).Msg("watching connectivity")
	printOnline(cmd, a.Monitor.Online())
	faint.Fprintf(out, "watching %s, ctrl+c to stop\n", a.StatusFile())
	a.CheckSavedRequests(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notes:
			if !ok {
				return nil
			}
			printNotification(os.Stderr, n)
		}
	}
}
