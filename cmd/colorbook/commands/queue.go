package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kidcolor/colorbook/internal/app"
	"github.com/kidcolor/colorbook/internal/offline"
	"github.com/kidcolor/colorbook/pkg/types"
)

var queueJSON bool

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect requests saved while offline",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved requests in the order they were made",
	Args:  cobra.NoArgs,
	RunE:  runQueueList,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard every saved request",
	Args:  cobra.NoArgs,
	RunE:  runQueueClear,
}

func init() {
	queueListCmd.Flags().BoolVar(&queueJSON, "json", false, "Output JSON")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueClearCmd)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, app.Options{SkipStartupCheck: true})
	if err != nil {
		return err
	}
	defer a.Close()

	reqs, err := a.Queue.ListAll(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if queueJSON {
		return writeJSON(out, reqs)
	}
	if len(reqs) == 0 {
		faint.Fprintln(out, "Nothing saved.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSAVED\tDETAILS")
	for _, req := range reqs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", req.ID, req.Type, req.CreatedAt.Local().Format("2006-01-02 15:04"), requestDetails(req))
	}
	return tw.Flush()
}

func requestDetails(req types.OfflineRequest) string {
	if req.Type == types.RequestSearch {
		var p types.SearchPayload
		if err := offline.DecodePayload(req, &p); err == nil {
			return fmt.Sprintf("%q", p.Query)
		}
	}
	return string(req.Payload)
}

func runQueueClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, app.Options{SkipStartupCheck: true})
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Queue.Len(ctx)
	if err != nil {
		return err
	}
	if err := a.Queue.Clear(ctx); err != nil {
		return err
	}
	success.Fprintf(cmd.OutOrStdout(), "Discarded %d saved request(s)\n", n)
	return nil
}
