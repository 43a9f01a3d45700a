package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/kidcolor/colorbook/internal/app"
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Find a picture to color",
	Long: `Search for a picture online. With a vectorizer configured the best
match becomes a new project; otherwise its address is printed.

While offline the search is saved and offered again on reconnect.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	a, err := openApp(ctx, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if out.Project != nil {
		faint.Fprintf(cmd.OutOrStdout(), "Open it with: colorbook edit %s\n", out.Project.ID)
	}
	return nil
}
