package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kidcolor/colorbook/internal/app"
	"github.com/kidcolor/colorbook/internal/editor"
	"github.com/kidcolor/colorbook/internal/snapshot"
	"github.com/kidcolor/colorbook/pkg/types"
)

const editHelp = `Editor commands:
  select <n>        Select palette color n
  paint <region>    Paint a region with the selected color
  undo              Undo the last edit
  redo              Redo the last undone edit
  save              Retry saving progress
  status            Show the page
  help              Show this message
  quit              Leave the editor`

var editCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Color a project",
	Long: `Open a project in the line editor. Without an id the last opened
project is used.

` + editHelp,
	Args: cobra.MaximumNArgs(1),
	RunE: runEdit,
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a, err := openApp(ctx, app.Options{Renderer: summaryRenderer(out)})
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		if err := a.Editor.Open(ctx, args[0]); err != nil {
			return err
		}
	} else {
		opened, err := a.OpenLast(ctx)
		if err != nil {
			return err
		}
		if !opened {
			return errors.New("no project to continue; pass a project id")
		}
	}

	return editLoop(ctx, a.Editor, cmd.InOrStdin(), out)
}

// summaryRenderer prints a one line progress summary after every change.
func summaryRenderer(w io.Writer) editor.RenderFunc {
	return func(p *types.Project, s snapshot.Snapshot) {
		faint.Fprintf(w, "%s: %d of %d regions colored\n", p.Name, s.Len(), len(p.Template.Regions))
	}
}

type editCommand struct {
	name string
	arg  string
}

func parseEditCommand(line string) editCommand {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return editCommand{}
	}
	name := strings.ToLower(parts[0])
	switch name {
	case "exit", "q":
		name = "quit"
	case "s":
		name = "select"
	case "p":
		name = "paint"
	case "u":
		name = "undo"
	case "r":
		name = "redo"
	case "?":
		name = "help"
	}
	return editCommand{name: name, arg: strings.Join(parts[1:], " ")}
}

// editLoop reads editor commands from in until quit or end of input.
func editLoop(ctx context.Context, s *editor.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	prompt := func() { accent.Fprint(out, "color › ") }

	prompt()
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd := parseEditCommand(scanner.Text())
		if cmd.name == "quit" {
			break
		}
		if cmd.name != "" {
			if err := runEditCommand(ctx, s, cmd, out); err != nil {
				failure.Fprintf(out, "%v\n", err)
			}
		}
		prompt()
	}
	fmt.Fprintln(out)

	if err := scanner.Err(); err != nil {
		return err
	}
	if s.Dirty() {
		warn.Fprintln(out, "Leaving with unsaved changes.")
	}
	return nil
}

func runEditCommand(ctx context.Context, s *editor.Session, cmd editCommand, out io.Writer) error {
	switch cmd.name {
	case "help":
		fmt.Fprintln(out, editHelp)
	case "select":
		n, err := strconv.Atoi(cmd.arg)
		if err != nil {
			return fmt.Errorf("select needs a palette number")
		}
		if err := s.SelectColor(ctx, n); err != nil {
			return err
		}
		color, _ := s.Project().Template.Color(n)
		fmt.Fprintf(out, "Selected %d (%s)\n", n, color)
	case "paint":
		if cmd.arg == "" {
			return fmt.Errorf("paint needs a region id")
		}
		changed, err := s.Paint(ctx, cmd.arg)
		if err != nil {
			return err
		}
		if !changed {
			faint.Fprintln(out, "Already that color.")
		}
	case "undo":
		ok, err := s.Undo(ctx)
		if err != nil {
			return err
		}
		if !ok {
			faint.Fprintln(out, "Nothing to undo.")
		}
	case "redo":
		ok, err := s.Redo(ctx)
		if err != nil {
			return err
		}
		if !ok {
			faint.Fprintln(out, "Nothing to redo.")
		}
	case "save":
		if err := s.Save(ctx); err != nil {
			return err
		}
		success.Fprintln(out, "Saved.")
	case "status":
		cur, err := s.Current()
		if err != nil {
			return err
		}
		printProject(out, s.Project(), cur, s.Selected())
		h := s.History()
		faint.Fprintf(out, "undo %d/%d, redo %d\n", h.UndoDepth(), h.Limit(), h.RedoDepth())
	default:
		return fmt.Errorf("unknown command %q, try help", cmd.name)
	}
	return nil
}
