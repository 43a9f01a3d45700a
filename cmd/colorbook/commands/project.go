package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/kidcolor/colorbook/internal/app"
	"github.com/kidcolor/colorbook/internal/snapshot"
	"github.com/kidcolor/colorbook/pkg/types"
)

var (
	createName string
	listJSON   bool
	listJQ     string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage coloring projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <file>",
	Short: "Create a project from a template or image file",
	Long: `Create a project from a file.

Template files (.yaml, .yml, .json) are used directly. Other files are
treated as images and passed to the configured vectorizer command.`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectCreate,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a project and its progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectDelete,
}

func init() {
	projectCreateCmd.Flags().StringVarP(&createName, "name", "n", "", "Project name (default: file name)")
	projectListCmd.Flags().BoolVar(&listJSON, "json", false, "Output JSON")
	projectListCmd.Flags().StringVar(&listJQ, "jq", "", "Filter JSON output with a jq expression")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectDeleteCmd)
}

func runProjectCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.CreateProject(ctx, args[0], createName)
	if err != nil {
		return err
	}
	success.Fprintf(cmd.OutOrStdout(), "Created %s ", p.Name)
	faint.Fprintln(cmd.OutOrStdout(), p.ID)
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	projects, err := a.Projects.List(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if listJQ != "" {
		return writeJQ(out, projects, listJQ)
	}
	if listJSON {
		return writeJSON(out, projects)
	}

	if len(projects) == 0 {
		faint.Fprintln(out, "No projects yet. Create one with 'colorbook project create <file>'.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tCOLORED")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.CreatedAt.Local().Format("2006-01-02 15:04"), progressSummary(&p))
	}
	return tw.Flush()
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	p, found, err := a.Projects.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("project %s not found", args[0])
	}

	s, err := snapshot.FromProject(p)
	if err != nil {
		warn.Fprintf(cmd.ErrOrStderr(), "saved progress is unreadable: %v\n", err)
		s = snapshot.FromTemplate(p.Template)
	}
	printProject(cmd.OutOrStdout(), p, s, -1)
	return nil
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Projects.Delete(ctx, args[0]); err != nil {
		return err
	}
	success.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}

func progressSummary(p *types.Project) string {
	s, err := snapshot.FromProject(p)
	if err != nil {
		return "?"
	}
	return fmt.Sprintf("%d/%d", s.Len(), len(p.Template.Regions))
}

func printProject(w io.Writer, p *types.Project, s snapshot.Snapshot, selected int) {
	accent.Fprintf(w, "%s ", p.Name)
	faint.Fprintf(w, "(%s)\n", p.ID)

	fmt.Fprint(w, "palette:")
	for i, c := range p.Template.Palette {
		label := fmt.Sprintf(" %d:%s", i, c)
		if i == selected {
			success.Fprint(w, label+"*")
		} else {
			fmt.Fprint(w, label)
		}
	}
	fmt.Fprintln(w)

	for _, r := range p.Template.Regions {
		fill := s.Fill(r.ID)
		if fill == "" {
			fill = "-"
		}
		fmt.Fprintf(w, "  %-12s %s\n", r.ID, fill)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeJQ runs expr over the JSON form of v and prints each result.
func writeJQ(w io.Writer, v any, expr string) error {
	query, err := gojq.Parse(expr)
	if err != nil {
		return fmt.Errorf("jq: filter parse error: %v", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("jq: compile error: %v", err)
	}

	// gojq works on plain JSON values
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return err
	}

	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := result.(error); ok {
			return fmt.Errorf("jq: execution error: %v", err)
		}
		if s, ok := result.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		if err := writeJSON(w, result); err != nil {
			return err
		}
	}
	return nil
}
