package commands

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidcolor/colorbook/internal/editor"
	"github.com/kidcolor/colorbook/internal/project"
	"github.com/kidcolor/colorbook/internal/settings"
	"github.com/kidcolor/colorbook/internal/storage"
	"github.com/kidcolor/colorbook/internal/syncer"
	"github.com/kidcolor/colorbook/pkg/types"
)

func init() {
	color.NoColor = true
}

func newSession(t *testing.T) (*editor.Session, *project.Repository, *types.Project) {
	t.Helper()
	store := storage.NewFile(afero.NewMemMapFs(), "/data/storage")
	repo := project.NewRepository(store, nil)
	p, err := repo.Create(context.Background(), "owl.png", types.Template{
		Palette: []string{"#f00", "#0f0"},
		Regions: []types.Region{{ID: "wing"}, {ID: "eye"}},
	})
	require.NoError(t, err)

	s := editor.New(editor.Options{Projects: repo, Settings: settings.New(store)})
	require.NoError(t, s.Open(context.Background(), p.ID))
	return s, repo, p
}

func TestParseEditCommand(t *testing.T) {
	tests := []struct {
		line string
		want editCommand
	}{
		{"", editCommand{}},
		{"   ", editCommand{}},
		{"paint wing", editCommand{name: "paint", arg: "wing"}},
		{"P wing", editCommand{name: "paint", arg: "wing"}},
		{"select 1", editCommand{name: "select", arg: "1"}},
		{"u", editCommand{name: "undo"}},
		{"exit", editCommand{name: "quit"}},
		{"?", editCommand{name: "help"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseEditCommand(tt.line), tt.line)
	}
}

func TestEditLoop(t *testing.T) {
	s, repo, p := newSession(t)

	in := strings.NewReader(strings.Join([]string{
		"select 1",
		"paint wing",
		"paint wing",
		"paint eye",
		"undo",
		"status",
		"paint beak",
		"bogus",
		"quit",
		"paint eye",
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, editLoop(context.Background(), s, in, &out))

	text := out.String()
	assert.Contains(t, text, "Selected 1 (#0f0)")
	assert.Contains(t, text, "Already that color.")
	assert.Contains(t, text, "unknown region")
	assert.Contains(t, text, `unknown command "bogus"`)
	assert.Contains(t, text, "undo 1/20, redo 1")

	saved, found, err := repo.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, saved.Progress)
	assert.Contains(t, *saved.Progress, `"wing":"#0f0"`)
	assert.NotContains(t, *saved.Progress, `"eye"`, "input after quit is ignored")
}

func TestEditLoopNothingToUndo(t *testing.T) {
	s, _, _ := newSession(t)
	var out bytes.Buffer

	require.NoError(t, editLoop(context.Background(), s, strings.NewReader("undo\nredo\n"), &out))
	assert.Contains(t, out.String(), "Nothing to undo.")
	assert.Contains(t, out.String(), "Nothing to redo.")
}

func TestWriteJQ(t *testing.T) {
	projects := []types.Project{
		{ID: "proj_a", Name: "owl", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "proj_b", Name: "cat", CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	var out bytes.Buffer
	require.NoError(t, writeJQ(&out, projects, ".[].name"))
	assert.Equal(t, "owl\ncat\n", out.String())

	out.Reset()
	require.NoError(t, writeJQ(&out, projects, "length"))
	assert.Equal(t, "2\n", out.String())

	assert.Error(t, writeJQ(&out, projects, ".[] |"))
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, syncer.Report{})
	assert.Equal(t, "Nothing saved.\n", out.String())

	out.Reset()
	printReport(&out, syncer.Report{Pending: 2})
	assert.Equal(t, "Kept 2 saved request(s) for later.\n", out.String())

	out.Reset()
	printReport(&out, syncer.Report{
		Pending:   3,
		Confirmed: true,
		Replayed:  []string{"req_1"},
		Failed:    []syncer.Failure{{RequestID: "req_2", Err: errors.New("down")}},
		Skipped:   []string{"req_3"},
	})
	assert.Equal(t, "Ran 1 of 3 saved request(s), 1 failed, 1 skipped\n", out.String())
}
