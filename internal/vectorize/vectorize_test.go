package vectorize

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidcolor/colorbook/pkg/types"
)

const yamlTemplate = `
palette: ["#ff0000", "#00ff00"]
width: 100
height: 80
regions:
  - id: r1
    path: M0 0 L10 0 L10 10 Z
  - id: r2
    path: M20 20 L30 20 L30 30 Z
    fill: "#00ff00"
`

func TestParseTemplateYAML(t *testing.T) {
	tmpl, err := ParseTemplate([]byte(yamlTemplate))
	require.NoError(t, err)
	assert.Equal(t, []string{"#ff0000", "#00ff00"}, tmpl.Palette)
	assert.Equal(t, 100, tmpl.Width)
	require.Len(t, tmpl.Regions, 2)
	assert.Equal(t, "#00ff00", tmpl.Regions[1].Fill)
}

func TestParseTemplateJSON(t *testing.T) {
	tmpl, err := ParseTemplate([]byte(`{"palette":["#000"],"regions":[{"id":"a"},{"id":"b"}]}`))
	require.NoError(t, err)
	assert.Len(t, tmpl.Regions, 2)
}

func TestParseTemplateInvalid(t *testing.T) {
	cases := map[string]string{
		"garbage":      "palette: [",
		"no palette":   "regions: [{id: a}]",
		"empty color":  `{"palette":[""],"regions":[{"id":"a"}]}`,
		"no regions":   `{"palette":["#000"]}`,
		"missing id":   `{"palette":["#000"],"regions":[{"path":"M0 0"}]}`,
		"duplicate id": `{"palette":["#000"],"regions":[{"id":"a"},{"id":"a"}]}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTemplate([]byte(input))
			assert.ErrorIs(t, err, ErrInvalidTemplate)
		})
	}
}

func TestLoadTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlTemplate), 0o644))

	tmpl, err := LoadTemplate(path)
	require.NoError(t, err)
	assert.Len(t, tmpl.Palette, 2)

	_, err = LoadTemplate(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecVectorizer(t *testing.T) {
	requireShell(t)

	// echoes the palette size into the palette and the image bytes into a region id
	script := `printf '{"palette":["#%s"],"regions":[{"id":"%s"}]}' "$COLORBOOK_PALETTE_SIZE" "$(cat)"`
	v := NewExec([]string{"sh", "-c", script}, &types.PaletteConfig{Size: 6, MaxImageDimension: 512})
	require.NotNil(t, v)
	require.NoError(t, v.Available())

	tmpl, err := v.Vectorize(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, []string{"#6"}, tmpl.Palette)
	assert.Equal(t, "img", tmpl.Regions[0].ID)
}

func TestExecVectorizerFailure(t *testing.T) {
	requireShell(t)

	v := NewExec([]string{"sh", "-c", "echo 'cannot trace' >&2; exit 3"}, nil)
	_, err := v.Vectorize(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot trace")

	v = NewExec([]string{"sh", "-c", "echo '{}'"}, nil)
	_, err = v.Vectorize(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	_, err = v.Vectorize(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewExecWithoutCommand(t *testing.T) {
	assert.Nil(t, NewExec(nil, nil))
}

func TestFunc(t *testing.T) {
	var v Vectorizer = Func(func(ctx context.Context, image []byte) (types.Template, error) {
		return types.Template{Palette: []string{string(image)}}, nil
	})
	tmpl, err := v.Vectorize(context.Background(), []byte("#abc"))
	require.NoError(t, err)
	assert.Equal(t, []string{"#abc"}, tmpl.Palette)
}
