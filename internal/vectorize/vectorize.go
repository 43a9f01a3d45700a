// Package vectorize turns raster images into coloring templates.
//
// Vectorization itself is done by an external program. ExecVectorizer feeds
// it the image on stdin and reads a template, in YAML or JSON, from stdout.
package vectorize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/kidcolor/colorbook/internal/logging"
	"github.com/kidcolor/colorbook/pkg/types"
)

// ErrInvalidTemplate is returned for templates that cannot be colored.
var ErrInvalidTemplate = errors.New("invalid template")

// Environment variables passed to the vectorizer command.
const (
	EnvPaletteSize  = "COLORBOOK_PALETTE_SIZE"
	EnvMaxDimension = "COLORBOOK_MAX_IMAGE_DIMENSION"
)

// Vectorizer converts an image into a template.
type Vectorizer interface {
	Vectorize(ctx context.Context, image []byte) (types.Template, error)
}

// Func adapts a function to Vectorizer.
type Func func(ctx context.Context, image []byte) (types.Template, error)

// Vectorize calls f.
func (f Func) Vectorize(ctx context.Context, image []byte) (types.Template, error) {
	return f(ctx, image)
}

// ExecVectorizer runs an external command.
type ExecVectorizer struct {
	Command      []string
	PaletteSize  int
	MaxDimension int
	Dir          string

	log zerolog.Logger
}

// NewExec creates an ExecVectorizer. It returns nil when command is empty.
func NewExec(command []string, palette *types.PaletteConfig) *ExecVectorizer {
	if len(command) == 0 {
		return nil
	}
	v := &ExecVectorizer{
		Command: command,
		log:     logging.Component("vectorize"),
	}
	if palette != nil {
		v.PaletteSize = palette.Size
		v.MaxDimension = palette.MaxImageDimension
	}
	return v
}

// Available reports whether the command can be found.
func (v *ExecVectorizer) Available() error {
	_, err := exec.LookPath(v.Command[0])
	return err
}

// Vectorize runs the command with image on stdin and parses its output.
func (v *ExecVectorizer) Vectorize(ctx context.Context, image []byte) (types.Template, error) {
	if len(image) == 0 {
		return types.Template{}, errors.New("vectorize: empty image")
	}

	cmd := exec.CommandContext(ctx, v.Command[0], v.Command[1:]...)
	cmd.Dir = v.Dir
	cmd.Env = os.Environ()
	if v.PaletteSize > 0 {
		cmd.Env = append(cmd.Env, EnvPaletteSize+"="+strconv.Itoa(v.PaletteSize))
	}
	if v.MaxDimension > 0 {
		cmd.Env = append(cmd.Env, EnvMaxDimension+"="+strconv.Itoa(v.MaxDimension))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(image)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return types.Template{}, fmt.Errorf("vectorizer %s failed: %s", v.Command[0], msg)
	}

	tmpl, err := ParseTemplate(stdout.Bytes())
	if err != nil {
		return types.Template{}, fmt.Errorf("vectorizer %s: %w", v.Command[0], err)
	}
	v.log.Debug().
		Int("colors", len(tmpl.Palette)).
		Int("regions", len(tmpl.Regions)).
		Msg("image vectorized")
	return tmpl, nil
}

// LoadTemplate reads a YAML or JSON template file.
func LoadTemplate(path string) (types.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Template{}, err
	}
	tmpl, err := ParseTemplate(data)
	if err != nil {
		return types.Template{}, fmt.Errorf("%s: %w", path, err)
	}
	return tmpl, nil
}

// ParseTemplate decodes and validates a template. JSON input is accepted as
// the YAML subset it is.
func ParseTemplate(data []byte) (types.Template, error) {
	var tmpl types.Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return types.Template{}, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if err := Validate(tmpl); err != nil {
		return types.Template{}, err
	}
	return tmpl, nil
}

// Validate checks that a template has a palette and uniquely named regions.
func Validate(tmpl types.Template) error {
	if len(tmpl.Palette) == 0 {
		return fmt.Errorf("%w: empty palette", ErrInvalidTemplate)
	}
	for i, c := range tmpl.Palette {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("%w: palette color %d is empty", ErrInvalidTemplate, i)
		}
	}
	if len(tmpl.Regions) == 0 {
		return fmt.Errorf("%w: no regions", ErrInvalidTemplate)
	}
	seen := make(map[string]bool, len(tmpl.Regions))
	for _, r := range tmpl.Regions {
		if r.ID == "" {
			return fmt.Errorf("%w: region without id", ErrInvalidTemplate)
		}
		if seen[r.ID] {
			return fmt.Errorf("%w: duplicate region %q", ErrInvalidTemplate, r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}
