// Package types provides the core data types for colorbook.
package types

import "time"

// Project is a user's in-progress coloring work.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Template  Template  `json:"template"`
	// Progress is the encoded snapshot of region colors. Nil means the
	// template's initial state.
	Progress *string `json:"progress,omitempty"`
}

// Template is the immutable palette and region layout produced by the
// vectorizer.
type Template struct {
	Palette []string `json:"palette"`
	Width   int      `json:"width,omitempty" yaml:"width,omitempty"`
	Height  int      `json:"height,omitempty" yaml:"height,omitempty"`
	Regions []Region `json:"regions"`
}

// Region is a single paintable area of the drawing.
type Region struct {
	ID   string `json:"id" yaml:"id"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"` // SVG path data
	Fill string `json:"fill,omitempty" yaml:"fill,omitempty"` // initial color, empty when unpainted
}

// Region returns the region with the given id.
func (t Template) Region(id string) (Region, bool) {
	for _, r := range t.Regions {
		if r.ID == id {
			return r, true
		}
	}
	return Region{}, false
}

// Color returns the palette color at index.
func (t Template) Color(index int) (string, bool) {
	if index < 0 || index >= len(t.Palette) {
		return "", false
	}
	return t.Palette[index], true
}
