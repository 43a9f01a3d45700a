// Package snapshot defines the immutable coloring state of a project and its
// persisted encoding.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/kidcolor/colorbook/pkg/types"
)

// ErrMalformed is returned by Decode for input that is not a snapshot encoding.
var ErrMalformed = errors.New("malformed snapshot")

// Snapshot maps region ids to colors. It is an immutable value: the only
// field is the canonical encoding, so two snapshots with the same content
// compare equal with ==. The zero value is the empty snapshot.
type Snapshot struct {
	enc string
}

type wire struct {
	Fills map[string]string `json:"fills"`
}

// New builds a snapshot from a region→color map. Entries with an empty color
// mean "unpainted" and are dropped.
func New(fills map[string]string) Snapshot {
	clean := make(map[string]string, len(fills))
	for region, color := range fills {
		if color != "" {
			clean[region] = color
		}
	}
	if len(clean) == 0 {
		return Snapshot{}
	}
	return Snapshot{enc: canonical(clean)}
}

// Empty returns the snapshot with no painted regions.
func Empty() Snapshot {
	return Snapshot{}
}

// FromTemplate returns the template's initial coloring.
func FromTemplate(t types.Template) Snapshot {
	fills := make(map[string]string, len(t.Regions))
	for _, r := range t.Regions {
		fills[r.ID] = r.Fill
	}
	return New(fills)
}

// canonical renders fills as {"fills":{...}} with sorted keys.
func canonical(fills map[string]string) string {
	keys := make([]string, 0, len(fills))
	for k := range fills {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString(`{"fills":{`)
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(fills[k])
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteString(`}}`)
	return buf.String()
}

// Regions returns a copy of the region→color map.
func (s Snapshot) Regions() map[string]string {
	if s.enc == "" {
		return map[string]string{}
	}
	var w wire
	// enc is always produced by canonical
	_ = json.Unmarshal([]byte(s.enc), &w)
	if w.Fills == nil {
		w.Fills = map[string]string{}
	}
	return w.Fills
}

// Fill returns the color of region, or "" if it is unpainted.
func (s Snapshot) Fill(regionID string) string {
	return s.Regions()[regionID]
}

// With returns a new snapshot where region has color. An empty color
// unpaints the region.
func (s Snapshot) With(regionID, color string) Snapshot {
	fills := s.Regions()
	if color == "" {
		delete(fills, regionID)
	} else {
		fills[regionID] = color
	}
	return New(fills)
}

// Len returns the number of painted regions.
func (s Snapshot) Len() int {
	return len(s.Regions())
}

// IsEmpty reports whether no region is painted.
func (s Snapshot) IsEmpty() bool {
	return s.enc == ""
}

// Equal reports content equality.
func (s Snapshot) Equal(other Snapshot) bool {
	return s == other
}

// String returns the encoding.
func (s Snapshot) String() string {
	return Encode(s)
}

// Encode returns the persisted form of s.
func Encode(s Snapshot) string {
	if s.enc == "" {
		return `{"fills":{}}`
	}
	return s.enc
}

// Decode parses a persisted snapshot. The result is re-canonicalized, so any
// valid encoding of the same content decodes to an equal Snapshot.
func Decode(encoded string) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(encoded)))
	dec.DisallowUnknownFields()

	var w wire
	if err := dec.Decode(&w); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if dec.More() {
		return Snapshot{}, fmt.Errorf("%w: trailing data", ErrMalformed)
	}
	if w.Fills == nil {
		return Snapshot{}, fmt.Errorf("%w: missing fills", ErrMalformed)
	}
	for region := range w.Fills {
		if region == "" {
			return Snapshot{}, fmt.Errorf("%w: empty region id", ErrMalformed)
		}
	}
	return New(w.Fills), nil
}

// FromProject returns the project's current progress, or the template's
// initial state when nothing has been saved yet.
func FromProject(p *types.Project) (Snapshot, error) {
	if p.Progress == nil {
		return FromTemplate(p.Template), nil
	}
	return Decode(*p.Progress)
}
