// Package invalidation defines the events that evict tiles from the caches.
package invalidation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/tileid"
	"github.com/mohammed-shakir/poi-tile-cache/internal/core/model"
	"github.com/mohammed-shakir/poi-tile-cache/internal/tiles"
)

// MaxTiles bounds how many tiles one bbox event may expand to.
const MaxTiles = 4096

var ErrTooManyTiles = errors.New("event covers too many tiles")

// Event names the tiles to evict in one of three ways: base-58 tile ids,
// explicit tiles, or a bbox expanded at zoom Z. Tiles and bbox are combined
// with every filter to build ids. Version increases per source; a replayed
// version is skipped.
type Event struct {
	Version uint64    `json:"version"`
	Op      string    `json:"op"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`

	IDs     []string     `json:"ids,omitempty"`
	Tiles   []model.Tile `json:"tiles,omitempty"`
	BBox    *BBox        `json:"bbox,omitempty"`
	Z       int          `json:"z,omitempty"`
	Filters []string     `json:"filters,omitempty"`
}

type BBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.West, b.South}, Max: orb.Point{b.East, b.North}}
}

// Selector names how the event picks tiles: "ids", "tiles", "bbox", or
// "none" when nothing is set.
func (e Event) Selector() string {
	switch {
	case len(e.IDs) > 0:
		return "ids"
	case len(e.Tiles) > 0:
		return "tiles"
	case e.BBox != nil:
		return "bbox"
	}
	return "none"
}

func (e Event) Validate() error {
	if e.Version == 0 {
		return fmt.Errorf("version must be > 0")
	}
	switch e.Op {
	case "insert", "update", "delete", "invalidate":
	default:
		return fmt.Errorf("op must be insert|update|delete|invalidate")
	}

	set := 0
	for _, ok := range []bool{len(e.IDs) > 0, len(e.Tiles) > 0, e.BBox != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of ids, tiles or bbox is required")
	}

	if len(e.IDs) > 0 {
		for _, id := range e.IDs {
			if _, err := tileid.Parse(id); err != nil {
				return fmt.Errorf("id %q: %w", id, err)
			}
		}
		return nil
	}

	if len(e.Filters) == 0 {
		return fmt.Errorf("filters are required with tiles or bbox")
	}
	if _, err := e.filters(); err != nil {
		return err
	}
	if e.BBox == nil {
		return nil
	}
	bb := *e.BBox
	if !(bb.West >= -180 && bb.West <= 180 && bb.East >= -180 && bb.East <= 180) {
		return fmt.Errorf("bbox longitude out of range")
	}
	if !(bb.South >= -90 && bb.South <= 90 && bb.North >= -90 && bb.North <= 90) {
		return fmt.Errorf("bbox latitude out of range")
	}
	if !(bb.East > bb.West && bb.North > bb.South) {
		return fmt.Errorf("bbox must satisfy east>west and north>south")
	}
	if e.Z < 0 || e.Z > 22 {
		return fmt.Errorf("z %d outside 0..22", e.Z)
	}
	if n := tiles.Count(bb.Bound(), e.Z); n > MaxTiles {
		return fmt.Errorf("%w: %d at z=%d", ErrTooManyTiles, n, e.Z)
	}
	return nil
}

func (e Event) filters() ([]model.Filter, error) {
	out := make([]model.Filter, 0, len(e.Filters))
	for _, s := range e.Filters {
		f, err := model.ParseFilter(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// TileIDs resolves the event to distinct base-58 tile ids. Call Validate first.
func (e Event) TileIDs(enc tileid.Encoder, minZoom int) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	if len(e.IDs) > 0 {
		for _, id := range e.IDs {
			add(id)
		}
		return out, nil
	}

	ts := e.Tiles
	if e.BBox != nil {
		ts = tiles.Covering(e.BBox.Bound(), e.Z)
	}
	fs, err := e.filters()
	if err != nil {
		return nil, err
	}
	for _, t := range ts {
		for _, f := range fs {
			raw, err := enc.Encode(t.X, t.Y, t.Z, minZoom, f.Category, f.Value)
			if err != nil {
				return nil, fmt.Errorf("tile %s %s: %w", t, f, err)
			}
			add(tileid.String(raw))
		}
	}
	return out, nil
}
