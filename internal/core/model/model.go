// Package model defines the POI and tile types shared across the service.
package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/hours"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/ranks"
)

// POI is one point of interest. Empty fields are absent.
type POI struct {
	Name         string            `json:"name,omitempty"`
	Addr         string            `json:"addr,omitempty"`
	Website      string            `json:"website,omitempty"`
	OpeningHours *hours.Week       `json:"opening_hours,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Email        string            `json:"email,omitempty"`
	Description  string            `json:"description,omitempty"`
	Social       map[string]string `json:"social,omitempty"`

	Amenity string `json:"amenity,omitempty"`
	Tourism string `json:"tourism,omitempty"`
	Leisure string `json:"leisure,omitempty"`
	Shop    string `json:"shop,omitempty"`

	// Extra holds tags with no dedicated field.
	Extra map[string]string `json:"extra,omitempty"`
}

// RecognizedFields are the field names with a dedicated slot in POI.
var RecognizedFields = []string{
	"name", "addr", "website", "opening_hours", "phone", "email", "description", "social",
	"amenity", "tourism", "leisure", "shop",
}

func IsRecognized(field string) bool {
	for _, f := range RecognizedFields {
		if f == field {
			return true
		}
	}
	return false
}

// Category returns the value of one of the four category fields.
func (p *POI) Category(c ranks.Category) string {
	switch c {
	case ranks.Amenity:
		return p.Amenity
	case ranks.Tourism:
		return p.Tourism
	case ranks.Leisure:
		return p.Leisure
	case ranks.Shop:
		return p.Shop
	}
	return ""
}

func (p *POI) SetCategory(c ranks.Category, v string) {
	switch c {
	case ranks.Amenity:
		p.Amenity = v
	case ranks.Tourism:
		p.Tourism = v
	case ranks.Leisure:
		p.Leisure = v
	case ranks.Shop:
		p.Shop = v
	}
}

// Tile is a slippy-map tile.
type Tile struct {
	X uint32 `json:"x"`
	Y uint32 `json:"y"`
	Z int    `json:"z"`
}

func (t Tile) String() string { return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y) }

// Filter selects POIs of one category value, e.g. amenity=bar.
type Filter struct {
	Category ranks.Category
	Value    string
}

func (f Filter) String() string { return f.Category.String() + "=" + f.Value }

// ParseFilter reads "key=value".
func ParseFilter(s string) (Filter, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(v) == "" {
		return Filter{}, fmt.Errorf("filter %q: want key=value", s)
	}
	c, err := ranks.ParseCategory(k)
	if err != nil {
		return Filter{}, err
	}
	return Filter{Category: c, Value: strings.TrimSpace(v)}, nil
}

// ParseFilters reads a comma separated filter list and returns it sorted.
func ParseFilters(s string) ([]Filter, error) {
	var out []Filter
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := ParseFilter(part)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}
