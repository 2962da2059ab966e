package ranks

import (
	"fmt"
	"strings"
)

// Category is one of the four top-level OSM keys. Its numeric value is the
// byte stored in tile identifiers and as the record field tag.
type Category uint8

const (
	Tourism Category = iota
	Leisure
	Shop
	Amenity
)

const numCategories = 4

// Categories lists every category in the order POI records emit them.
var Categories = [numCategories]Category{Amenity, Tourism, Leisure, Shop}

func (c Category) Valid() bool { return c < numCategories }

func (c Category) String() string {
	switch c {
	case Tourism:
		return "tourism"
	case Leisure:
		return "leisure"
	case Shop:
		return "shop"
	case Amenity:
		return "amenity"
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// Byte is the identifier byte: 0 tourism, 1 leisure, 2 shop, 3 amenity.
func (c Category) Byte() byte { return byte(c) }

func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tourism":
		return Tourism, nil
	case "leisure":
		return Leisure, nil
	case "shop":
		return Shop, nil
	case "amenity":
		return Amenity, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// CategoryFromByte decodes an identifier's category byte.
func CategoryFromByte(b byte) (Category, error) {
	c := Category(b)
	if !c.Valid() {
		return 0, fmt.Errorf("%w: byte %d", ErrUnknownCategory, b)
	}
	return c, nil
}
