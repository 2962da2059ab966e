package model

import (
	"testing"

	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/ranks"
)

func TestFromTags_ComposesAddressAndContacts(t *testing.T) {
	p := FromTags(map[string]string{
		"name":              "The Crown",
		"amenity":           "pub",
		"addr:housenumber":  "12",
		"addr:street":       "High Street",
		"addr:unit":         "B",
		"addr:city":         "Oxford",
		"addr:postcode":     "OX1 4AA",
		"addr:country":      "GB",
		"contact:phone":     "+44 1865 000000",
		"contact:facebook":  "https://facebook.com/thecrown",
		"contact:instagram": "https://instagram.com/thecrown",
		"opening_hours":     "Mo-Su 11:00-23:00",
		"wheelchair":        "yes",
	})

	if p.Name != "The Crown" || p.Amenity != "pub" {
		t.Fatalf("name/amenity: %+v", p)
	}
	if want := "12 High Street Unit B\nOxford OX1 4AA\nGB"; p.Addr != want {
		t.Fatalf("addr = %q, want %q", p.Addr, want)
	}
	if p.Phone != "+44 1865 000000" {
		t.Fatalf("phone = %q", p.Phone)
	}
	if len(p.Social) != 2 || p.Social["facebook"] == "" {
		t.Fatalf("social = %v", p.Social)
	}
	if p.OpeningHours == nil || len(p.OpeningHours[6].Intervals) != 1 {
		t.Fatalf("opening hours = %+v", p.OpeningHours)
	}
	if p.Extra["wheelchair"] != "yes" || len(p.Extra) != 1 {
		t.Fatalf("extra = %v", p.Extra)
	}
}

func TestFromTags_UnparsedHoursKeptRaw(t *testing.T) {
	p := FromTags(map[string]string{"opening_hours": "sunrise-sunset"})
	if p.OpeningHours != nil {
		t.Fatalf("expected no structured hours")
	}
	if p.Extra[RawOpeningHoursTag] != "sunrise-sunset" {
		t.Fatalf("extra = %v", p.Extra)
	}
}

func TestFromTags_PlainKeysWinOverContact(t *testing.T) {
	p := FromTags(map[string]string{"website": "https://a.example", "contact:website": "https://b.example"})
	if p.Website != "https://a.example" {
		t.Fatalf("website = %q", p.Website)
	}
}

func TestParseFilters_Sorted(t *testing.T) {
	fs, err := ParseFilters("shop=bakery, tourism=hotel,amenity=bar")
	if err != nil {
		t.Fatalf("ParseFilters: %v", err)
	}
	want := []Filter{{ranks.Tourism, "hotel"}, {ranks.Shop, "bakery"}, {ranks.Amenity, "bar"}}
	if len(fs) != len(want) {
		t.Fatalf("got %v", fs)
	}
	for i := range want {
		if fs[i] != want[i] {
			t.Fatalf("fs[%d] = %v, want %v", i, fs[i], want[i])
		}
	}
	if _, err := ParseFilters("highway=primary"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestCategoryAccessors(t *testing.T) {
	var p POI
	for _, c := range ranks.Categories {
		p.SetCategory(c, c.String()+"-v")
	}
	for _, c := range ranks.Categories {
		if got := p.Category(c); got != c.String()+"-v" {
			t.Fatalf("%s = %q", c, got)
		}
	}
}
