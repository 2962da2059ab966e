package model

import (
	"strings"

	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/hours"
)

// RawOpeningHoursTag keeps an opening_hours value that ParseOSM rejected.
const RawOpeningHoursTag = "opening_hours:raw"

var addrTags = []string{
	"addr:housenumber", "addr:street", "addr:unit", "addr:city", "addr:state",
	"addr:province", "addr:district", "addr:suburb", "addr:postcode", "addr:country",
}

// FromTags builds a POI from raw OSM tags. addr:* tags are folded into Addr,
// contact:* tags into the contact fields and Social.
func FromTags(tags map[string]string) POI {
	var p POI
	for k, v := range tags {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		switch k {
		case "name":
			p.Name = v
		case "addr":
			p.Addr = v
		case "website", "contact:website":
			if p.Website == "" || k == "website" {
				p.Website = v
			}
		case "phone", "contact:phone":
			if p.Phone == "" || k == "phone" {
				p.Phone = v
			}
		case "email", "contact:email":
			if p.Email == "" || k == "email" {
				p.Email = v
			}
		case "description":
			p.Description = v
		case "amenity":
			p.Amenity = v
		case "tourism":
			p.Tourism = v
		case "leisure":
			p.Leisure = v
		case "shop":
			p.Shop = v
		case "opening_hours":
			if w, err := hours.ParseOSM(v); err == nil {
				p.OpeningHours = &w
			} else {
				p.setExtra(RawOpeningHoursTag, v)
			}
		default:
			if strings.HasPrefix(k, "addr:") {
				continue
			}
			if platform, ok := strings.CutPrefix(k, "contact:"); ok {
				if p.Social == nil {
					p.Social = make(map[string]string)
				}
				p.Social[platform] = v
				continue
			}
			if k == "social" {
				continue
			}
			p.setExtra(k, v)
		}
	}
	if p.Addr == "" {
		p.Addr = composeAddr(tags)
	}
	return p
}

func (p *POI) setExtra(k, v string) {
	if p.Extra == nil {
		p.Extra = make(map[string]string)
	}
	p.Extra[k] = v
}

// composeAddr renders the addr:* tags as up to three lines:
// "12 High St Unit 4", "Springfield, IL 62701", "US".
func composeAddr(tags map[string]string) string {
	get := func(k string) string { return strings.TrimSpace(tags[k]) }

	line1 := joinNonEmpty(" ", get("addr:housenumber"), get("addr:street"))
	if u := get("addr:unit"); u != "" {
		line1 = joinNonEmpty(" ", line1, "Unit "+u)
	}
	region := joinNonEmpty(" ", get("addr:state"), get("addr:province"), get("addr:district"), get("addr:suburb"))
	line2 := joinNonEmpty(", ", get("addr:city"), region)
	line2 = joinNonEmpty(" ", line2, get("addr:postcode"))

	return joinNonEmpty("\n", line1, line2, get("addr:country"))
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
