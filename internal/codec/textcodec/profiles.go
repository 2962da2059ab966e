package textcodec

import (
	"fmt"
	"strings"
)

// Domain selects the frequency hints tuned to a kind of place.
type Domain uint8

const (
	DomainGeneral Domain = iota // basic/business POIs
	DomainDate                  // first-date venues
	DomainFood
	DomainNature
	DomainTour
	DomainShop
)

const numDomains = 6

var domainNames = [numDomains]string{"BPOI", "DATE", "FOOD", "NATR", "TOUR", "SHOP"}

func (d Domain) String() string {
	if int(d) < numDomains {
		return domainNames[d]
	}
	return fmt.Sprintf("Domain(%d)", uint8(d))
}

// ParseDomain accepts the short preset codes (BPOI, DATE, FOOD, NATR, TOUR, SHOP)
// and a few long-form aliases. An empty string selects DomainGeneral.
func ParseDomain(s string) (Domain, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "BPOI", "GENERAL", "BUSINESS":
		return DomainGeneral, nil
	case "DATE":
		return DomainDate, nil
	case "FOOD":
		return DomainFood, nil
	case "NATR", "NATURE":
		return DomainNature, nil
	case "TOUR", "TOURISM":
		return DomainTour, nil
	case "SHOP":
		return DomainShop, nil
	}
	return DomainGeneral, fmt.Errorf("unknown poi domain %q", s)
}

// Field is the kind of value being compressed.
type Field uint8

const (
	FieldDefault Field = iota
	FieldName
	FieldAddress
	FieldURL
	FieldEmail
	FieldSocial
)

const numFields = 6

var (
	seqDefault = []string{"\": \"", "\": ", "</", "=\"", "\":\"", "://"}

	seqAddress = []string{
		"St", "Ave", "Rd", "Blvd", "Ln", "Dr", "Ct", "Pl", "Cir", "Way", "Ter", "Pkwy", "Sq", "Loop",
		"N", "S", "E", "W", "NE", "NW", "SE", "SW", "North", "South", "East", "West",
		"Northeast", "Northwest", "Southeast", "Southwest",
		"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA", "HI", "ID", "IL", "IN", "IA", "KS",
		"KY", "LA", "ME", "MD", "MA", "MI", "MN", "MS", "MO", "MT", "NV", "NH", "NJ", "NM", "NY", "NC",
		"ND", "OH", "OK", "OR", "PA", "RI", "SC", "SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI",
		"WY", "DC", "PR",
		"Rue", "Strasse", "Via", "Calle", "Avenida", "Boulevard", "Weg", "Straat", "Lane", "Road",
		"Street", "Drive", "Court", "Place", "Square", "Terrace", "Piazza", "Allee", "Plaza", "Gasse",
		"Promenade", "Esplanade",
		"US", "USA", "United States", "Canada", "UK", "United Kingdom", "France", "Germany", "Spain",
		"ES", "Italy", "IT", "Australia", "AU", "Mexico", "MX", "Brazil", "BR", "Netherlands", "NL",
		"Belgium", "BE", "Switzerland", "CH", "Austria", "AT", "Sweden", "Norway", "NO", "Denmark",
		"DK", "Finland", "FI", "Japan", "JP", "China", "CN", "India", "South Africa", "ZA",
		"Apt", "Suite", "Unit", "Floor", "Bldg",
	}

	seqPrep    = []string{" the ", " and ", " of "}
	seqPrepAmp = []string{" the ", " and ", " of ", "&"}
	seqURL     = []string{"https://", "www.", ".com", "http://", ".org", ".net"}
	seqSocial  = []string{"https://", "www.", ".com", "facebook", "instagram", "linkedin", "x", "youtube", "tiktok"}
	seqMail    = []string{"@", ".com", "-", ".org", ".net", "gmail", "outlook"}

	seqDomain = [numDomains][]string{
		DomainGeneral: {
			"restaurant", "cafe", "coffee", "bar", "pub", "hotel", "inn", "shop", "store", "market",
			"center", "park", "plaza", "mall", "club", "station", "parking", "shopping", "dining",
			"pizza", "grill", "bakery", "bistro", "tavern", "steakhouse", "diner", "food", "kitchen",
			"house", "lounge", "bbq", "museum", "gallery", "theatre", "cinema", "arts", "studio",
			"music", "gym", "fitness", "spa", "salon", "beauty", "pharmacy", "clinic", "medical",
			"health", "dental", "hospital", "vet", "bank", "credit", "union", "finance", "insurance",
			"school", "academy", "college", "library", "church", "temple", "mosque", "resort", "lodge",
			"motel", "hostel", "grocery", "supermarket", "liquor", "wine", "beer", "foods", "auto",
			"car", "motors", "service", "repair", "parts", "garage", "electronics", "mobile", "phone",
			"computers", "clothing", "fashion", "boutique", "jewelry", "gifts", "books", "city", "town",
			"village", "central", "main", "downtown", "uptown", "north", "south", "east", "west", "old",
			"new", "classic", "royal", "grand", "ing",
		},
		DomainDate: {
			"cafe", "coffee", "bar", "wine", "cocktail", "lounge", "bistro", "restaurant", "dining",
			"dessert", "bakery", "park", "garden", "plaza", "square", "river", "lake", "museum",
			"gallery", "arts", "cinema", "theatre", "music", "jazz", "club", "bookstore", "books", "tea",
			"chocolate", "rooftop", "terrace", "patio", "old", "new", "classic", "vintage", "modern",
			"city", "central", "downtown", "ing",
		},
		DomainFood: {
			"restaurant", "cafe", "bar", "pub", "bistro", "diner", "grill", "kitchen", "house", "pizza",
			"burger", "steak", "bbq", "seafood", "chicken", "noodle", "sushi", "thai", "indian",
			"chinese", "mexican", "italian", "bakery", "dessert", "coffee", "tea", "food", "dining",
			"lounge", "family", "classic", "express", "ing",
		},
		DomainNature: {
			"park", "garden", "forest", "reserve", "trail", "path", "hiking", "camping", "lake", "river",
			"stream", "waterfall", "beach", "coast", "mountain", "hill", "valley", "ridge", "national",
			"state", "regional", "nature", "wildlife", "north", "south", "east", "west", "ing",
		},
		DomainTour: {
			"museum", "gallery", "attraction", "monument", "memorial", "heritage", "historic", "park",
			"garden", "zoo", "aquarium", "castle", "palace", "fort", "ruins", "tour", "tours", "visitor",
			"center", "view", "viewpoint", "lookout", "city", "old", "new", "royal", "ing",
		},
		DomainShop: {
			"shop", "store", "market", "mall", "plaza", "center", "grocery", "supermarket", "foods",
			"clothing", "fashion", "boutique", "shoes", "jewelry", "electronics", "mobile", "phone",
			"computers", "books", "gifts", "toys", "liquor", "wine", "beer", "discount", "outlet", "ing",
		},
	}

	// fills whatever room a profile leaves in the codebook
	seqBase = []string{
		" ", "e", "t", "a", "o", "i", "n", "s", "r", "h", "l", "d", "c", "u", "m", "f", "p", "g",
		"w", "y", "b", "v", "k", "j", "x", "q", "z", ".", ",", "-", "'", "/", ":", "&", "_", "@",
		"0", "1", "2", "3", "4", "5", "6", "7", "8", "9",
		"S", "C", "M", "B", "P", "T", "A", "D", "R", "L", "G", "H", "F", "W", "N", "E", "K", "O", "I",
		"the", "and", "ing", "ion", "th", "he", "in", "er", "an", "re", "on", "en", "at", "es", "ed",
		"or", "te", "ti", "st", "ar", "nd", "to", "nt", "is", "ha", "ou", "ea", "ng", "al", "it", "le",
		"se", "as", "ro", "ri", "ch", "ll", "ca", "ma", "co", "la", "ne", "el", "ra", "li", "ve",
	}
)

// Profile is a compiled codebook for one field kind and domain.
type Profile struct {
	name string
	book *codebook
}

func (p *Profile) String() string { return p.name }

var (
	defaultProfile *Profile
	addressProfile *Profile
	profiles       [numFields][numDomains]*Profile
)

func init() {
	defaultProfile = newProfile("default", seqDefault)
	addressProfile = newProfile("address", seqAddress)
	for d := range Domain(numDomains) {
		hints := seqDomain[d]
		prep := seqPrepAmp
		if d == DomainNature || d == DomainTour {
			prep = seqPrep
		}
		profiles[FieldDefault][d] = defaultProfile
		profiles[FieldAddress][d] = addressProfile
		profiles[FieldName][d] = newProfile("name/"+d.String(), concat(prep, hints))
		profiles[FieldURL][d] = newProfile("url/"+d.String(), concat(seqURL, hints))
		profiles[FieldEmail][d] = newProfile("email/"+d.String(), concat(seqMail, hints))
		profiles[FieldSocial][d] = newProfile("social/"+d.String(), concat(seqSocial, hints))
	}
}

func newProfile(name string, hints []string) *Profile {
	return &Profile{name: name, book: newCodebook(concat(hints, seqBase))}
}

func concat(parts ...[]string) []string {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]string, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// ProfileFor returns the profile used for a field of a POI of the given domain.
// Default and address profiles do not depend on the domain.
func ProfileFor(f Field, d Domain) *Profile {
	if int(f) >= numFields {
		f = FieldDefault
	}
	if int(d) >= numDomains {
		d = DomainGeneral
	}
	return profiles[f][d]
}

// Default is the profile for generic short strings.
func Default() *Profile { return defaultProfile }
