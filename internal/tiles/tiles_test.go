package tiles

import (
	"reflect"
	"slices"
	"testing"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/poi-tile-cache/internal/core/model"
)

func TestAt_KnownTiles(t *testing.T) {
	cases := []struct {
		lat, lon float64
		z        int
		want     model.Tile
	}{
		{10, 10, 0, model.Tile{X: 0, Y: 0, Z: 0}},
		// Greenwich on the equator sits on the corner of the four central tiles
		{-0.0001, 0.0001, 12, model.Tile{X: 2048, Y: 2048, Z: 12}},
		// London
		{51.5074, -0.1278, 12, model.Tile{X: 2046, Y: 1362, Z: 12}},
	}
	for _, c := range cases {
		if got := At(c.lat, c.lon, c.z); got != c.want {
			t.Fatalf("At(%v, %v, %d) = %v, want %v", c.lat, c.lon, c.z, got, c.want)
		}
	}
}

func TestAt_ClampsToWorld(t *testing.T) {
	n := uint32(1)<<10 - 1
	if got := At(89.9, 180, 10); got != (model.Tile{X: n, Y: 0, Z: 10}) {
		t.Fatalf("north-east corner = %v", got)
	}
	if got := At(-89.9, -180, 10); got != (model.Tile{X: 0, Y: n, Z: 10}) {
		t.Fatalf("south-west corner = %v", got)
	}
}

func TestBound_ContainsPoint(t *testing.T) {
	b := Bound(At(51.5074, -0.1278, 14))
	if !(b.Min.Lon() <= -0.1278 && -0.1278 <= b.Max.Lon()) {
		t.Fatalf("lon outside %v", b)
	}
	if !(b.Min.Lat() <= 51.5074 && 51.5074 <= b.Max.Lat()) {
		t.Fatalf("lat outside %v", b)
	}
}

func TestForRadius_CoversCenter(t *testing.T) {
	lat, lon := 48.8566, 2.3522
	got := ForRadius(lat, lon, 2000, 14)
	if len(got) == 0 {
		t.Fatalf("no tiles")
	}
	if !slices.Contains(got, At(lat, lon, 14)) {
		t.Fatalf("center tile missing from %v", got)
	}
	for _, tl := range got {
		if tl.Z != 14 {
			t.Fatalf("tile %v not at z14", tl)
		}
	}

	if small := ForRadius(lat, lon, 1, 10); !reflect.DeepEqual(small, []model.Tile{At(lat, lon, 10)}) {
		t.Fatalf("tiny radius = %v", small)
	}
}

func TestSplit(t *testing.T) {
	kids := Split(model.Tile{X: 3, Y: 5, Z: 4})
	if kids[0] != (model.Tile{X: 6, Y: 10, Z: 5}) || kids[3] != (model.Tile{X: 7, Y: 11, Z: 5}) {
		t.Fatalf("Split = %v", kids)
	}
}

func TestChooseZoom_StaysInRange(t *testing.T) {
	if z := ChooseZoom(1e9, 0, 9, 16); z != 9 {
		t.Fatalf("huge radius z = %d, want 9", z)
	}
	if z := ChooseZoom(1, 0, 9, 16); z != 16 {
		t.Fatalf("tiny radius z = %d, want 16", z)
	}

	if z := ChooseZoom(1000, 45, 9, 16); z < 9 || z > 16 {
		t.Fatalf("z = %d outside 9..16", z)
	}
	if wide, narrow := ChooseZoom(5000, 45, 9, 16), ChooseZoom(500, 45, 9, 16); wide >= narrow {
		t.Fatalf("wider radius should pick a lower zoom: %d vs %d", wide, narrow)
	}
}

func TestCovering_MatchesCount(t *testing.T) {
	b := orb.Bound{Min: orb.Point{2.30, 48.84}, Max: orb.Point{2.40, 48.88}}
	got := Covering(b, 14)
	if len(got) != Count(b, 14) {
		t.Fatalf("Covering = %d tiles, Count = %d", len(got), Count(b, 14))
	}
	if !slices.Contains(got, At(48.86, 2.35, 14)) {
		t.Fatalf("inner tile missing")
	}
	if n := len(Covering(b, 0)); n != 1 {
		t.Fatalf("z0 covering = %d tiles", n)
	}
}
