// Package tiles maps geographic loci onto web-mercator slippy tiles.
package tiles

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/mohammed-shakir/poi-tile-cache/internal/core/model"
)

const (
	maxLatitude = 85.0511

	metersPerDegree = 111320.0
	equatorMeters   = 40075000.0
	// fraction of a tile side that a search radius should cover
	sideFactor = 0.53
)

// At returns the tile containing lat/lon at zoom z.
func At(lat, lon float64, z int) model.Tile {
	lat = math.Max(-maxLatitude, math.Min(maxLatitude, lat))
	lon = math.Max(-180, math.Min(180, lon))
	t := maptile.At(orb.Point{lon, lat}, maptile.Zoom(z))

	last := uint32(1)<<uint(z) - 1
	return model.Tile{X: min(t.X, last), Y: min(t.Y, last), Z: z}
}

// Bound is the lon/lat rectangle of a tile.
func Bound(t model.Tile) orb.Bound {
	return maptile.New(t.X, t.Y, maptile.Zoom(t.Z)).Bound()
}

// ForRadius returns every tile at zoom z touched by the square of half side
// radius meters around lat/lon, column major.
func ForRadius(lat, lon, radius float64, z int) []model.Tile {
	delta := radius / metersPerDegree
	return Covering(orb.Bound{
		Min: orb.Point{lon - delta, lat - delta},
		Max: orb.Point{lon + delta, lat + delta},
	}, z)
}

// Count is the number of tiles Covering would return.
func Count(b orb.Bound, z int) int {
	lo, hi := At(b.Min.Lat(), b.Min.Lon(), z), At(b.Max.Lat(), b.Max.Lon(), z)
	dx := int(max(lo.X, hi.X) - min(lo.X, hi.X) + 1)
	dy := int(max(lo.Y, hi.Y) - min(lo.Y, hi.Y) + 1)
	return dx * dy
}

// Covering returns every tile at zoom z intersecting b, column major.
func Covering(b orb.Bound, z int) []model.Tile {
	lo, hi := At(b.Min.Lat(), b.Min.Lon(), z), At(b.Max.Lat(), b.Max.Lon(), z)

	out := make([]model.Tile, 0, Count(b, z))
	for x := min(lo.X, hi.X); x <= max(lo.X, hi.X); x++ {
		for y := min(lo.Y, hi.Y); y <= max(lo.Y, hi.Y); y++ {
			out = append(out, model.Tile{X: x, Y: y, Z: z})
		}
	}
	return out
}

// Split returns the four children of t.
func Split(t model.Tile) [4]model.Tile {
	x, y, z := t.X*2, t.Y*2, t.Z+1
	return [4]model.Tile{
		{X: x, Y: y, Z: z},
		{X: x + 1, Y: y, Z: z},
		{X: x, Y: y + 1, Z: z},
		{X: x + 1, Y: y + 1, Z: z},
	}
}

// ChooseZoom picks the zoom in minZoom..maxZoom whose tile side is closest to
// a search radius at the given latitude.
func ChooseZoom(radius, lat float64, minZoom, maxZoom int) int {
	side := func(z int) float64 {
		return equatorMeters * math.Cos(lat*math.Pi/180) / math.Exp2(float64(z)) * sideFactor
	}
	z := minZoom
	for z < maxZoom && side(z) > radius {
		z++
	}
	if z > minZoom && math.Abs(radius-side(z)) > math.Abs(radius-side(z-1)) {
		return z - 1
	}
	return z
}
