// Package geo resolves crash coordinates to admin-zone codes from a
// boundaries shapefile. Enrichment is optional: without a configured
// shapefile the pipeline runs with the raw department codes only.
package geo

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// zone is one admin area with its bounding box.
type zone struct {
	code                   string
	minX, minY, maxX, maxY float64
}

// Index answers point-to-zone lookups. Containment is tested against each
// zone's bounding box; on overlap the smallest matching box wins, which is
// accurate enough for tagging department-scale areas.
type Index struct {
	zones []zone
}

// LoadIndex reads a boundaries shapefile and indexes each shape's bounding
// box under the value of codeField (e.g. INSEE_DEP).
func LoadIndex(shpPath, codeField string) (*Index, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	codeIdx := -1
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, codeField) {
			codeIdx = i
			break
		}
	}
	if codeIdx < 0 {
		return nil, eris.Errorf("geo: field %q not found in %s", codeField, shpPath)
	}

	idx := &Index{}
	for reader.Next() {
		_, shape := reader.Shape()
		code := strings.TrimSpace(strings.TrimRight(reader.Attribute(codeIdx), "\x00"))
		if code == "" {
			continue
		}
		box := shape.BBox()
		idx.zones = append(idx.zones, zone{
			code: code,
			minX: box.MinX, minY: box.MinY,
			maxX: box.MaxX, maxY: box.MaxY,
		})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "geo: read shapefile %s", shpPath)
	}
	if len(idx.zones) == 0 {
		return nil, eris.Errorf("geo: no usable shapes in %s", shpPath)
	}

	zap.L().Info("geo: zone index loaded",
		zap.String("shapefile", shpPath),
		zap.Int("zones", len(idx.zones)),
	)
	return idx, nil
}

// Zone returns the code of the smallest zone whose bounding box contains the
// coordinate, or "" when no zone matches.
func (idx *Index) Zone(lon, lat float64) string {
	best := ""
	bestArea := 0.0
	for _, z := range idx.zones {
		if lon < z.minX || lon > z.maxX || lat < z.minY || lat > z.maxY {
			continue
		}
		area := (z.maxX - z.minX) * (z.maxY - z.minY)
		if best == "" || area < bestArea {
			best = z.code
			bestArea = area
		}
	}
	return best
}
