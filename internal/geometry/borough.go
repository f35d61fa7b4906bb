package geometry

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"cityscope/server/internal/models"
)

// BoroughManager derives borough boundary hulls from neighborhood
// coordinates for the map overlay.
type BoroughManager struct {
	logger *logrus.Logger
}

func NewBoroughManager(logger *logrus.Logger) *BoroughManager {
	return &BoroughManager{logger: logger}
}

// BuildHulls groups neighborhoods by borough and returns one convex hull
// feature per borough with at least three neighborhoods. Boroughs with
// fewer points are skipped; they cannot enclose an area.
func (bm *BoroughManager) BuildHulls(neighborhoods []models.Neighborhood) *geojson.FeatureCollection {
	type group struct {
		name   string
		points []orb.Point
	}

	groups := make(map[int64]*group)
	order := make([]int64, 0)
	for _, n := range neighborhoods {
		g, ok := groups[n.BoroughID]
		if !ok {
			g = &group{name: n.BoroughName}
			groups[n.BoroughID] = g
			order = append(order, n.BoroughID)
		}
		g.points = append(g.points, orb.Point{n.Longitude, n.Latitude})
	}

	fc := geojson.NewFeatureCollection()
	for _, id := range order {
		g := groups[id]
		if len(g.points) < 3 {
			bm.logger.WithFields(logrus.Fields{
				"borough_id": id,
				"points":     len(g.points),
			}).Warn("Not enough neighborhoods to build a borough hull")
			continue
		}

		hull := convexHull(g.points)
		if hull == nil {
			continue
		}

		centroid := Centroid(g.points)
		feature := geojson.NewFeature(orb.Polygon{hull})
		feature.Properties = geojson.Properties{
			"borough_id":         id,
			"borough":            g.name,
			"neighborhood_count": len(g.points),
			"centroid_lat":       centroid[1],
			"centroid_lon":       centroid[0],
		}
		fc.Append(feature)
	}

	return fc
}

// Centroid returns the arithmetic mean of a point set.
func Centroid(points []orb.Point) orb.Point {
	if len(points) == 0 {
		return orb.Point{}
	}
	var sx, sy float64
	for _, p := range points {
		sx += p[0]
		sy += p[1]
	}
	n := float64(len(points))
	return orb.Point{sx / n, sy / n}
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// convexHull computes the convex hull of a point set as a closed ring
// (Andrew's monotone chain). Returns nil for degenerate input: fewer than
// three distinct points, or all points collinear.
func convexHull(input []orb.Point) orb.Ring {
	points := make([]orb.Point, len(input))
	copy(points, input)

	sort.Slice(points, func(i, j int) bool {
		if points[i][0] != points[j][0] {
			return points[i][0] < points[j][0]
		}
		return points[i][1] < points[j][1]
	})

	// Drop duplicates so collinearity checks see distinct points.
	distinct := points[:0]
	for i, p := range points {
		if i == 0 || p != points[i-1] {
			distinct = append(distinct, p)
		}
	}
	points = distinct
	if len(points) < 3 {
		return nil
	}

	var lower []orb.Point
	for _, p := range points {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}

	var upper []orb.Point
	for i := len(points) - 1; i >= 0; i-- {
		p := points[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	if len(hull) < 3 {
		return nil
	}

	// Close the ring
	hull = append(hull, hull[0])
	return orb.Ring(hull)
}
