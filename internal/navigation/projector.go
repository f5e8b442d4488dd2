// Package navigation places dead-reckoned positions on the globe. Local
// positions are east (x) and north (y) metres from a fixed origin.
package navigation

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/banshee-data/deadreckon/internal/kalman"
)

// Projector maps local east/north offsets to WGS84 longitude/latitude.
type Projector struct {
	origin orb.Point
}

// NewProjector anchors local coordinates at (lat, lon) in degrees.
func NewProjector(lat, lon float64) (*Projector, error) {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("origin latitude %v out of range", lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("origin longitude %v out of range", lon)
	}
	return &Projector{origin: orb.Point{lon, lat}}, nil
}

// Origin returns the anchor point as [lon, lat].
func (p *Projector) Origin() orb.Point { return p.origin }

// Project returns the point x metres east and y metres north of the origin.
func (p *Projector) Project(x, y float64) orb.Point {
	d := math.Hypot(x, y)
	if d == 0 {
		return p.origin
	}
	bearing := math.Atan2(x, y) * 180 / math.Pi
	return geo.PointAtBearingAndDistance(p.origin, bearing, d)
}

// Unproject is the inverse of Project.
func (p *Projector) Unproject(pt orb.Point) (x, y float64) {
	d := geo.DistanceHaversine(p.origin, pt)
	b := geo.Bearing(p.origin, pt) * math.Pi / 180
	return d * math.Sin(b), d * math.Cos(b)
}

// Point projects the horizontal position of s. Z is ignored.
func (p *Projector) Point(s kalman.MotionSample) orb.Point {
	return p.Project(s.X.Position, s.Y.Position)
}

// Track projects samples in order.
func (p *Projector) Track(samples []kalman.MotionSample) orb.LineString {
	ls := make(orb.LineString, 0, len(samples))
	for _, s := range samples {
		ls = append(ls, p.Point(s))
	}
	return ls
}

// FeatureCollection renders samples as a track LineString plus a Point for
// the newest position. An empty input yields an empty collection.
func (p *Projector) FeatureCollection(samples []kalman.MotionSample) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(samples) == 0 {
		return fc
	}
	first, last := samples[0], samples[len(samples)-1]

	if len(samples) > 1 {
		track := geojson.NewFeature(p.Track(samples))
		track.Properties["kind"] = "track"
		track.Properties["samples"] = len(samples)
		track.Properties["start"] = first.Timestamp
		track.Properties["end"] = last.Timestamp
		track.Properties["length_m"] = geo.Length(track.Geometry)
		fc.Append(track)
	}

	pos := geojson.NewFeature(p.Point(last))
	pos.Properties["kind"] = "position"
	pos.Properties["seq"] = last.Seq
	pos.Properties["timestamp"] = last.Timestamp
	pos.Properties["speed"] = last.Speed()
	pos.Properties["altitude_m"] = last.Z.Position
	fc.Append(pos)
	return fc
}
