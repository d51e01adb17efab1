package geovrt

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wgdzlh/geovrt/domain"
	"github.com/wgdzlh/geovrt/log"
)

// bands read at once by Transect
const transectWorkers = 4

// TransectLine is what Transect samples along one segment.
type TransectLine struct {
	Pixels []orb.Point // integer pixel/line inside the raster
	LonLat []orb.Point // lon/lat of Pixels
	Values [][]float64 // per requested band, one value per pixel
}

// Transect samples bands along each segment. A segment of one point is a
// single sample; longer segments are walked vertex to vertex, one sample
// per pixel of length. With lonlat the vertices are longitude/latitude,
// else pixel/line. Samples off the raster are dropped.
func (s *Scene) Transect(segments [][]orb.Point, bands []Selector, lonlat bool) (lines []TransectLine, err error) {
	if len(segments) == 0 {
		return nil, ErrEmptyTransect
	}
	if len(bands) == 0 {
		bands = []Selector{ByIndex(1)}
	}
	numbers := make([]int, len(bands))
	for i, sel := range bands {
		if numbers[i], err = s.BandNumber(sel); err != nil {
			return
		}
	}
	dom := s.Domain()
	lines = make([]TransectLine, len(segments))
	for i, seg := range segments {
		if len(seg) == 0 {
			return nil, fmt.Errorf("%w: segment %d", ErrEmptyTransect, i+1)
		}
		if lines[i].Pixels, err = s.walk(seg, lonlat); err != nil {
			return
		}
		if lines[i].LonLat, err = dom.Transform(lines[i].Pixels, domain.PixelToGeo); err != nil {
			return
		}
		lines[i].Values = make([][]float64, len(numbers))
	}

	var g errgroup.Group
	g.SetLimit(transectWorkers)
	for k, no := range numbers {
		g.Go(func() error {
			a, err := s.Get(ByIndex(no))
			if err != nil {
				return err
			}
			for i := range lines {
				vals := make([]float64, len(lines[i].Pixels))
				for j, p := range lines[i].Pixels {
					vals[j] = a.At(int(p[0]), int(p[1]))
				}
				lines[i].Values[k] = vals
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	log.Debug(logTag+"transect", zap.Int("segments", len(segments)), zap.Int("bands", len(numbers)))
	return
}

// walk turns the vertices of one segment into the raster pixels between
// them.
func (s *Scene) walk(seg []orb.Point, lonlat bool) (pixels []orb.Point, err error) {
	xs, ys := make([]float64, len(seg)), make([]float64, len(seg))
	for i, p := range seg {
		xs[i], ys[i] = p[0], p[1]
	}
	if lonlat {
		if err = s.toPixels(xs, ys); err != nil {
			return
		}
	}
	if len(seg) == 1 {
		xs, ys = append(xs, xs[0]), append(ys, ys[0])
	}
	w, h := s.Width(), s.Height()
	for i := 0; i+1 < len(xs); i++ {
		x0, y0, x1, y1 := xs[i], ys[i], xs[i+1], ys[i+1]
		if math.IsNaN(x0 + y0 + x1 + y1) {
			log.Debug(logTag+"transect vertex cannot be located", zap.Int("vertex", i))
			continue
		}
		n := max(int(math.Hypot(x1-x0, y1-y0)), 1)
		for k := 0; k < n; k++ {
			f := 0.0
			if n > 1 {
				f = float64(k) / float64(n-1)
			}
			x, y := int(x0+(x1-x0)*f), int(y0+(y1-y0)*f)
			if x < 0 || y < 0 || x >= w || y >= h {
				continue
			}
			pixels = append(pixels, orb.Point{float64(x), float64(y)})
		}
	}
	return
}
