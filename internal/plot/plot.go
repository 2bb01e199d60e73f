// Package plot renders convenience figures for catalogs and time series.
// The output format (raster or vector) follows the file extension.
package plot

import (
	"fmt"
	"image/color"
	"math"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/hydrodata/efashydro/pkg/ehdcc"
)

// steelBlue matches the default marker color of the curation notebooks.
var steelBlue = color.RGBA{R: 70, G: 130, B: 180, A: 200}

// StationsOptions tweaks the station map.
type StationsOptions struct {
	Title string
	// SizeByCatchment scales marker radius with the cube root of the
	// catchment area; stations without one fall back to the default size.
	SizeByCatchment bool
}

// Stations draws the catalog as a lon/lat scatter map and saves it to path.
func Stations(catalog *ehdcc.Catalog, path string, opts StationsOptions) error {
	if catalog.Len() == 0 {
		return fmt.Errorf("empty catalog: nothing to plot")
	}

	xys := make(plotter.XYs, 0, catalog.Len())
	radii := make([]vg.Length, 0, catalog.Len())
	for _, s := range catalog.Stations {
		xys = append(xys, plotter.XY{X: s.Geometry.X(), Y: s.Geometry.Y()})
		radii = append(radii, markerRadius(s, opts.SizeByCatchment))
	}

	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{Color: steelBlue, Radius: radii[i], Shape: draw.CircleGlyph{}}
	}

	p := gplot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "longitude"
	p.Y.Label.Text = "latitude"
	p.Add(plotter.NewGrid())
	p.Add(scatter)

	return p.Save(24*vg.Centimeter, 14*vg.Centimeter, path)
}

func markerRadius(s ehdcc.Station, sizeByCatchment bool) vg.Length {
	const base = vg.Length(2.5)
	if !sizeByCatchment || s.CatchmentKm2 == nil || *s.CatchmentKm2 <= 0 {
		return base
	}
	r := vg.Length(math.Cbrt(*s.CatchmentKm2) / 8)
	if r < base {
		return base
	}
	if r > 10 {
		return 10
	}
	return r
}

// SeriesOptions tweaks the time-series figure.
type SeriesOptions struct {
	Title  string
	YLabel string
}

// Series draws one line per variable column against time and saves the
// figure to path. Gap rows are skipped, so lines bridge missing stretches.
func Series(ts *ehdcc.TimeSeries, path string, opts SeriesOptions) error {
	if ts.Len() == 0 {
		return fmt.Errorf("empty series: nothing to plot")
	}

	p := gplot.New()
	p.Title.Text = opts.Title
	p.X.Tick.Marker = gplot.TimeTicks{Format: "2006-01-02"}
	p.Y.Label.Text = opts.YLabel

	plotted := 0
	for ci, name := range ts.Columns {
		var pts plotter.XYs
		for i, t := range ts.Index {
			v := ts.Value(name, i)
			if math.IsNaN(v) {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(t.Unix()), Y: v})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(ci)
		p.Add(line)
		p.Legend.Add(name, line)
		plotted++
	}
	if plotted == 0 {
		return fmt.Errorf("series has no values: nothing to plot")
	}
	p.Legend.Top = true

	return p.Save(24*vg.Centimeter, 12*vg.Centimeter, path)
}
