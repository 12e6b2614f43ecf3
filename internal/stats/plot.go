package stats

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Series is one named error history on a plot.
type Series struct {
	Name   string
	Values []float64
}

var palette = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
}

// PlotErrorHistory draws each series against its iteration and saves the plot.
// The image format follows the extension of path.
func PlotErrorHistory(path, title string, series ...Series) error {
	if len(series) == 0 {
		return errors.New("at least one series is required")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Error"
	p.Add(plotter.NewGrid())

	for i, s := range series {
		if len(s.Values) == 0 {
			return errors.Errorf("series %q is empty", s.Name)
		}
		pts := make(plotter.XYs, len(s.Values))
		for j, v := range s.Values {
			pts[j].X = float64(j + 1)
			pts[j].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "series %q", s.Name)
		}
		line.Color = palette[i%len(palette)]
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		if s.Name != "" {
			p.Legend.Add(s.Name, line)
		}
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "save plot")
	}
	return nil
}
