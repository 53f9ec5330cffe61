package experiment

import (
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// SavePlot draws a grouped bar chart of the per-coefficient variances of the
// three estimators and writes it to path. The format follows the extension.
func (r *Report) SavePlot(path string) error {
	p := plot.New()
	p.Title.Text = "Coefficient variance across trials"
	p.Y.Label.Text = "Variance"
	p.Y.Min = 0

	series := []struct {
		name   string
		values []float64
	}{
		{"Full data", r.FullVariance},
		{"Expert only", r.ExpertVariance},
		{"PPI", r.PPIVariance},
	}
	width := vg.Points(12)
	for i, s := range series {
		bars, err := plotter.NewBarChart(plotter.Values(s.values), width)
		if err != nil {
			return errors.Wrapf(err, "bar chart %s", s.name)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = vg.Length(i-1) * width
		p.Add(bars)
		p.Legend.Add(s.name, bars)
	}
	p.Legend.Top = true

	names := make([]string, len(r.PPIVariance))
	for j := range names {
		names[j] = coefficientName(j)
	}
	p.NominalX(names...)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}
