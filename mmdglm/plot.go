package mmdglm

import (
	"fmt"

	"github.com/kshedden/pointglm/glm"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// HistoryPlotter plots training curves against the epoch.
type HistoryPlotter struct {
	plt *plot.Plot

	labels []string
	lines  []*plotter.Line

	width  vg.Length
	height vg.Length
}

// NewHistoryPlotter returns a HistoryPlotter with a 6 by 4 inch canvas.
func NewHistoryPlotter() *HistoryPlotter {
	return &HistoryPlotter{
		plt:    plot.New(),
		width:  6,
		height: 4,
	}
}

// Width sets the width of the plot in inches.
func (hp *HistoryPlotter) Width(w float64) *HistoryPlotter {
	hp.width = vg.Length(w)
	return hp
}

// Height sets the height of the plot in inches.
func (hp *HistoryPlotter) Height(h float64) *HistoryPlotter {
	hp.height = vg.Length(h)
	return hp
}

// Add adds a curve whose k^th value was recorded at epoch k*every.
func (hp *HistoryPlotter) Add(values []float64, every int, label string) *HistoryPlotter {

	pts := make(plotter.XYs, len(values))
	for k, v := range values {
		pts[k].X = float64(k * every)
		pts[k].Y = v
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		panic(err)
	}
	line.Color = plotutil.Color(len(hp.lines))

	hp.lines = append(hp.lines, line)
	hp.labels = append(hp.labels, label)

	return hp
}

// AddHistory adds the loss and, if recorded, the negative log-likelihood.
func (hp *HistoryPlotter) AddHistory(h *History, label string) *HistoryPlotter {
	hp.Add(h.Loss, 1, label+" loss")
	if len(h.NLL) > 0 {
		hp.Add(h.NLL, 1, label+" nll")
	}
	return hp
}

// Plot constructs the plot.
func (hp *HistoryPlotter) Plot() *HistoryPlotter {

	hp.plt.X.Label.Text = "Epoch"
	hp.plt.Y.Label.Text = "Value"

	for i, line := range hp.lines {
		hp.plt.Add(line)
		hp.plt.Legend.Add(hp.labels[i], line)
	}
	hp.plt.Legend.Top = true

	return hp
}

// GetPlotStruct returns the plotting structure for this plot.
func (hp *HistoryPlotter) GetPlotStruct() *plot.Plot {
	return hp.plt
}

// Save writes the plot to the given file, with the format taken from the
// file extension.
func (hp *HistoryPlotter) Save(fname string) error {
	return hp.plt.Save(hp.width*vg.Inch, hp.height*vg.Inch, fname)
}

// SpikeRaster returns a raster plot of the spikes, one row per cell.
func SpikeRaster(t []float64, mask *glm.SpikeMask, title string) (*plot.Plot, error) {

	nt, nc := mask.Dims()
	if nt != len(t) {
		return nil, fmt.Errorf("%w: mask has %d bins for %d time points", glm.ErrShape, nt, len(t))
	}

	var pts plotter.XYs
	for j := 0; j < nt; j++ {
		for c := 0; c < nc; c++ {
			if mask.At(j, c) {
				pts = append(pts, plotter.XY{X: t[j], Y: float64(c)})
			}
		}
	}

	plt := plot.New()
	plt.Title.Text = title
	plt.X.Label.Text = "Time"
	plt.Y.Label.Text = "Trial"
	plt.X.Min = t[0]
	plt.X.Max = t[nt-1]
	plt.Y.Min = -0.5
	plt.Y.Max = float64(nc) - 0.5

	if len(pts) == 0 {
		return plt, nil
	}

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle.Shape = draw.BoxGlyph{}
	sc.GlyphStyle.Radius = vg.Points(1)
	plt.Add(sc)

	return plt, nil
}
