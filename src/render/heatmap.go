package render

import (
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
)

var shortField = map[string]string{
	"download_mbps": "down",
	"upload_mbps":   "up",
	"ping_ms":       "ping",
	"rssi":          "rssi",
	"noise":         "noise",
	"mcs_index":     "mcs",
}

var undefinedCell = drawing.Color{R: 200, G: 200, B: 200, A: 255}

// heatmap draws a correlation matrix as a grid of coloured cells with the value printed in each.
type heatmap struct {
	title  string
	labels []string
	matrix [][]*float64
	width  int
	height int
}

func heatmapChart(run *analysis.RunExport, opts Options, _ colourMap) (pngChart, error) {
	c := run.Correlation
	defined := false
	for _, row := range c.Matrix {
		for _, v := range row {
			defined = defined || v != nil
		}
	}
	if !defined || len(c.Fields) == 0 {
		return nil, nil
	}
	labels := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		if s, ok := shortField[f]; ok {
			labels[i] = s
		} else {
			labels[i] = f
		}
	}
	return &heatmap{
		title:  fmt.Sprintf("Correlation (%s)", run.RunID),
		labels: labels,
		matrix: c.Matrix,
		width:  opts.Height,
		height: opts.Height,
	}, nil
}

// correlationColour blends white towards red for positive and blue for negative values.
func correlationColour(v *float64) drawing.Color {
	if v == nil {
		return undefinedCell
	}
	x := *v
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	fade := func(f float64) uint8 { return uint8(255 - 255*f) }
	if x >= 0 {
		return drawing.Color{R: 255, G: fade(x), B: fade(x), A: 255}
	}
	return drawing.Color{R: fade(-x), G: fade(-x), B: 255, A: 255}
}

func (h *heatmap) Render(rp chart.RendererProvider, w io.Writer) error {
	r, err := rp(h.width, h.height)
	if err != nil {
		return err
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return err
	}
	text := func(size float64) chart.Style {
		return chart.Style{Font: font, FontSize: size, FontColor: drawing.ColorBlack}
	}

	chart.Draw.Box(r, chart.Box{Right: h.width, Bottom: h.height}, chart.Style{FillColor: drawing.ColorWhite, StrokeColor: drawing.ColorWhite})
	chart.Draw.Text(r, h.title, 16, 28, text(14))

	const top, left, margin = 48, 64, 16
	n := len(h.labels)
	cell := (h.width - left - margin) / n
	if alt := (h.height - top - margin) / n; alt < cell {
		cell = alt
	}
	if cell <= 0 {
		return fmt.Errorf("heatmap: %dx%d too small for %d fields", h.width, h.height, n)
	}

	for i, label := range h.labels {
		chart.Draw.Text(r, label, 8, top+i*cell+cell/2+4, text(10))
		chart.Draw.Text(r, label, left+i*cell+4, top-6, text(10))
	}
	for i := 0; i < n && i < len(h.matrix); i++ {
		for j := 0; j < n && j < len(h.matrix[i]); j++ {
			v := h.matrix[i][j]
			box := chart.Box{Top: top + i*cell, Left: left + j*cell, Right: left + (j+1)*cell, Bottom: top + (i+1)*cell}
			chart.Draw.Box(r, box, chart.Style{FillColor: correlationColour(v), StrokeColor: drawing.ColorWhite, StrokeWidth: 1})
			label := "n/a"
			if v != nil {
				label = fmt.Sprintf("%.2f", *v)
			}
			chart.Draw.Text(r, label, box.Left+cell/2-12, box.Top+cell/2+4, text(9))
		}
	}
	return r.Save(w)
}
