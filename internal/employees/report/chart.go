// Package report builds the derived outputs of the employee view: the
// salary-by-designation chart and the spreadsheet export.
package report

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"

	"github.com/gartstein/employees/internal/employees/models"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Bar is the summed salary of one designation.
type Bar struct {
	Designation string  `json:"designation"`
	Total       float64 `json:"total"`
	Label       string  `json:"label"`
}

// SalaryByDesignation sums salaries per designation in first-seen order.
// Rows without a designation or a numeric salary are skipped.
func SalaryByDesignation(rows []models.Employee) []Bar {
	index := make(map[string]int)
	var bars []Bar
	for _, row := range rows {
		designation := strings.TrimSpace(row.Designation)
		if designation == "" || !row.Salary.Numeric() {
			continue
		}
		i, ok := index[designation]
		if !ok {
			i = len(bars)
			index[designation] = i
			bars = append(bars, Bar{Designation: designation})
		}
		bars[i].Total += float64(row.Salary)
	}
	if bars == nil {
		bars = []Bar{}
	}
	return bars
}

// Labeler formats amounts for axis and bar labels.
type Labeler struct {
	printer *message.Printer
	prefix  string
}

func NewLabeler(lang language.Tag, currencyPrefix string) *Labeler {
	return &Labeler{printer: message.NewPrinter(lang), prefix: currencyPrefix}
}

// Format renders v with thousands grouping and the currency prefix.
func (l *Labeler) Format(v float64) string {
	return l.prefix + l.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// Label fills in the Label of every bar.
func (l *Labeler) Label(bars []Bar) []Bar {
	for i := range bars {
		bars[i].Label = l.Format(bars[i].Total)
	}
	return bars
}

// ChartOptions sizes the rendered chart.
type ChartOptions struct {
	Width  int
	Height int
}

var (
	chartBackground = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	chartBar        = color.RGBA{R: 0x4b, G: 0xc0, B: 0xc0, A: 0xff}
	chartAxis       = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
)

const (
	chartMargin  = 24
	chartLineGap = 16
)

// MaxChartSize bounds each side of a rendered chart in pixels.
const MaxChartSize = 4096

// RenderBarChart draws labelled bars as a PNG.
func RenderBarChart(w io.Writer, bars []Bar, opts ChartOptions) error {
	if opts.Width <= 0 {
		opts.Width = 640
	}
	if opts.Height <= 0 {
		opts.Height = 400
	}
	if opts.Width < 4*chartMargin || opts.Height < 4*chartMargin+2*chartLineGap {
		return fmt.Errorf("chart size %dx%d is too small", opts.Width, opts.Height)
	}
	if opts.Width > MaxChartSize || opts.Height > MaxChartSize {
		return fmt.Errorf("chart size %dx%d exceeds %d pixels per side", opts.Width, opts.Height, MaxChartSize)
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	xdraw.Draw(img, img.Bounds(), image.NewUniform(chartBackground), image.Point{}, xdraw.Src)

	baseline := opts.Height - chartMargin - chartLineGap
	top := chartMargin + chartLineGap
	axis := image.Rect(chartMargin, baseline, opts.Width-chartMargin, baseline+1)
	xdraw.Draw(img, axis, image.NewUniform(chartAxis), image.Point{}, xdraw.Src)

	if len(bars) == 0 {
		drawText(img, "No data", opts.Width/2-21, opts.Height/2)
		return png.Encode(w, img)
	}

	maxTotal := 0.0
	for _, bar := range bars {
		maxTotal = max(maxTotal, bar.Total)
	}

	slot := (opts.Width - 2*chartMargin) / len(bars)
	barWidth := max(slot*2/3, 1)
	for i, bar := range bars {
		x0 := chartMargin + i*slot + (slot-barWidth)/2
		height := 0
		if maxTotal > 0 && bar.Total > 0 {
			height = int(float64(baseline-top) * bar.Total / maxTotal)
		}
		rect := image.Rect(x0, baseline-height, x0+barWidth, baseline)
		xdraw.Draw(img, rect, image.NewUniform(chartBar), image.Point{}, xdraw.Src)

		drawText(img, fitLabel(bar.Designation, slot), x0, baseline+chartLineGap-2)
		label := bar.Label
		if label == "" {
			label = fmt.Sprintf("%.0f", bar.Total)
		}
		drawText(img, fitLabel(label, slot), x0, baseline-height-4)
	}

	return png.Encode(w, img)
}

func drawText(img *image.RGBA, text string, x, y int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(chartAxis),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// fitLabel truncates text to the number of 7px glyphs that fit in width.
func fitLabel(text string, width int) string {
	limit := max(width/basicfont.Face7x13.Advance, 1)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
