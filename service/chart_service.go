package service

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/Scalingo/sclng-language-stats/config"
	"github.com/Scalingo/sclng-language-stats/model"
)

const (
	legendItemHeight   = 25
	legendPadding      = 10
	legendMarkerSize   = 15
	legendMarkerOffset = 5
	legendTextOffset   = 25
	legendTextBase     = 17
	messageHeight    = 50
	fontFamily       = "Arial, sans-serif"
)

type ChartService interface {
	Render(stats model.LanguageStats, opts model.ChartOptions) string
	RenderMessage(width int, message string) string
	DefaultOptions() model.ChartOptions
}

type chartService struct {
	colors   ColorResolver
	defaults model.ChartOptions
}

func NewChartService(cfg config.ChartConfig, colors ColorResolver) ChartService {
	return chartService{
		colors: colors,
		defaults: model.ChartOptions{
			Width:              cfg.Width,
			BarHeight:          cfg.BarHeight,
			LegendItemWidth:    cfg.LegendItemWidth,
			LegendItemMaxCount: cfg.LegendItemMaxCount,
			FontSize:           cfg.FontSize,
		}.WithDefaults(model.DefaultChartOptions),
	}
}

func (s chartService) DefaultOptions() model.ChartOptions {
	return s.defaults
}

type barSegment struct {
	Language string
	Color    string
	X        float64
	Width    float64
}

type legendItem struct {
	Language   string
	Color      string
	Percentage float64
	X          int
	Y          int
}

type chartLayout struct {
	Width     int
	Height    int
	BarHeight int
	FontSize  int
	Segments  []barSegment
	Legend    []legendItem
}

// computeLayout places one bar segment per language and at most LegendItemMaxCount legend items
// languages left out of the legend are still drawn in the bar
// each legend row is legendItemHeight tall, its marker and text stay inside the row
func (s chartService) computeLayout(stats model.LanguageStats, opts model.ChartOptions) chartLayout {
	opts = opts.WithDefaults(s.defaults)
	total := float64(stats.Total())

	itemsPerRow := max(1, (opts.Width-legendPadding*2)/opts.LegendItemWidth)
	legendCount := min(len(stats), opts.LegendItemMaxCount)
	legendRows := (legendCount + itemsPerRow - 1) / itemsPerRow

	l := chartLayout{
		Width:     opts.Width,
		Height:    opts.BarHeight + legendRows*legendItemHeight,
		BarHeight: opts.BarHeight,
		FontSize:  opts.FontSize,
		Segments:  make([]barSegment, 0, len(stats)),
		Legend:    make([]legendItem, 0, legendCount),
	}

	x := 0.0
	for _, lc := range stats {
		share := 0.0
		if total > 0 {
			share = float64(lc.Bytes) / total
		}

		segmentWidth := share * float64(opts.Width)
		color := s.colors.Lookup(lc.Language)

		l.Segments = append(l.Segments, barSegment{
			Language: lc.Language,
			Color:    color,
			X:        x,
			Width:    segmentWidth,
		})
		x += segmentWidth

		if len(l.Legend) < legendCount {
			i := len(l.Legend)
			l.Legend = append(l.Legend, legendItem{
				Language:   lc.Language,
				Color:      color,
				Percentage: share * 100,
				X:          legendPadding + (i%itemsPerRow)*opts.LegendItemWidth,
				Y:          opts.BarHeight + (i/itemsPerRow)*legendItemHeight,
			})
		}
	}

	return l
}

// Render draws the stacked bar and its legend as a standalone SVG document
// an empty stats mapping renders a message instead
func (s chartService) Render(stats model.LanguageStats, opts model.ChartOptions) string {
	if len(stats) == 0 {
		return s.RenderMessage(opts.Width, "No language data available")
	}

	l := s.computeLayout(stats, opts)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		l.Width, l.Height, l.Width, l.Height)

	for _, seg := range l.Segments {
		fmt.Fprintf(&buf, `  <rect x="%.2f" y="0" width="%.2f" height="%d" fill="%s"><title>%s</title></rect>`+"\n",
			seg.X, seg.Width, l.BarHeight, escapeXML(seg.Color), escapeXML(seg.Language))
	}

	for _, item := range l.Legend {
		fmt.Fprintf(&buf, `  <rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`+"\n",
			item.X, item.Y+legendMarkerOffset, legendMarkerSize, legendMarkerSize, escapeXML(item.Color))
		fmt.Fprintf(&buf, `  <text x="%d" y="%d" font-family="%s" font-size="%d">%s (%.1f%%)</text>`+"\n",
			item.X+legendTextOffset, item.Y+legendTextBase, fontFamily, l.FontSize, escapeXML(item.Language), item.Percentage)
	}

	buf.WriteString("</svg>\n")
	return buf.String()
}

// RenderMessage draws an SVG holding only the message, used when there is nothing to chart
func (s chartService) RenderMessage(width int, message string) string {
	if width <= 0 {
		width = s.defaults.Width
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		width, messageHeight, width, messageHeight)
	fmt.Fprintf(&buf, `  <text x="%d" y="%d" text-anchor="middle" dominant-baseline="middle" font-family="%s" font-size="%d" fill="#d73a49">%s</text>`+"\n",
		width/2, messageHeight/2, fontFamily, s.defaults.FontSize, escapeXML(message))
	buf.WriteString("</svg>\n")

	return buf.String()
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
