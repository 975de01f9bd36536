// Package badge renders the build-status SVG badge, sizing both halves
// from measured font metrics.
package badge

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"text/template"

	"github.com/google/renameio/v2"
)

// Badge is the text and colour of one status badge.
type Badge struct {
	Label string // left half
	Value string // right half
	Color string // right half fill, e.g. "#4c1"
}

// ForStatus returns the badge for a run status ("success" or "failed").
func ForStatus(label, status string) Badge {
	switch status {
	case "success":
		return Badge{Label: label, Value: "passing", Color: "#4c1"}
	case "failed":
		return Badge{Label: label, Value: "failing", Color: "#e05d44"}
	default:
		return Badge{Label: label, Value: status, Color: "#9f9f9f"}
	}
}

// padding is the horizontal space around each half's text.
const padding = 10

// layout is the computed geometry handed to the SVG template. Text fields
// are already XML-escaped.
type layout struct {
	Width, LabelWidth, ValueWidth int
	LabelX, ValueX                int
	Label, Value, Color, Family   string
	Size                          float64
}

var svgTemplate = template.Must(template.New("badge").Parse(
	`<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="20">` +
		`<linearGradient id="s" x2="0" y2="100%"><stop offset="0" stop-color="#bbb" stop-opacity=".1"/><stop offset="1" stop-opacity=".1"/></linearGradient>` +
		`<clipPath id="r"><rect width="{{.Width}}" height="20" rx="3" fill="#fff"/></clipPath>` +
		`<g clip-path="url(#r)">` +
		`<rect width="{{.LabelWidth}}" height="20" fill="#555"/>` +
		`<rect x="{{.LabelWidth}}" width="{{.ValueWidth}}" height="20" fill="{{.Color}}"/>` +
		`<rect width="{{.Width}}" height="20" fill="url(#s)"/>` +
		`</g>` +
		`<g fill="#fff" text-anchor="middle" font-family="{{.Family}},Verdana,Geneva,sans-serif" font-size="{{.Size}}">` +
		`<text x="{{.LabelX}}" y="15" fill="#010101" fill-opacity=".3">{{.Label}}</text>` +
		`<text x="{{.LabelX}}" y="14">{{.Label}}</text>` +
		`<text x="{{.ValueX}}" y="15" fill="#010101" fill-opacity=".3">{{.Value}}</text>` +
		`<text x="{{.ValueX}}" y="14">{{.Value}}</text>` +
		`</g></svg>`,
))

// Renderer draws badges with one set of font metrics.
type Renderer struct {
	metrics *Metrics
}

// NewRenderer returns a renderer measuring text with m.
func NewRenderer(m *Metrics) *Renderer {
	return &Renderer{metrics: m}
}

// Render returns b as a flat, shields.io style SVG document.
func (r *Renderer) Render(b Badge) ([]byte, error) {
	lw := int(math.Round(r.metrics.Width(b.Label))) + padding
	vw := int(math.Round(r.metrics.Width(b.Value))) + padding
	l := layout{
		Width:      lw + vw,
		LabelWidth: lw,
		ValueWidth: vw,
		LabelX:     lw / 2,
		ValueX:     lw + vw/2,
		Label:      escape(b.Label),
		Value:      escape(b.Value),
		Color:      escape(b.Color),
		Family:     escape("'" + r.metrics.family + "'"),
		Size:       r.metrics.size,
	}

	var buf bytes.Buffer
	if err := svgTemplate.Execute(&buf, l); err != nil {
		return nil, fmt.Errorf("rendering badge: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders b and replaces path atomically.
func (r *Renderer) WriteFile(path string, b Badge) error {
	svg, err := r.Render(b)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating badge directory: %w", err)
	}
	if err := renameio.WriteFile(path, svg, 0o644); err != nil {
		return fmt.Errorf("writing badge %s: %w", path, err)
	}
	return nil
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
