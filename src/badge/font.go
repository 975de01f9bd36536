package badge

import (
	"fmt"
	"os"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Metrics measures badge text for one font at one size.
type Metrics struct {
	family   string
	size     float64
	advances map[rune]float64
	fallback float64
}

// DefaultMetrics measures with Go Regular, which ships inside the binary.
func DefaultMetrics(size float64) (*Metrics, error) {
	return Measure(goregular.TTF, size)
}

// MetricsFromFile measures with the TTF or OTF font at path.
func MetricsFromFile(path string, size float64) (*Metrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading font %s: %w", path, err)
	}
	return Measure(data, size)
}

// Measure parses a TTF/OTF font and records the advance of every printable
// ASCII glyph at size pixels. Other runes count as the average advance.
func Measure(data []byte, size float64) (*Metrics, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72})
	if err != nil {
		return nil, fmt.Errorf("creating font face: %w", err)
	}
	defer face.Close()

	m := &Metrics{family: "Verdana", size: size, advances: make(map[rune]float64, 95)}
	if name, err := f.Name(nil, sfnt.NameIDFamily); err == nil && name != "" {
		m.family = name
	}

	var total fixed.Int26_6
	for r := rune(' '); r <= '~'; r++ {
		adv, ok := face.GlyphAdvance(r)
		if !ok {
			continue
		}
		m.advances[r] = float64(adv) / 64
		total += adv
	}
	m.fallback = size * 0.6
	if n := len(m.advances); n > 0 {
		m.fallback = float64(total) / 64 / float64(n)
	}
	return m, nil
}

// Width returns the rendered width of s in pixels.
func (m *Metrics) Width(s string) float64 {
	var w float64
	for _, r := range s {
		if adv, ok := m.advances[r]; ok {
			w += adv
		} else {
			w += m.fallback
		}
	}
	return w
}
