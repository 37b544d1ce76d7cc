package render

import (
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"

	"github.com/hpungsan/certmail/internal/errors"
)

// LoadFont reads and parses an outline font. Called once per batch so a bad
// font fails before any name is rendered.
func LoadFont(path string) (*opentype.Font, error) {
	if path == "" {
		return nil, errors.NewFontLoad(path, fmt.Errorf("no font configured"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewFontLoad(path, err)
	}
	return ParseFont(path, data)
}

// ParseFont parses font bytes; path is used for error messages only.
func ParseFont(path string, data []byte) (*opentype.Font, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, errors.NewFontLoad(path, err)
	}
	return f, nil
}

// newFace builds an unhinted face so advances keep their fractional part.
func newFace(f *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, errors.NewFontLoad("", err)
	}
	return face, nil
}

// faceMetrics measures glyph advances from a font.Face.
type faceMetrics struct {
	face font.Face
}

// Advance returns the advance width of r in pixels.
func (m faceMetrics) Advance(r rune) float64 {
	adv, _ := m.face.GlyphAdvance(r)
	return float64(adv) / 64
}
