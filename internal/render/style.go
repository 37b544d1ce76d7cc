package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/hpungsan/certmail/internal/errors"
	"github.com/hpungsan/certmail/internal/names"
)

// CaseTransform controls how a name is cased before drawing.
type CaseTransform string

const (
	CaseTitle CaseTransform = "title" // default
	CaseUpper CaseTransform = "upper"
	CaseNone  CaseTransform = "none"
)

// Apply returns name with the transform applied.
func (c CaseTransform) Apply(name string) string {
	switch c {
	case CaseUpper:
		return names.Upper(name)
	case CaseNone:
		return name
	default:
		return names.Title(name)
	}
}

// Point is a position in template pixels, origin at the top-left corner.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Style holds the per-batch text parameters.
type Style struct {
	// FontSize is in template pixels; fractional sizes are allowed.
	FontSize float64
	Color    color.NRGBA
	// Anchor.X is the horizontal center of the name, Anchor.Y its baseline.
	Anchor  Point
	Spacing float64
	Case    CaseTransform
}

// Validate checks the style fields that do not need the font file.
func (s Style) Validate() error {
	if s.FontSize <= 0 {
		return errors.NewInvalidRequest(fmt.Sprintf("font size must be positive, got %g", s.FontSize))
	}
	switch s.Case {
	case "", CaseTitle, CaseUpper, CaseNone:
	default:
		return errors.NewInvalidRequest(fmt.Sprintf("case must be one of: title, upper, none (got %q)", s.Case))
	}
	return nil
}

// ParseColor parses "#RRGGBB", "#RGB" or "R,G,B" into an opaque color.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		if len(parts) != 3 {
			return color.NRGBA{}, errors.NewInvalidRequest(fmt.Sprintf("invalid color %q: want R,G,B", s))
		}
		var rgb [3]uint8
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return color.NRGBA{}, errors.NewInvalidRequest(fmt.Sprintf("invalid color %q: component %q out of 0-255", s, p))
			}
			rgb[i] = uint8(v)
		}
		return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff}, nil
	}

	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, errors.NewInvalidRequest(fmt.Sprintf("invalid color %q: want #RRGGBB", s))
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, errors.NewInvalidRequest(fmt.Sprintf("invalid color %q: want #RRGGBB", s))
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
