package render

// Metrics reports per-character advance widths.
type Metrics interface {
	Advance(r rune) float64
}

// Glyph is one character placed on the page. X is the left edge of the
// glyph box, Y the baseline.
type Glyph struct {
	Rune    rune
	X       float64
	Y       float64
	Advance float64
}

// Right returns the right edge of the glyph box.
func (g Glyph) Right() float64 { return g.X + g.Advance }

// Width returns the laid-out width of text: the sum of the advances plus one
// spacing between each pair of characters.
func Width(text string, m Metrics, spacing float64) float64 {
	total := 0.0
	n := 0
	for _, r := range text {
		total += m.Advance(r) + spacing
		n++
	}
	if n == 0 {
		return 0
	}
	return total - spacing
}

// Place lays text out character by character, centered on anchor.X with its
// baseline on anchor.Y. Letter spacing is applied between characters only.
func Place(text string, m Metrics, anchor Point, spacing float64) []Glyph {
	x := anchor.X - Width(text, m, spacing)/2
	glyphs := make([]Glyph, 0, len(text))
	for _, r := range text {
		adv := m.Advance(r)
		glyphs = append(glyphs, Glyph{Rune: r, X: x, Y: anchor.Y, Advance: adv})
		x += adv + spacing
	}
	return glyphs
}
