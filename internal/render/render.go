// Package render composites a recipient name onto a certificate template.
package render

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/hpungsan/certmail/internal/errors"
)

// Option configures a Renderer.
type Option func(*options)

type options struct {
	dpi         float64
	jpegQuality int
}

func defaultOptions() *options {
	return &options{
		dpi:         150,
		jpegQuality: 95,
	}
}

// WithDPI sets the resolution used to size PDF pages from template pixels.
// Default: 150.
func WithDPI(dpi float64) Option {
	return func(o *options) {
		if dpi > 0 {
			o.dpi = dpi
		}
	}
}

// WithJPEGQuality sets the quality for .jpg output.
// Default: 95.
func WithJPEGQuality(q int) Option {
	return func(o *options) {
		if q > 0 && q <= 100 {
			o.jpegQuality = q
		}
	}
}

// Renderer draws names onto one template with one style. The template and
// face are read-only after New; Render keeps no state between calls.
type Renderer struct {
	template *Template
	face     font.Face
	metrics  Metrics
	style    Style
	opts     *options
}

// New builds a Renderer. The font must already be parsed (see LoadFont).
func New(tpl *Template, f *opentype.Font, style Style, opts ...Option) (*Renderer, error) {
	if err := style.Validate(); err != nil {
		return nil, err
	}
	if tpl == nil || tpl.Image == nil {
		return nil, errors.NewTemplateRead("", fmt.Errorf("no template loaded"))
	}
	face, err := newFace(f, style.FontSize)
	if err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Renderer{
		template: tpl,
		face:     face,
		metrics:  faceMetrics{face: face},
		style:    style,
		opts:     o,
	}, nil
}

// Close releases the font face.
func (r *Renderer) Close() error {
	return r.face.Close()
}

// Layout returns the glyph placement for name after the case transform.
func (r *Renderer) Layout(name string) []Glyph {
	return Place(r.style.Case.Apply(name), r.metrics, r.style.Anchor, r.style.Spacing)
}

// Compose returns a new image: the template with name drawn over it.
func (r *Renderer) Compose(name string) *image.NRGBA {
	page := imaging.Clone(r.template.Image)
	overlay := image.NewNRGBA(page.Bounds())

	d := &font.Drawer{
		Dst:  overlay,
		Src:  image.NewUniform(r.style.Color),
		Face: r.face,
	}
	for _, g := range r.Layout(name) {
		d.Dot = fixed.Point26_6{X: toFixed(g.X), Y: toFixed(g.Y)}
		d.DrawString(string(g.Rune))
	}

	return imaging.Overlay(page, overlay, image.Pt(0, 0), 1.0)
}

// Render composes name and writes it to dest. The format follows dest's extension.
func (r *Renderer) Render(name, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.NewRenderFailed(name, err)
	}
	if err := encode(r.Compose(name), dest, r.opts); err != nil {
		return errors.NewRenderFailed(name, err)
	}
	return nil
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}
