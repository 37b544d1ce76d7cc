package render

import (
	"image"
	"os"

	"github.com/disintegration/imaging"

	"github.com/hpungsan/certmail/internal/errors"
)

// Template is the decoded certificate background. It is never drawn on;
// every render works on a clone.
type Template struct {
	Path  string
	Image image.Image
}

// Width returns the template width in pixels.
func (t *Template) Width() int { return t.Image.Bounds().Dx() }

// Height returns the template height in pixels.
func (t *Template) Height() int { return t.Image.Bounds().Dy() }

// LoadTemplate decodes a PNG or JPEG template, honoring EXIF orientation.
func LoadTemplate(path string) (*Template, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewTemplateRead(path, err)
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.NewTemplateRead(path, err)
	}
	return &Template{Path: path, Image: img}, nil
}
