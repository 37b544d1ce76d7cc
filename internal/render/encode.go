package render

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
)

// Formats lists the output extensions Render understands.
var Formats = []string{"pdf", "png", "jpg", "jpeg"}

// ValidFormat reports whether ext (with or without the dot) is supported.
func ValidFormat(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, f := range Formats {
		if f == ext {
			return true
		}
	}
	return false
}

func encode(img *image.NRGBA, dest string, o *options) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(dest), "."))
	switch ext {
	case "pdf":
		return encodePDF(img, dest, o.dpi)
	case "png", "jpg", "jpeg":
		return imaging.Save(img, dest, imaging.JPEGQuality(o.jpegQuality))
	default:
		return fmt.Errorf("unsupported output format %q (want one of %s)", ext, strings.Join(Formats, ", "))
	}
}

// encodePDF writes a single page sized to the image at dpi.
func encodePDF(img *image.NRGBA, dest string, dpi float64) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return fmt.Errorf("encode page: %w", err)
	}

	w := float64(img.Bounds().Dx()) * 72 / dpi
	h := float64(img.Bounds().Dy()) * 72 / dpi

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("page", opts, &buf)
	pdf.ImageOptions("page", 0, 0, w, h, false, opts, 0, "")

	return pdf.OutputFileAndClose(dest)
}
