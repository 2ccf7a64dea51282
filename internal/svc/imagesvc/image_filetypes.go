package imagesvc

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"github.com/mkrupp/inkspira/internal/domain"
)

const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
	MIMETypeTIFF = "image/tiff"
)

// jpegQuality is used when re-encoding resized JPEG variants.
const jpegQuality = 85

// imageFormat describes one accepted upload format.
type imageFormat struct {
	mimeType string
	exts     []string
	magic    []string
	decode   func(io.Reader) (image.Image, error)
	encode   func(io.Writer, image.Image) error
}

//nolint:gochecknoglobals
var imageFormats = []imageFormat{
	{
		mimeType: MIMETypeJPEG,
		exts:     []string{".jpg", ".jpeg"},
		magic:    []string{"\xFF\xD8\xFF"},
		decode:   jpeg.Decode,
		encode: func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
		},
	},
	{
		mimeType: MIMETypePNG,
		exts:     []string{".png"},
		magic:    []string{"\x89PNG\r\n\x1A\n"},
		decode:   png.Decode,
		encode:   png.Encode,
	},
	{
		mimeType: MIMETypeTIFF,
		exts:     []string{".tif", ".tiff"},
		magic:    []string{"II*\x00", "MM\x00*"},
		decode:   tiff.Decode,
		encode:   func(w io.Writer, img image.Image) error { return tiff.Encode(w, img, nil) },
	},
}

func formatByFilename(filename string) (imageFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	for _, format := range imageFormats {
		for _, candidate := range format.exts {
			if candidate == ext {
				return format, nil
			}
		}
	}

	return imageFormat{}, fmt.Errorf("%w: %q", domain.ErrImageTypeNotSupported, ext)
}

func formatByMIMEType(mimeType string) (imageFormat, error) {
	for _, format := range imageFormats {
		if format.mimeType == mimeType {
			return format, nil
		}
	}

	return imageFormat{}, fmt.Errorf("%w: %q", domain.ErrImageTypeNotSupported, mimeType)
}

func (f imageFormat) matches(data []byte) bool {
	for _, magic := range f.magic {
		if bytes.HasPrefix(data, []byte(magic)) {
			return true
		}
	}

	return false
}
