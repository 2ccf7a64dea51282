package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// WidthParam is the query parameter that selects a resized variant.
const WidthParam = "width"

// UploadResult is returned for every uploaded file.
type UploadResult struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	SecureURL string `json:"secureUrl"`
	Format    string `json:"format"`
	Bytes     int64  `json:"bytes"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// NewUploadResult builds the upload result of meta served below baseURL.
func NewUploadResult(meta MediaMeta, baseURL string) UploadResult {
	return UploadResult{
		ID:        meta.ID.String(),
		Filename:  meta.Filename,
		SecureURL: strings.TrimSuffix(baseURL, "/") + "/media/" + meta.ID.String(),
		Format:    meta.Format(),
		Bytes:     meta.Size,
		Width:     meta.Width,
		Height:    meta.Height,
	}
}

// ResizedURL rewrites a media URL to request a variant of the given width.
// An existing width parameter is replaced; width 0 requests the original.
func ResizedURL(secureURL string, width int) (string, error) {
	if width < 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}

	u, err := url.Parse(secureURL)
	if err != nil {
		return "", fmt.Errorf("%w: parse url: %w", ErrInvalidArgument, err)
	}

	query := u.Query()
	if width == 0 {
		query.Del(WidthParam)
	} else {
		query.Set(WidthParam, strconv.Itoa(width))
	}

	u.RawQuery = query.Encode()

	return u.String(), nil
}
