package domain

import (
	"bytes"
	"fmt"
	"io"
)

var (
	ErrMediaTooLarge         = fmt.Errorf("%w: media too large", ErrInvalidArgument)
	ErrMediaNotFound         = fmt.Errorf("%w: media", ErrNotFound)
	ErrNoMediaID             = fmt.Errorf("%w: no media id", ErrInvalidArgument)
	ErrImageTypeNotSupported = fmt.Errorf("%w: image type not supported", ErrInvalidArgument)
	ErrImageTypeMismatch     = fmt.Errorf("%w: image ext does not match content type", ErrInvalidArgument)
	ErrInvalidWidth          = fmt.Errorf("%w: invalid width", ErrInvalidArgument)
)

// MediaID identifies an uploaded media file. It shares the blob id space so
// metadata blobs can be stored under it.
type MediaID = BlobID

// ParseMediaID normalizes a media id taken from user input.
func ParseMediaID(id string) (MediaID, error) {
	id = NormalizeID(id)
	if id == "" {
		return "", ErrNoMediaID
	}

	return MediaID(id), nil
}

// Media is an uploaded file together with its metadata.
type Media struct {
	data []byte
	meta MediaMeta
}

// NewMedia creates a Media from content and metadata. Hash, size and id of
// the metadata are derived from the content.
func NewMedia(data []byte, meta MediaMeta) Media {
	meta.update(data)

	return Media{data: data, meta: meta}
}

// WithData returns a variant of m carrying other content under the same metadata.
func (m Media) WithData(data []byte) Media {
	return Media{data: data, meta: m.meta}
}

func (m Media) ID() MediaID       { return m.meta.ID }
func (m Media) Hash() string      { return m.meta.Hash }
func (m Media) Meta() MediaMeta   { return m.meta }
func (m Media) MIMEType() string  { return m.meta.MIMEType }
func (m Media) Owner() string     { return m.meta.Owner }
func (m Media) Bytes() []byte     { return m.data }
func (m Media) Size() int64       { return int64(len(m.data)) }
func (m Media) Reader() io.Reader { return bytes.NewReader(m.data) }

// WriteTo writes the media's content to writer.
func (m Media) WriteTo(writer io.Writer) (int64, error) {
	n, err := writer.Write(m.data)
	if err != nil {
		return int64(n), fmt.Errorf("write: %w", err)
	}

	return int64(n), nil
}

// AsBlob converts the content to a blob keyed by its hash.
func (m Media) AsBlob() *Blob {
	return NewBlob(BlobID(m.meta.Hash), m.data)
}
