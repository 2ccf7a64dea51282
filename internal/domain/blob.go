package domain

import (
	"bytes"
	"io"
)

// BlobID identifies a stored blob. Data blobs are keyed by the encoded
// content hash, metadata blobs by the media id.
type BlobID string

// String returns the string representation of the BlobID.
func (id BlobID) String() string {
	return string(id)
}

// Blob is an opaque stored byte payload.
type Blob struct {
	ID   BlobID
	Body []byte
}

// NewBlob creates a new Blob with the given ID and content.
func NewBlob(id BlobID, body []byte) *Blob {
	return &Blob{
		ID:   id,
		Body: body,
	}
}

// Size returns the size of the blob's content in bytes.
func (blob *Blob) Size() int64 {
	return int64(len(blob.Body))
}

// Reader returns a reader over the blob's content.
func (blob *Blob) Reader() io.Reader {
	return bytes.NewReader(blob.Body)
}

// Bytes returns the blob's content.
func (blob *Blob) Bytes() []byte {
	return blob.Body
}
