package domain

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// MediaMeta describes an uploaded file.
//
//nolint:recvcheck
type MediaMeta struct {
	ID       MediaID `json:"id"`
	Filename string  `json:"filename"`
	Hash     string  `json:"hash"`     // content hash, Crockford Base32
	Size     int64   `json:"size"`     // bytes
	Owner    string  `json:"owner"`    // user id of the uploader
	MIMEType string  `json:"mimeType"` // detected type
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

// NewMediaMetaFromBlob decodes metadata from a JSON blob.
func NewMediaMetaFromBlob(blob *Blob) (MediaMeta, error) {
	var meta MediaMeta
	if err := json.Unmarshal(blob.Bytes(), &meta); err != nil {
		return MediaMeta{}, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return meta, nil
}

// Format returns the short format name derived from the MIME type, e.g. "png".
func (meta MediaMeta) Format() string {
	_, format, ok := strings.Cut(meta.MIMEType, "/")
	if !ok {
		return strings.TrimPrefix(strings.ToLower(filepath.Ext(meta.Filename)), ".")
	}

	return format
}

// update derives hash, size and id from data. The id also covers filename,
// type and owner so two users uploading the same file get distinct media.
func (meta *MediaMeta) update(data []byte) {
	hasher := sha256.New()
	hasher.Write(data)
	meta.Hash = EncodeID(hasher.Sum(nil))
	meta.Size = int64(len(data))

	hasher.Reset()
	hasher.Write([]byte(meta.Hash))
	hasher.Write([]byte(meta.Filename))
	hasher.Write([]byte(meta.MIMEType))
	hasher.Write([]byte(meta.Owner))
	meta.ID = MediaID(EncodeID(hasher.Sum(nil)))
}

// AsBlob encodes the metadata as a JSON blob keyed by the media id.
func (meta MediaMeta) AsBlob() (*Blob, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	return NewBlob(meta.ID, data), nil
}
