// Package media stores message attachments (photos, voice notes) as raw
// blobs next to the chat snapshot. Messages reference attachments by
// handle; the blob itself never travels through the snapshot.
package media

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	apperr "jibber/pkg/errors"
)

// MaxBytes caps a single attachment. Big enough for a camera photo or a
// minute of voice, small enough to keep pebble values sane.
const MaxBytes = 8 << 20

type blobStore interface {
	SetRaw(key, val []byte) error
	GetRaw(key []byte) ([]byte, bool)
}

type Store struct {
	blobs blobStore
}

func NewStore(blobs blobStore) *Store {
	return &Store{blobs: blobs}
}

var allowedTypes = map[string]string{
	"image/jpeg": "image",
	"image/png":  "image",
	"image/gif":  "image",
	"image/webp": "image",
	"audio/webm": "audio",
	"audio/ogg":  "audio",
	"audio/mpeg": "audio",
	"audio/mp4":  "audio",
}

// Accepts reports whether the MIME type may be stored.
func Accepts(mime string) bool {
	_, ok := allowedTypes[normalize(mime)]
	return ok
}

func normalize(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(strings.ToLower(mime))
}

func key(handle string) []byte {
	return []byte("att/" + handle)
}

func metaKey(handle string) []byte {
	return []byte("attmime/" + handle)
}

// Put validates and stores a blob, returning its handle.
func (s *Store) Put(mime string, data []byte) (string, error) {
	mime = normalize(mime)
	if _, ok := allowedTypes[mime]; !ok {
		return "", apperr.ErrMediaBadType
	}
	if len(data) == 0 {
		return "", apperr.ErrMediaOther
	}
	if len(data) > MaxBytes {
		return "", apperr.ErrMediaTooLarge
	}

	handle := "att-" + uuid.NewString()
	if err := s.blobs.SetRaw(key(handle), data); err != nil {
		return "", apperr.Storage(fmt.Sprintf("store attachment %s", handle), err)
	}
	if err := s.blobs.SetRaw(metaKey(handle), []byte(mime)); err != nil {
		return "", apperr.Storage(fmt.Sprintf("store attachment type %s", handle), err)
	}
	// A nil-backed persist store swallows writes without erroring; a handle
	// the blob store cannot serve back would dangle.
	if _, ok := s.blobs.GetRaw(key(handle)); !ok {
		return "", apperr.Storage("attachment store unavailable", nil)
	}
	return handle, nil
}

// Get returns the blob and its MIME type for a handle.
func (s *Store) Get(handle string) ([]byte, string, error) {
	data, ok := s.blobs.GetRaw(key(handle))
	if !ok {
		return nil, "", apperr.ErrNoAttachment
	}
	mime, ok := s.blobs.GetRaw(metaKey(handle))
	if !ok {
		mime = []byte("application/octet-stream")
	}
	return data, string(mime), nil
}
