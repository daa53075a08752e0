package fulfillment

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/skip2/go-qrcode"
)

// Renderer turns redemption content into a PNG image.
type Renderer interface {
	Render(content string) ([]byte, error)
}

// QRRenderer renders square QR codes with high error correction.
type QRRenderer struct {
	Size int // pixels per side, 256 when zero
}

func (r QRRenderer) Render(content string) ([]byte, error) {
	size := r.Size
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(content, qrcode.High, size)
}

// MediaStore persists generated ticket images.
type MediaStore interface {
	// Save writes data under name and returns the stored path relative to
	// the media root.
	Save(name string, data []byte) (string, error)
	// Open reads back a stored image.
	Open(rel string) ([]byte, error)
}

// FileStore keeps media on the local filesystem below Root.
type FileStore struct {
	Root string
}

func (s FileStore) Save(name string, data []byte) (string, error) {
	rel := path.Join("tickets", name)
	full := filepath.Join(s.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	// Write then rename so a reader never sees a half-written image.
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, full); err != nil {
		return "", err
	}
	return rel, nil
}

func (s FileStore) Open(rel string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(rel)))
}
