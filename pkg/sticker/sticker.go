// Package sticker defines the interface to the external WebP sticker
// encoder and the pure metadata handling around it. Raster transcoding
// itself (ffmpeg or similar) is out of scope and lives behind Encoder.
package sticker

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoMedia reports that a sticker conversion was requested for a message
// that carries no usable media.
var ErrNoMedia = errors.New("sticker: no media to convert")

// Options carry the sticker pack metadata embedded in the WebP EXIF chunk.
type Options struct {
	Pack   string `json:"pack"`
	Author string `json:"author"`
}

// Encoder converts raw image or video bytes into a WebP sticker. A nil
// result with a nil error means the encoder declined the input.
type Encoder interface {
	Encode(ctx context.Context, media []byte, opts Options) ([]byte, error)
}

// exifHeader is the fixed TIFF preamble for the WhatsApp sticker EXIF
// chunk; the payload length is patched in at offset 14.
var exifHeader = []byte{
	0x49, 0x49, 0x2a, 0x00, 0x08, 0x00, 0x00, 0x00, 0x01, 0x00, 0x41, 0x57,
	0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x16, 0x00, 0x00, 0x00,
}

type packMetadata struct {
	PackID    string   `json:"sticker-pack-id"`
	PackName  string   `json:"sticker-pack-name"`
	Publisher string   `json:"sticker-pack-publisher"`
	Emojis    []string `json:"emojis"`
}

// Exif builds the EXIF chunk announcing the sticker pack name and author.
func Exif(opts Options) ([]byte, error) {
	data, err := json.Marshal(packMetadata{
		PackID:    GenerateID(),
		PackName:  opts.Pack,
		Publisher: opts.Author,
		Emojis:    []string{"🐾"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sticker metadata: %w", err)
	}

	chunk := make([]byte, len(exifHeader)+len(data))
	copy(chunk, exifHeader)
	copy(chunk[len(exifHeader):], data)
	binary.LittleEndian.PutUint32(chunk[14:18], uint32(len(data)))
	return chunk, nil
}

// GenerateID returns a fresh sticker pack id.
func GenerateID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "whatsauto|0"
	}
	return "whatsauto|" + hex.EncodeToString(buf)
}
