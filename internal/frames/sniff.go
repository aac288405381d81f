package frames

import "bytes"

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
)

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
)

// Sniff identifies a still frame by its magic bytes. Only JPEG and PNG are accepted.
func Sniff(data []byte) (string, bool) {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return MimeJPEG, true
	case bytes.HasPrefix(data, pngMagic):
		return MimePNG, true
	default:
		return "", false
	}
}

// Extension returns the file extension for a sniffed mime type.
func Extension(mimeType string) string {
	switch mimeType {
	case MimeJPEG:
		return "jpg"
	case MimePNG:
		return "png"
	default:
		return "bin"
	}
}
