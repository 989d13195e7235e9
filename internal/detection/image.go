package detection

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"net/http"
	"strings"

	"github.com/gen2brain/heic"
)

// DetectContentType returns a normalised MIME type for img, sniffing the bytes when
// the declared type is missing or generic.
func DetectContentType(img Image) string {
	mimeType := strings.ToLower(strings.TrimSpace(img.ContentType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		if isHEICFormat(img.Data) {
			return "image/heic"
		}
		mimeType = http.DetectContentType(img.Data)
	}
	if mimeType == "image/jpg" {
		mimeType = "image/jpeg"
	}
	return mimeType
}

// Validate checks that img carries a supported picture.
func Validate(img Image) error {
	if len(img.Data) == 0 {
		return ErrEmptyImage
	}
	switch DetectContentType(img) {
	case "image/jpeg", "image/png", "image/heic", "image/heif":
		return nil
	default:
		return ErrUnsupportedImage
	}
}

// toPNG re-encodes JPEG and HEIC images as PNG. PNG input is returned untouched.
func toPNG(img Image) ([]byte, error) {
	if err := Validate(img); err != nil {
		return nil, err
	}

	mimeType := DetectContentType(img)
	if mimeType == "image/png" {
		return img.Data, nil
	}

	var (
		decoded image.Image
		err     error
	)
	if mimeType == "image/heic" || mimeType == "image/heif" || isHEICFormat(img.Data) {
		decoded, err = heic.Decode(bytes.NewReader(img.Data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC image: %w", err)
		}
	} else {
		decoded, _, err = image.Decode(bytes.NewReader(img.Data))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat looks for an ftyp box with a HEIC/HEIF brand.
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}
