// Package imaging converts uploaded image bytes to and from the data URIs the
// image store persists.
package imaging

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"slices"
	"strings"

	"github.com/vincent-petithory/dataurl"
)

var (
	// ErrNotImage is returned for payloads that are not one of the raster
	// formats in Types.
	ErrNotImage = errors.New("not an image")

	// ErrEmpty is returned for zero-length payloads.
	ErrEmpty = errors.New("empty image")
)

// Types are the accepted media types. Scriptable formats such as SVG are
// excluded because stored images are served from the site's origin.
var Types = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// Image is a decoded data URI.
type Image struct {
	ContentType string
	Data        []byte
}

// Encode returns data as data:<type>;base64,<payload>. The type is sniffed
// from data; a declared contentType outside Types is rejected but otherwise
// never trusted.
func Encode(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}

	ct, err := imageType(data, contentType)
	if err != nil {
		return "", err
	}
	return dataurl.New(data, ct).String(), nil
}

// Decode parses a base64 or percent-encoded data URI holding an image.
func Decode(uri string) (Image, error) {
	du, err := dataurl.DecodeString(uri)
	if err != nil {
		return Image{}, fmt.Errorf("decode data uri: %w", err)
	}

	ct := du.MediaType.ContentType()
	if !allowed(ct) {
		return Image{}, fmt.Errorf("%w: %s", ErrNotImage, ct)
	}
	if len(du.Data) == 0 {
		return Image{}, ErrEmpty
	}
	return Image{ContentType: ct, Data: du.Data}, nil
}

// IsDataURI reports whether s looks like a data URI rather than a path.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

func imageType(data []byte, contentType string) (string, error) {
	if contentType != "" {
		declared, _, err := mime.ParseMediaType(contentType)
		if err == nil && declared != "application/octet-stream" && !allowed(declared) {
			return "", fmt.Errorf("%w: %s", ErrNotImage, declared)
		}
	}

	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	if !allowed(sniffed) {
		return "", fmt.Errorf("%w: %s", ErrNotImage, sniffed)
	}
	return sniffed, nil
}

func allowed(ct string) bool {
	return slices.Contains(Types, ct)
}
