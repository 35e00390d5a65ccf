package llm

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmptyAsset is returned by LoadAsset for an empty reference.
var ErrEmptyAsset = errors.New("llm: empty asset reference")

// Asset is an image ready to hand to a provider: either a remote URL or
// inline bytes with their media type.
type Asset struct {
	URL       string
	MediaType string
	Data      []byte
}

// Remote reports whether the asset is passed by URL.
func (a Asset) Remote() bool { return a.URL != "" }

// DataURL renders inline data as a data: URL; remote assets return their URL.
func (a Asset) DataURL() string {
	if a.Remote() {
		return a.URL
	}
	return "data:" + a.MediaType + ";base64," + a.Base64()
}

func (a Asset) Base64() string { return base64.StdEncoding.EncodeToString(a.Data) }

// LoadAsset resolves ref. http(s) and data URLs pass through; anything else
// is read from disk with the media type taken from the extension.
func LoadAsset(ref string) (Asset, error) {
	if ref == "" {
		return Asset{}, ErrEmptyAsset
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return Asset{URL: ref, MediaType: mediaType(ref)}, nil
	}
	if strings.HasPrefix(lower, "data:") {
		return parseDataURL(ref)
	}
	b, err := os.ReadFile(ref)
	if err != nil {
		return Asset{}, fmt.Errorf("llm: read asset: %w", err)
	}
	return Asset{MediaType: mediaType(ref), Data: b}, nil
}

func mediaType(ref string) string {
	ext := strings.ToLower(filepath.Ext(ref))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "image/png"
}

func parseDataURL(ref string) (Asset, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return Asset{}, fmt.Errorf("llm: unsupported data URL")
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Asset{}, fmt.Errorf("llm: decode data URL: %w", err)
	}
	return Asset{MediaType: strings.TrimSuffix(meta, ";base64"), Data: b}, nil
}
