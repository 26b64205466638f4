package codec

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DefaultFrameMediaType is the media type of every sampled frame.
const DefaultFrameMediaType = "image/jpeg"

// Image is a base64 image payload and its media type.
type Image struct {
	MediaType string
	Data      string
}

// DataURL builds a base64 data URL, the form OpenAI accepts in image_url.
func DataURL(mediaType, data string) string {
	return "data:" + mediaType + ";base64," + data
}

// ParseDataURL accepts either a data URL or a bare base64 payload and
// returns the payload with its media type. Bare payloads are assumed to be
// JPEG.
func ParseDataURL(s string) (*Image, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		if err := validBase64(s); err != nil {
			return nil, err
		}
		return &Image{MediaType: DefaultFrameMediaType, Data: s}, nil
	}

	// Format: data:image/jpeg;base64,/9j/4AAQSkZ...
	content := s[len("data:"):]
	commaIdx := strings.Index(content, ",")
	if commaIdx == -1 {
		return nil, fmt.Errorf("invalid data URL: missing comma separator")
	}

	metadata := content[:commaIdx]
	data := content[commaIdx+1:]

	parts := strings.Split(metadata, ";")
	mediaType := parts[0]
	if !isSupportedMediaType(mediaType) {
		return nil, fmt.Errorf("unsupported media type: %s", mediaType)
	}

	isBase64 := false
	for _, part := range parts[1:] {
		if part == "base64" {
			isBase64 = true
			break
		}
	}
	if !isBase64 {
		return nil, fmt.Errorf("data URL must be base64 encoded")
	}
	if err := validBase64(data); err != nil {
		return nil, err
	}

	return &Image{MediaType: normalizeMediaType(mediaType), Data: data}, nil
}

func validBase64(s string) error {
	if s == "" {
		return fmt.Errorf("empty image payload")
	}
	if _, err := base64.StdEncoding.DecodeString(s); err != nil {
		return fmt.Errorf("invalid base64 image payload: %w", err)
	}
	return nil
}

// isSupportedMediaType checks if the media type is accepted by every vendor.
func isSupportedMediaType(mediaType string) bool {
	mainType := strings.Split(mediaType, ";")[0]
	mainType = strings.TrimSpace(strings.ToLower(mainType))

	switch mainType {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

// normalizeMediaType normalizes the media type to a standard format.
func normalizeMediaType(mediaType string) string {
	mainType := strings.Split(mediaType, ";")[0]
	mainType = strings.TrimSpace(strings.ToLower(mainType))

	// Normalize image/jpg to image/jpeg
	if mainType == "image/jpg" {
		return "image/jpeg"
	}
	return mainType
}
