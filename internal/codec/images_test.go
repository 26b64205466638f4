package codec

import (
	"encoding/base64"
	"testing"
)

func TestParseDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("test image data"))

	tests := []struct {
		name          string
		input         string
		wantMediaType string
		wantErr       bool
	}{
		{"jpeg data url", "data:image/jpeg;base64," + payload, "image/jpeg", false},
		{"jpg normalized", "data:image/jpg;base64," + payload, "image/jpeg", false},
		{"png data url", "data:image/png;base64," + payload, "image/png", false},
		{"bare base64", payload, "image/jpeg", false},
		{"missing comma", "data:image/jpeg;base64", "", true},
		{"not base64 encoded", "data:image/jpeg," + payload, "", true},
		{"unsupported media type", "data:application/pdf;base64," + payload, "", true},
		{"garbage payload", "data:image/jpeg;base64,!!!", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := ParseDataURL(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", img)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDataURL() error = %v", err)
			}
			if img.MediaType != tt.wantMediaType {
				t.Errorf("MediaType = %s, want %s", img.MediaType, tt.wantMediaType)
			}
			if img.Data != payload {
				t.Errorf("Data = %s, want %s", img.Data, payload)
			}
		})
	}
}

func TestDataURL(t *testing.T) {
	got := DataURL("image/jpeg", "abcd")
	if got != "data:image/jpeg;base64,abcd" {
		t.Errorf("DataURL() = %s", got)
	}
	img, err := ParseDataURL(got)
	if err != nil || img.Data != "abcd" {
		t.Errorf("round trip = %+v, %v", img, err)
	}
}
