package safehttp

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	tests := []struct {
		name         string
		blockPrivate bool
		wantBlocked  bool
	}{
		{"open", false, false},
		{"guarded loopback", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(5*time.Second, tt.blockPrivate)
			resp, err := client.Get(server.URL)
			if tt.wantBlocked {
				if err == nil {
					resp.Body.Close()
					t.Fatal("request to loopback succeeded")
				}
				if !errors.Is(err, ErrPrivateAddress) {
					t.Errorf("error = %v, want ErrPrivateAddress", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if string(body) != "ok" {
				t.Errorf("body = %q", body)
			}
		})
	}
}
