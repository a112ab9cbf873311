package embedclient

import (
	"context"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andresmejia3/facecmp/internal/types"
)

func testFace() types.CanonicalFace {
	return types.CanonicalFace{Size: 4, Image: image.NewRGBA(image.Rect(0, 0, 4, 4))}
}

func TestEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/embed/aligned" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Missing form file: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		if ct := header.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("Expected image/png part, got %q", ct)
		}
		data, _ := io.ReadAll(file)
		if !strings.HasPrefix(string(data), "\x89PNG") {
			t.Error("Uploaded face is not a PNG")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"dim":3,"embedding":[0.1,0.2,0.3],"model":"nn4.small2.v1"}`))
	}))
	defer server.Close()

	vec, err := New(server.URL+"/").Embed(context.Background(), testFace())
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("Unexpected embedding %v", vec)
	}
}

func TestEmbedErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "Server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`},
		{name: "Empty embedding", status: http.StatusOK, body: `{"dim":0,"embedding":[]}`},
		{name: "Dim mismatch", status: http.StatusOK, body: `{"dim":4,"embedding":[1,2]}`},
		{name: "Malformed JSON", status: http.StatusOK, body: `{"embedding":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			if _, err := New(server.URL).Embed(context.Background(), testFace()); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}
