package server_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/andresmejia3/facecmp/internal/fakes"
	"github.com/andresmejia3/facecmp/internal/imageio"
	"github.com/andresmejia3/facecmp/internal/pipeline"
	"github.com/andresmejia3/facecmp/internal/server"
)

func encode(t *testing.T, seed uint8, blank bool) string {
	t.Helper()
	img := fakes.FaceImage(64, seed)
	if blank {
		img = fakes.BlankImage(64)
	}
	data, err := imageio.EncodePNG(img)
	if err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(data)
}

func newServer(t *testing.T) (*server.Server, string) {
	t.Helper()
	dir := t.TempDir()
	p := fakes.NewPipeline(t, &fakes.Embedder{Dim: 128}, pipeline.Options{})
	return server.New(p, server.Options{TempDir: dir}), dir
}

func post(t *testing.T, s *server.Server, body string) (int, server.CompareResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/compare", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out server.CompareResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Response is not JSON: %s", raw)
	}
	return resp.StatusCode, out
}

func request(t *testing.T, images ...string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(server.CompareRequest{Images: images}); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestHealth(t *testing.T) {
	s, _ := newServer(t)
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("Unexpected health response %d %v", resp.StatusCode, body)
	}
}

func TestCompare(t *testing.T) {
	s, dir := newServer(t)
	a := encode(t, 1, false)
	b := "data:image/png;base64," + encode(t, 2, false)

	status, out := post(t, s, request(t, a, b, a))
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", status, out.Error)
	}
	if len(out.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(out.Results))
	}
	wantPairs := [][2]int{{0, 1}, {0, 2}, {1, 2}}
	for i, r := range out.Results {
		if r.A != wantPairs[i][0] || r.B != wantPairs[i][1] {
			t.Errorf("result[%d] = (%d,%d), want %v", i, r.A, r.B, wantPairs[i])
		}
	}
	if out.Results[1].Distance != 0 {
		t.Errorf("Same image should have distance 0, got %v", out.Results[1].Distance)
	}
	if out.Results[0].Distance != out.Results[2].Distance {
		t.Errorf("Expected d(0,1) == d(1,2) since image 2 repeats image 0")
	}
	if out.Elapsed == "" {
		t.Error("Expected elapsed time")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected temp files to be removed, found %d", len(entries))
	}
}

func TestCompareErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   func(t *testing.T) string
		status int
		errSub string
	}{
		{
			name:   "Malformed JSON",
			body:   func(t *testing.T) string { return `{"images":` },
			status: http.StatusBadRequest,
		},
		{
			name:   "Too few images",
			body:   func(t *testing.T) string { return request(t, encode(t, 1, false)) },
			status: http.StatusBadRequest,
			errSub: "at least two images",
		},
		{
			name:   "Bad base64",
			body:   func(t *testing.T) string { return request(t, "!!!", encode(t, 1, false)) },
			status: http.StatusBadRequest,
		},
		{
			name:   "Unsupported data URL",
			body:   func(t *testing.T) string { return request(t, "data:text/plain;base64,aGk=", encode(t, 1, false)) },
			status: http.StatusUnsupportedMediaType,
		},
		{
			name:   "No face",
			body:   func(t *testing.T) string { return request(t, encode(t, 1, false), encode(t, 0, true)) },
			status: http.StatusUnprocessableEntity,
			errSub: "image 1",
		},
		{
			name:   "Not an image",
			body:   func(t *testing.T) string { return request(t, base64.StdEncoding.EncodeToString([]byte("nope")), encode(t, 1, false)) },
			status: http.StatusUnprocessableEntity,
			errSub: "image load error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, dir := newServer(t)
			status, out := post(t, s, tt.body(t))
			if status != tt.status {
				t.Errorf("Expected status %d, got %d (%s)", tt.status, status, out.Error)
			}
			if out.Error == "" || !strings.Contains(out.Error, tt.errSub) {
				t.Errorf("Expected error containing %q, got %q", tt.errSub, out.Error)
			}
			if len(out.Results) != 0 {
				t.Errorf("Expected no results, got %d", len(out.Results))
			}
			if entries, _ := os.ReadDir(dir); len(entries) != 0 {
				t.Errorf("Expected temp files to be removed, found %d", len(entries))
			}
		})
	}
}
