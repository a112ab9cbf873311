// Package server exposes the pairwise comparison over HTTP.
package server

import (
	"encoding/base64"
	"errors"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/andresmejia3/facecmp/internal/compare"
	"github.com/andresmejia3/facecmp/internal/types"
)

type CompareRequest struct {
	Images []string `json:"images"`
}

// PairResult refers to images by their index in the request.
type PairResult struct {
	A        int     `json:"a"`
	B        int     `json:"b"`
	Distance float64 `json:"distance"`
}

type CompareResponse struct {
	Results []PairResult `json:"results,omitempty"`
	Elapsed string       `json:"elapsed,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// Options configures the HTTP service.
type Options struct {
	// TempDir receives uploaded images for the duration of a request.
	TempDir string
	// AccessLog receives one line per request. Nil disables the access log.
	AccessLog io.Writer
}

// Server runs comparisons one at a time against a shared Representer.
type Server struct {
	app     *fiber.App
	cmp     *compare.Comparator
	tempDir string

	mu sync.Mutex
}

func New(rep compare.Representer, opts Options) *Server {
	s := &Server{
		cmp:     compare.New(rep),
		tempDir: opts.TempDir,
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(CompareResponse{Error: err.Error()})
		},
	})

	if opts.AccessLog != nil {
		s.app.Use(logger.New(logger.Config{Output: opts.AccessLog}))
	}
	s.app.Use(cors.New())

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now(),
		})
	})
	s.app.Post("/compare", s.handleCompare)

	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleCompare(c *fiber.Ctx) error {
	start := time.Now()

	var req CompareRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if len(req.Images) < 2 {
		return fiber.NewError(fiber.StatusBadRequest, types.ErrTooFewImages.Error())
	}

	paths := make([]string, 0, len(req.Images))
	defer func() {
		for _, p := range paths {
			deleteFile(p)
		}
	}()
	for _, img := range req.Images {
		path, err := s.storeImage(img)
		if err != nil {
			return err
		}
		paths = append(paths, path)
	}

	s.mu.Lock()
	results, err := s.cmp.Compare(c.UserContext(), paths)
	s.mu.Unlock()
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, requestError(err, paths))
	}

	pairs := compare.Pairs(len(paths))
	resp := CompareResponse{
		Results: make([]PairResult, len(results)),
		Elapsed: time.Since(start).String(),
	}
	for i, r := range results {
		resp.Results[i] = PairResult{A: pairs[i][0], B: pairs[i][1], Distance: r.Distance}
	}
	return c.JSON(resp)
}

// requestError rewrites temporary file names as image indices.
func requestError(err error, paths []string) string {
	msg := err.Error()
	var se *types.StageError
	if errors.As(err, &se) {
		for i, p := range paths {
			if p == se.Path {
				msg = strings.ReplaceAll(msg, p, "image "+strconv.Itoa(i))
				break
			}
		}
	}
	return msg
}

// storeImage writes a base64 or data URL image to a temporary file.
func (s *Server) storeImage(encoded string) (string, error) {
	ext := ".img"
	if strings.HasPrefix(encoded, "data:") {
		parts := strings.SplitN(encoded, ",", 2)
		if len(parts) != 2 {
			return "", fiber.NewError(fiber.StatusBadRequest, "Invalid base64 image format")
		}
		meta := parts[0]
		encoded = parts[1]

		switch {
		case strings.Contains(meta, "image/jpeg"):
			ext = ".jpg"
		case strings.Contains(meta, "image/png"):
			ext = ".png"
		case strings.Contains(meta, "image/gif"):
			ext = ".gif"
		case strings.Contains(meta, "image/webp"):
			ext = ".webp"
		case strings.Contains(meta, "image/bmp"):
			ext = ".bmp"
		default:
			return "", fiber.NewError(fiber.StatusUnsupportedMediaType, "Unsupported image type")
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "Failed to decode base64: "+err.Error())
	}

	f, err := os.CreateTemp(s.tempDir, "facecmp-*"+ext)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to create temp file: "+err.Error())
	}
	defer f.Close()
	if _, err := f.Write(decoded); err != nil {
		deleteFile(f.Name())
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to write image: "+err.Error())
	}
	return f.Name(), nil
}

func deleteFile(path string) {
	if err := os.Remove(path); err != nil {
		log.Printf("Failed to delete file %s: %v", path, err)
	}
}
