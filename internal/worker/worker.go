package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync"

	"github.com/andresmejia3/facecmp/internal/imageio"
	"github.com/andresmejia3/facecmp/internal/types"
	"github.com/andresmejia3/facecmp/internal/utils" // Using the SafeCommand wrapper
)

// Request opcodes understood by the model worker.
const (
	OpDetect    byte = 'D'
	OpLandmarks byte = 'L'
	OpEmbed     byte = 'E'
)

const (
	statusOK    byte = 0
	statusError byte = 1
)

// LayoutSize is the landmark count returned by the worker's shape predictor.
const LayoutSize = 68

// maxFrame guards against a corrupted length header allocating gigabytes.
const maxFrame = 256 * 1024 * 1024

// ModelWorker drives an out-of-process model server (dlib detector, shape
// predictor and the embedding network) over a length-prefixed pipe protocol.
// Calls are serialized, so one worker can be shared by concurrent callers.
type ModelWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	mu sync.Mutex
}

// NewModelWorker starts name with args and wires its side-channel pipe.
// The process is killed when ctx is cancelled.
func NewModelWorker(ctx context.Context, id int, name string, args ...string) (*ModelWorker, error) {
	// 1. Initialize the SafeCommand we built
	proc := utils.NewSafeCommand(ctx, name, args...)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	proc.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := proc.StdinPipe()
	if err != nil {
		w.Close() // Prevent FD leak
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := proc.Start(); err != nil {
		w.Close() // Close write end if start fails
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &ModelWorker{
		ID:       id,
		Cmd:      proc,
		Stdin:    stdin,
		DataPipe: r,
	}, nil
}

// Communicate sends one framed request and reads one framed response.
func (w *ModelWorker) Communicate(data []byte) ([]byte, error) {
	// Protocol: [Length][Data]
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // This is where we catch a worker that died on startup
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxFrame {
		return nil, fmt.Errorf("response frame too large: %d bytes", respLen)
	}
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// call runs op and returns the response body after a successful status byte.
func (w *ModelWorker) call(ctx context.Context, op byte, body []byte) (*bytes.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	req := make([]byte, 0, len(body)+1)
	req = append(req, op)
	req = append(req, body...)

	resp, err := w.Communicate(req)
	if err != nil {
		return nil, fmt.Errorf("worker %d communication failed: %w", w.ID, err)
	}
	if len(resp) == 0 {
		return nil, errors.New("empty response from model worker")
	}

	r := bytes.NewReader(resp[1:])
	switch resp[0] {
	case statusOK:
		return r, nil
	case statusError:
		var msgLen uint32
		if err := binary.Read(r, binary.BigEndian, &msgLen); err != nil {
			return nil, fmt.Errorf("malformed error response: %w", err)
		}
		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(r, msg); err != nil {
			return nil, fmt.Errorf("malformed error response: %w", err)
		}
		return nil, fmt.Errorf("model worker error: %s", msg)
	default:
		return nil, fmt.Errorf("unknown worker status %d", resp[0])
	}
}

// readCount reads an element count and checks the payload can hold it.
func readCount(r *bytes.Reader, elemSize int) (int, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return 0, fmt.Errorf("malformed response: %w", err)
	}
	if int64(n)*int64(elemSize) > int64(r.Len()) {
		return 0, fmt.Errorf("malformed response: %d elements do not fit in %d bytes", n, r.Len())
	}
	return int(n), nil
}

// Detect returns every face box the worker's detector finds.
func (w *ModelWorker) Detect(ctx context.Context, img *image.RGBA) ([]types.BoundingBox, error) {
	data, err := imageio.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	r, err := w.call(ctx, OpDetect, data)
	if err != nil {
		return nil, err
	}

	// Per face: [x y w h int32] [score float32]
	n, err := readCount(r, 20)
	if err != nil {
		return nil, err
	}
	boxes := make([]types.BoundingBox, 0, n)
	for i := 0; i < n; i++ {
		var rect [4]int32
		var score float32
		if err := binary.Read(r, binary.BigEndian, &rect); err != nil {
			return nil, fmt.Errorf("malformed box %d: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &score); err != nil {
			return nil, fmt.Errorf("malformed box %d: %w", i, err)
		}
		boxes = append(boxes, types.BoundingBox{
			X: int(rect[0]), Y: int(rect[1]), Width: int(rect[2]), Height: int(rect[3]),
			Score: float64(score),
		})
	}
	return boxes, nil
}

// Landmarks runs the worker's shape predictor inside box.
func (w *ModelWorker) Landmarks(ctx context.Context, img *image.RGBA, box types.BoundingBox) (types.LandmarkSet, error) {
	data, err := imageio.EncodePNG(img)
	if err != nil {
		return types.LandmarkSet{}, err
	}
	body := new(bytes.Buffer)
	binary.Write(body, binary.BigEndian, [4]int32{int32(box.X), int32(box.Y), int32(box.Width), int32(box.Height)})
	body.Write(data)

	r, err := w.call(ctx, OpLandmarks, body.Bytes())
	if err != nil {
		return types.LandmarkSet{}, err
	}

	n, err := readCount(r, 8)
	if err != nil {
		return types.LandmarkSet{}, err
	}
	pts := make([]types.Point, n)
	for i := range pts {
		var xy [2]float32
		if err := binary.Read(r, binary.BigEndian, &xy); err != nil {
			return types.LandmarkSet{}, fmt.Errorf("malformed landmark %d: %w", i, err)
		}
		pts[i] = types.Point{X: float64(xy[0]), Y: float64(xy[1])}
	}
	return types.LandmarkSet{Points: pts}, nil
}

// Embed runs one forward pass of the worker's embedding network.
func (w *ModelWorker) Embed(ctx context.Context, face types.CanonicalFace) ([]float64, error) {
	body := new(bytes.Buffer)
	binary.Write(body, binary.BigEndian, uint32(face.Size))
	body.Write(face.RGB())

	r, err := w.call(ctx, OpEmbed, body.Bytes())
	if err != nil {
		return nil, err
	}

	n, err := readCount(r, 4)
	if err != nil {
		return nil, err
	}
	raw := make([]float32, n)
	if err := binary.Read(r, binary.BigEndian, raw); err != nil {
		return nil, fmt.Errorf("malformed embedding: %w", err)
	}
	vec := make([]float64, n)
	for i, v := range raw {
		vec[i] = float64(v)
	}
	return vec, nil
}

// Close shuts the worker down and waits for the process to exit.
func (w *ModelWorker) Close() {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd != nil {
		w.Cmd.Wait()
	}
}
