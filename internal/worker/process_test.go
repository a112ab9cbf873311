package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/andresmejia3/facecmp/internal/imageio"
	"github.com/andresmejia3/facecmp/internal/types"
)

// TestHelperWorker is not a real test. It is re-executed by
// TestModelWorkerProcess as a stand-in model worker that speaks the
// documented protocol.
func TestHelperWorker(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	out := os.NewFile(3, "data")
	in := bufio.NewReader(os.Stdin)
	for {
		var n uint32
		if err := binary.Read(in, binary.BigEndian, &n); err != nil {
			os.Exit(0)
		}
		req := make([]byte, n)
		if _, err := io.ReadFull(in, req); err != nil {
			os.Exit(1)
		}
		resp := serveRequest(req)
		binary.Write(out, binary.BigEndian, uint32(len(resp)))
		out.Write(resp)
	}
}

func serveRequest(req []byte) []byte {
	resp := new(bytes.Buffer)
	fail := func(msg string) []byte {
		resp.Reset()
		resp.WriteByte(statusError)
		binary.Write(resp, binary.BigEndian, uint32(len(msg)))
		resp.WriteString(msg)
		return resp.Bytes()
	}
	if len(req) == 0 {
		return fail("empty request")
	}

	body := req[1:]
	switch req[0] {
	case OpDetect:
		img, err := imageio.Decode(body)
		if err != nil {
			return fail(err.Error())
		}
		b := img.Bounds()
		resp.WriteByte(statusOK)
		binary.Write(resp, binary.BigEndian, uint32(1))
		binary.Write(resp, binary.BigEndian, [4]int32{int32(b.Dx() / 4), int32(b.Dy() / 4), int32(b.Dx() / 2), int32(b.Dy() / 2)})
		binary.Write(resp, binary.BigEndian, float32(0.5))
	case OpLandmarks:
		var box [4]int32
		r := bytes.NewReader(body)
		if err := binary.Read(r, binary.BigEndian, &box); err != nil {
			return fail(err.Error())
		}
		if _, err := imageio.Decode(body[16:]); err != nil {
			return fail(err.Error())
		}
		resp.WriteByte(statusOK)
		binary.Write(resp, binary.BigEndian, uint32(LayoutSize))
		for i := 0; i < LayoutSize; i++ {
			binary.Write(resp, binary.BigEndian, [2]float32{float32(box[0]) + float32(i), float32(box[1]) + float32(i)})
		}
	case OpEmbed:
		var size uint32
		r := bytes.NewReader(body)
		if err := binary.Read(r, binary.BigEndian, &size); err != nil {
			return fail(err.Error())
		}
		if r.Len() != int(size*size*3) {
			return fail("face buffer does not match size")
		}
		resp.WriteByte(statusOK)
		binary.Write(resp, binary.BigEndian, uint32(128))
		for i := 0; i < 128; i++ {
			binary.Write(resp, binary.BigEndian, float32(i)/128)
		}
	default:
		return fail("unknown op " + string(req[0]))
	}
	return resp.Bytes()
}

func TestModelWorkerProcess(t *testing.T) {
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	ctx := context.Background()

	w, err := NewModelWorker(ctx, 7, os.Args[0], "-test.run=^TestHelperWorker$")
	if err != nil {
		t.Fatalf("NewModelWorker failed: %v", err)
	}
	defer w.Close()

	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	boxes, err := w.Detect(ctx, img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	want := types.BoundingBox{X: 10, Y: 5, Width: 20, Height: 10, Score: 0.5}
	if len(boxes) != 1 || boxes[0] != want {
		t.Fatalf("Expected [%+v], got %+v", want, boxes)
	}

	set, err := w.Landmarks(ctx, img, boxes[0])
	if err != nil {
		t.Fatalf("Landmarks failed: %v", err)
	}
	if set.Len() != LayoutSize {
		t.Fatalf("Expected %d landmarks, got %d", LayoutSize, set.Len())
	}
	if set.Points[3] != (types.Point{X: 13, Y: 8}) {
		t.Errorf("Unexpected landmark 3: %+v", set.Points[3])
	}

	face := types.CanonicalFace{Size: 4, Image: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	vec, err := w.Embed(ctx, face)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 128 {
		t.Fatalf("Expected 128 values, got %d", len(vec))
	}
	if vec[64] != 0.5 {
		t.Errorf("Expected vec[64] = 0.5, got %v", vec[64])
	}

	// An error status fails the request but leaves the worker usable.
	if _, err := w.call(ctx, 'X', nil); err == nil || !strings.Contains(err.Error(), "unknown op X") {
		t.Errorf("Expected unknown op error, got %v", err)
	}
	if _, err := w.Detect(ctx, img); err != nil {
		t.Errorf("Worker unusable after an error response: %v", err)
	}
}
