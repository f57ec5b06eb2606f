package present

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charlie0129/iris/pkg/capture"
)

func channel(v uint32) float64 {
	return float64(v>>8) / 255
}

func TestCanvasDrawsPatch(t *testing.T) {
	c, err := New(Options{Width: 64, Height: 32})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	x, y, side := c.Patch()
	if side != 16 || x != 24 || y != 8 {
		t.Fatalf("unexpected patch %v,%v side %v", x, y, side)
	}

	if err := c.Present(capture.Color{R: 1}); err != nil {
		t.Fatalf("Present: %v", err)
	}
	img := c.Image()

	r, g, b, _ := img.At(32, 16).RGBA()
	if channel(r) < 0.99 || channel(g) > 0.01 || channel(b) > 0.01 {
		t.Fatalf("center should be red, got %v %v %v", r, g, b)
	}
	r, g, b, _ = img.At(2, 2).RGBA()
	for _, v := range []uint32{r, g, b} {
		if d := channel(v) - 0.5; d > 0.01 || d < -0.01 {
			t.Fatalf("corner should be mid gray, got %v %v %v", r, g, b)
		}
	}
}

func TestCanvasSavesFrames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	c, err := New(Options{Width: 8, Height: 8, FrameDir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	for _, col := range []capture.Color{{R: 1}, {R: 1}, {G: 1}} {
		if err := c.Present(col); err != nil {
			t.Fatalf("Present: %v", err)
		}
		if err := c.SwapAndPoll(); err != nil {
			t.Fatalf("SwapAndPoll: %v", err)
		}
	}

	if c.Frames() != 2 {
		t.Fatalf("expected 2 distinct frames, got %d", c.Frames())
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 png files, got %d", len(entries))
	}
}

func TestCanvasInvalidSize(t *testing.T) {
	if _, err := New(Options{Width: 0, Height: 10}); err == nil {
		t.Fatalf("expected error for empty canvas")
	}
}
