// Package present renders calibration stimuli into an off-screen canvas.
// It stands in for a real display window: the simulator meters what it
// draws and the frames can be dumped as PNG files for inspection.
package present

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/gogpu/gg"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/iris/pkg/capture"
)

// Background is the adaptation gray drawn around the stimulus patch.
var Background = gg.RGB(0.5, 0.5, 0.5)

// Options configures a Canvas.
type Options struct {
	Width  int
	Height int
	// FrameInterval is how long SwapAndPoll blocks, emulating vsync.
	FrameInterval time.Duration
	// FrameDir, if set, receives a PNG every time the stimulus changes.
	FrameDir string
}

// Canvas is a software Presenter.
type Canvas struct {
	opts Options
	dc   *gg.Context

	current capture.Color
	dirty   bool
	saved   int
}

var _ capture.Presenter = (*Canvas)(nil)

// New returns a canvas of the given size.
func New(opts Options) (*Canvas, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", opts.Width, opts.Height)
	}
	if opts.FrameDir != "" {
		if err := os.MkdirAll(opts.FrameDir, 0o755); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to create frame directory %s", opts.FrameDir)
		}
	}

	c := &Canvas{
		opts: opts,
		dc:   gg.NewContext(opts.Width, opts.Height),
	}
	c.dc.ClearWithColor(Background)
	return c, nil
}

// Patch returns the stimulus square: centered, with a side of half the
// shorter canvas dimension.
func (c *Canvas) Patch() (x, y, side float64) {
	w, h := float64(c.opts.Width), float64(c.opts.Height)
	side = min(w, h) / 2
	return (w - side) / 2, (h - side) / 2, side
}

// Present implements capture.Presenter.
func (c *Canvas) Present(col capture.Color) error {
	if col != c.current || c.saved == 0 {
		c.dirty = true
	}
	c.current = col

	c.dc.ClearWithColor(Background)
	x, y, side := c.Patch()
	c.dc.SetRGB(col.R, col.G, col.B)
	c.dc.DrawRectangle(x, y, side, side)
	if err := c.dc.Fill(); err != nil {
		return pkgerrors.Wrapf(err, "failed to draw stimulus %s", col)
	}
	return nil
}

// SwapAndPoll implements capture.Presenter.
func (c *Canvas) SwapAndPoll() error {
	if c.dirty && c.opts.FrameDir != "" {
		path := filepath.Join(c.opts.FrameDir, fmt.Sprintf("frame-%04d.png", c.saved))
		if err := c.dc.SavePNG(path); err != nil {
			return pkgerrors.Wrapf(err, "failed to save frame %s", path)
		}
		logrus.WithField("path", path).Trace("saved frame")
	}
	if c.dirty {
		c.saved++
		c.dirty = false
	}
	if c.opts.FrameInterval > 0 {
		time.Sleep(c.opts.FrameInterval)
	}
	return nil
}

// Current returns the stimulus drawn last.
func (c *Canvas) Current() capture.Color {
	return c.current
}

// Frames returns how many distinct frames have been shown.
func (c *Canvas) Frames() int {
	return c.saved
}

// Image returns the canvas contents.
func (c *Canvas) Image() image.Image {
	return c.dc.Image()
}

// Close releases the drawing context.
func (c *Canvas) Close() error {
	return c.dc.Close()
}
