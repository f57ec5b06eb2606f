// Package lpm talks to the LED pseudo-monochromatic light box, an Arduino
// that dims narrow-band LEDs over PWM and triggers a camera shutter.
//
// Commands are single lines terminated by LF. Every command is answered by
// zero or more lines of output followed by a line holding a single "*".
package lpm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrCommand is returned when the box rejects a command.
	ErrCommand = errors.New("light box rejected command")
	// ErrShortRead is returned when a reply ends or times out before "*".
	ErrShortRead = errors.New("short read from light box")
)

// FullPWM is the duty value that drives an LED at full power.
const FullPWM = 4096

const endOfReply = "*"

// Device is a light box attached to rw.
type Device struct {
	rw          io.ReadWriter
	r           *bufio.Reader
	lineTimeout time.Duration
}

// Option configures a Device.
type Option func(*Device)

// WithLineTimeout bounds how long a single reply line may take.
func WithLineTimeout(d time.Duration) Option {
	return func(dev *Device) { dev.lineTimeout = d }
}

// New returns a Device speaking over rw.
func New(rw io.ReadWriter, opts ...Option) *Device {
	d := &Device{
		rw:          rw,
		r:           bufio.NewReader(rw),
		lineTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open opens the serial device at path.
func Open(path string, opts ...Option) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open %s", path)
	}
	return New(f, opts...), nil
}

// Close closes the underlying port if it can be closed.
func (d *Device) Close() error {
	if c, ok := d.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// SetPWM sets the duty value of the LED on pin. Zero turns it off.
func (d *Device) SetPWM(ctx context.Context, pin, value int) ([]string, error) {
	if pin < 0 || value < 0 || value > FullPWM {
		return nil, fmt.Errorf("invalid pwm pin %d value %d", pin, value)
	}
	return d.Exec(ctx, fmt.Sprintf("pwm %d,%d", pin, value))
}

// Shoot triggers the camera.
func (d *Device) Shoot(ctx context.Context) ([]string, error) {
	return d.Exec(ctx, "shoot")
}

// Reset turns every LED off.
func (d *Device) Reset(ctx context.Context) ([]string, error) {
	return d.Exec(ctx, "reset")
}

// Info returns the firmware banner.
func (d *Device) Info(ctx context.Context) ([]string, error) {
	return d.Exec(ctx, "info")
}

// Exec sends a raw command and returns the reply lines without the
// terminating "*".
func (d *Device) Exec(ctx context.Context, cmd string) ([]string, error) {
	logrus.WithField("cmd", cmd).Trace("Trying to write to light box")
	if _, err := io.WriteString(d.rw, cmd+"\n"); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to send %q", cmd)
	}

	var lines []string
	for {
		line, err := d.readLine(ctx)
		if err != nil {
			return lines, pkgerrors.Wrapf(err, "reply to %q", cmd)
		}
		if line == endOfReply {
			break
		}
		lines = append(lines, line)
	}
	logrus.WithFields(logrus.Fields{
		"cmd":   cmd,
		"reply": lines,
	}).Trace("Read from light box succeed")

	for _, l := range lines {
		if strings.HasPrefix(strings.ToLower(l), "error") {
			return lines, pkgerrors.Wrapf(ErrCommand, "%s: %s", cmd, l)
		}
	}
	return lines, nil
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// readLine reads one line with its CR LF trimmed. A blocked read is
// interrupted when ctx ends, through the port's read deadline when it has
// one, otherwise by closing the port.
func (d *Device) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	deadline := time.Now().Add(d.lineTimeout)
	ctxBound := false
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline, ctxBound = dl, true
	}

	interrupt := func() { _ = d.Close() }
	if dl, ok := d.rw.(deadliner); ok && dl.SetReadDeadline(deadline) == nil {
		defer dl.SetReadDeadline(time.Time{}) //nolint:errcheck
		interrupt = func() { _ = dl.SetReadDeadline(time.Now()) }
	}
	stop := context.AfterFunc(ctx, interrupt)
	defer stop()

	line, err := d.r.ReadString('\n')
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		switch {
		case errors.Is(err, os.ErrDeadlineExceeded) && ctxBound:
			return "", context.DeadlineExceeded
		case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, io.EOF):
			return "", pkgerrors.Wrapf(ErrShortRead, "partial line %q", line)
		}
		return "", pkgerrors.Wrap(err, "failed to read from light box")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
