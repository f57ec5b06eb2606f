// Package pr655 speaks the remote-mode command protocol of the PhotoResearch
// PR-655 spectroradiometer. The line settings (9600 8N1, raw) are expected to
// be configured on the port before it is handed to New.
package pr655

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/iris/pkg/spectral"
)

var (
	// ErrStatus is returned when the instrument reports a non-zero status code.
	ErrStatus = errors.New("instrument reported an error")
	// ErrShortRead is returned when a reply ends or times out early.
	ErrShortRead = errors.New("short read from instrument")
	// ErrMalformed is returned when a reply cannot be parsed.
	ErrMalformed = errors.New("malformed reply from instrument")
)

// Spectral grid of an M5 measurement.
const (
	StartWavelength = 380
	WavelengthStep  = 4
	NumWavelengths  = 101
)

// Reply lengths in bytes, including the trailing CR LF where present.
const (
	lenRemote   = 12
	lenSerial   = 16
	lenModel    = 14
	lenSoftware = 13
	lenUnits    = 7
	lenHeader   = 39
	lenDataLine = 16
)

// Device is a PR-655 attached to rw.
type Device struct {
	rw io.ReadWriter

	charDelay   time.Duration
	startDelay  time.Duration
	queryDelay  time.Duration
	readTimeout time.Duration
	sleep       func(time.Duration)
}

// Option configures a Device.
type Option func(*Device)

// WithReadTimeout bounds how long a single reply may take.
func WithReadTimeout(d time.Duration) Option {
	return func(dev *Device) { dev.readTimeout = d }
}

// WithoutDelays disables the pacing sleeps. Used with mocks.
func WithoutDelays() Option {
	return func(dev *Device) { dev.sleep = func(time.Duration) {} }
}

// New returns a Device speaking over rw.
func New(rw io.ReadWriter, opts ...Option) *Device {
	d := &Device{
		rw:          rw,
		charDelay:   time.Millisecond,
		startDelay:  time.Second,
		queryDelay:  200 * time.Millisecond,
		readTimeout: 10 * time.Second,
		sleep:       time.Sleep,
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

// send writes cmd one byte at a time followed by CR. The instrument drops
// characters that arrive back to back.
func (d *Device) send(cmd string) error {
	logrus.WithField("cmd", cmd).Trace("Trying to write to PR-655")

	for i := 0; i < len(cmd); i++ {
		if _, err := d.rw.Write([]byte{cmd[i]}); err != nil {
			return pkgerrors.Wrapf(err, "failed to send %q", cmd)
		}
		d.sleep(d.charDelay)
	}
	if _, err := d.rw.Write([]byte{'\r'}); err != nil {
		return pkgerrors.Wrapf(err, "failed to send %q", cmd)
	}
	return nil
}

// deadliner is implemented by ports with read deadlines, such as an
// *os.File on a tty or a pipe.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// interruptWith arms a read deadline on the port, or returns false if the
// port has none.
func (d *Device) interruptWith(deadline time.Time) (func(), bool) {
	dl, ok := d.rw.(deadliner)
	if !ok || dl.SetReadDeadline(deadline) != nil {
		return nil, false
	}
	return func() { _ = dl.SetReadDeadline(time.Now()) }, true
}

// read reads exactly n bytes. A blocked Read is interrupted when ctx ends or
// the read timeout passes: through the port's read deadline when it has
// one, otherwise by closing the port.
func (d *Device) read(ctx context.Context, n int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	deadline := time.Now().Add(d.readTimeout)
	ctxBound := false
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline, ctxBound = dl, true
	}

	interrupt, armed := d.interruptWith(deadline)
	if armed {
		defer d.rw.(deadliner).SetReadDeadline(time.Time{}) //nolint:errcheck
	} else {
		interrupt = func() { _ = d.Close() }
	}
	stop := context.AfterFunc(ctx, interrupt)
	defer stop()

	buf := make([]byte, n)
	pos := 0
	for pos < n {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			if ctxBound {
				return "", context.DeadlineExceeded
			}
			return "", pkgerrors.Wrapf(ErrShortRead, "timeout after %d of %d bytes: %q", pos, n, buf[:pos])
		}
		k, err := d.rw.Read(buf[pos:])
		pos += k
		if err != nil && pos < n {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			switch {
			case errors.Is(err, os.ErrDeadlineExceeded) && ctxBound:
				return "", context.DeadlineExceeded
			case errors.Is(err, os.ErrDeadlineExceeded):
				return "", pkgerrors.Wrapf(ErrShortRead, "timeout after %d of %d bytes: %q", pos, n, buf[:pos])
			case errors.Is(err, io.EOF):
				return "", pkgerrors.Wrapf(ErrShortRead, "got %d of %d bytes: %q", pos, n, buf[:pos])
			}
			return "", pkgerrors.Wrap(err, "failed to read from PR-655")
		}
		if k == 0 {
			d.sleep(time.Millisecond)
		}
	}

	logrus.WithField("reply", string(buf)).Trace("Read from PR-655 succeed")
	return string(buf), nil
}

func (d *Device) query(ctx context.Context, cmd string, n int) (string, error) {
	if err := d.send(cmd); err != nil {
		return "", err
	}
	d.sleep(d.queryDelay)
	reply, err := d.read(ctx, n)
	if err != nil {
		return "", pkgerrors.Wrapf(err, "command %s", cmd)
	}
	return reply, nil
}

// parseStatus checks the leading status field of a reply.
func parseStatus(reply string) error {
	if len(reply) < 5 {
		return pkgerrors.Wrapf(ErrMalformed, "status field in %q", reply)
	}
	code, err := strconv.Atoi(reply[:5])
	if err != nil {
		return pkgerrors.Wrapf(ErrMalformed, "status field in %q", reply)
	}
	if code != 0 {
		return pkgerrors.Wrapf(ErrStatus, "code %d", code)
	}
	return nil
}

// payload returns the text after "status," with line endings removed.
func payload(reply string) string {
	_, rest, _ := strings.Cut(reply, ",")
	return strings.TrimSpace(rest)
}

// Start puts the instrument into remote mode.
func (d *Device) Start(ctx context.Context) error {
	if err := d.send("PHOTO"); err != nil {
		return err
	}
	d.sleep(d.startDelay)
	if _, err := d.read(ctx, lenRemote); err != nil {
		return pkgerrors.Wrap(err, "failed to enter remote mode")
	}
	return nil
}

// Stop leaves remote mode.
func (d *Device) Stop() error {
	return d.send("Q")
}

func (d *Device) info(ctx context.Context, cmd string, n int) (string, error) {
	reply, err := d.query(ctx, cmd, n)
	if err != nil {
		return "", err
	}
	if err := parseStatus(reply); err != nil {
		return "", pkgerrors.Wrapf(err, "command %s", cmd)
	}
	return payload(reply), nil
}

// SerialNumber returns the instrument serial number.
func (d *Device) SerialNumber(ctx context.Context) (string, error) {
	return d.info(ctx, "D110", lenSerial)
}

// ModelNumber returns the instrument model.
func (d *Device) ModelNumber(ctx context.Context) (string, error) {
	return d.info(ctx, "D111", lenModel)
}

// SoftwareVersion returns the firmware version.
func (d *Device) SoftwareVersion(ctx context.Context) (string, error) {
	return d.info(ctx, "D114", lenSoftware)
}

// SetUnits selects metric (true) or English units.
func (d *Device) SetUnits(ctx context.Context, metric bool) error {
	cmd := "SU0"
	if metric {
		cmd = "SU1"
	}
	reply, err := d.query(ctx, cmd, lenUnits)
	if err != nil {
		return err
	}
	return parseStatus(reply)
}

// Measure takes a spectral radiance measurement (M5).
func (d *Device) Measure(ctx context.Context) (spectral.Sample, error) {
	if err := d.send("M5"); err != nil {
		return spectral.Sample{}, err
	}

	header, err := d.read(ctx, lenHeader)
	if err != nil {
		return spectral.Sample{}, pkgerrors.Wrap(err, "failed to read measurement header")
	}
	if err := parseStatus(header); err != nil {
		return spectral.Sample{}, pkgerrors.Wrap(err, "measurement")
	}

	s := spectral.Sample{
		Start:  StartWavelength,
		Step:   WavelengthStep,
		Values: make([]float64, NumWavelengths),
	}
	for i := 0; i < NumWavelengths; i++ {
		line, err := d.read(ctx, lenDataLine)
		if err != nil {
			return spectral.Sample{}, pkgerrors.Wrapf(err, "failed to read data line %d", i)
		}
		lambda, value, err := parseDataLine(line)
		if err != nil {
			return spectral.Sample{}, err
		}
		if want := s.Wavelength(i); float64(lambda) != want {
			return spectral.Sample{}, pkgerrors.Wrapf(ErrMalformed, "line %d is at %d nm, want %g nm", i, lambda, want)
		}
		s.Values[i] = value
	}

	logrus.WithField("radiance", s.Radiance()).Debug("PR-655 measurement complete")
	return s, nil
}

// parseDataLine parses "wwww,v.vvve-ee\r\n".
func parseDataLine(line string) (int, float64, error) {
	if len(line) < 6 || line[4] != ',' {
		return 0, 0, pkgerrors.Wrapf(ErrMalformed, "data line %q", line)
	}
	lambda, err := strconv.Atoi(line[:4])
	if err != nil {
		return 0, 0, pkgerrors.Wrapf(ErrMalformed, "wavelength in %q", line)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(line[5:]), 64)
	if err != nil {
		return 0, 0, pkgerrors.Wrapf(ErrMalformed, "radiance in %q", line)
	}
	return lambda, value, nil
}
