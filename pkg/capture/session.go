package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/iris/pkg/events"
	"github.com/charlie0129/iris/pkg/spectral"
)

// Color is a stimulus in normalized device RGB, each channel in [0, 1].
type Color struct {
	R, G, B float64
}

func (c Color) Array() [3]float64 {
	return [3]float64{c.R, c.G, c.B}
}

func (c Color) String() string {
	return fmt.Sprintf("(%.4g, %.4g, %.4g)", c.R, c.G, c.B)
}

// Presenter puts stimuli on screen.
type Presenter interface {
	// Present draws c as the current stimulus.
	Present(c Color) error
	// SwapAndPoll shows the drawn frame and processes pending window events.
	SwapAndPoll() error
}

// Meter takes a single spectral measurement of whatever is on screen.
type Meter interface {
	Measure(ctx context.Context) (spectral.Sample, error)
}

// Primaries returns full-intensity red, green and blue.
func Primaries() []Color {
	return []Color{{R: 1}, {G: 1}, {B: 1}}
}

// Ramp returns levels evenly spaced intensities in (0, 1] for each gun in
// turn, red first.
func Ramp(levels int) []Color {
	if levels <= 0 {
		return nil
	}
	out := make([]Color, 0, 3*levels)
	for gun := 0; gun < 3; gun++ {
		for i := 1; i <= levels; i++ {
			v := float64(i) / float64(levels)
			var c Color
			switch gun {
			case 0:
				c.R = v
			case 1:
				c.G = v
			case 2:
				c.B = v
			}
			out = append(out, c)
		}
	}
	return out
}

// Gray returns levels evenly spaced achromatic intensities in (0, 1].
func Gray(levels int) []Color {
	out := make([]Color, 0, levels)
	for i := 1; i <= levels; i++ {
		v := float64(i) / float64(levels)
		out = append(out, Color{R: v, G: v, B: v})
	}
	return out
}

// Result is the outcome of a completed capture.
type Result struct {
	Stimuli   []Color
	Responses []spectral.Sample
}

// Session is a Driver that shows a fixed list of stimuli and records one
// measurement per stimulus.
type Session struct {
	presenter Presenter
	meter     Meter
	stimuli   []Color

	// presentation role
	pos     int
	current Color

	// measurement role
	mu        sync.Mutex
	responses []spectral.Sample

	// Hub receives capture events when set.
	Hub *events.EventHub
}

var _ Driver = (*Session)(nil)

// NewSession returns a session over stimuli.
func NewSession(p Presenter, m Meter, stimuli []Color) *Session {
	return &Session{
		presenter: p,
		meter:     m,
		stimuli:   stimuli,
	}
}

// Advance implements Driver.
func (s *Session) Advance() bool {
	if s.pos >= len(s.stimuli) {
		return false
	}
	s.current = s.stimuli[s.pos]
	s.pos++
	logrus.WithFields(logrus.Fields{
		"stimulus": s.current,
		"index":    s.pos - 1,
		"total":    len(s.stimuli),
	}).Debug("next stimulus")
	return true
}

// Refresh implements Driver.
func (s *Session) Refresh() error {
	return s.presenter.Present(s.current)
}

// Measure implements Driver.
func (s *Session) Measure(ctx context.Context) error {
	sample, err := s.meter.Measure(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	idx := len(s.responses)
	s.responses = append(s.responses, sample)
	s.mu.Unlock()

	// The stimulus for response idx is stimuli[idx]: presentation does not
	// advance until this measurement commits NextDisplay.
	var stim [3]float64
	if idx < len(s.stimuli) {
		stim = s.stimuli[idx].Array()
	}
	radiance := sample.Radiance()
	logrus.WithFields(logrus.Fields{
		"index":    idx,
		"radiance": radiance,
	}).Info("measured stimulus")
	s.Hub.Publish(events.CaptureMeasured, events.CaptureMeasuredEvent{
		Index:    idx,
		Stimulus: stim,
		Radiance: radiance,
		Ts:       time.Now().Unix(),
	})
	return nil
}

// Responses returns a copy of the measurements taken so far.
func (s *Session) Responses() []spectral.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]spectral.Sample, len(s.responses))
	copy(out, s.responses)
	return out
}

// Run drives the session to completion on the calling goroutine, which
// becomes the presentation role.
func (s *Session) Run(ctx context.Context, opts ...Option) (*Result, error) {
	hook := func(from, to State) {
		s.Hub.Publish(events.CaptureState, events.CaptureStateEvent{
			From: from.String(),
			To:   to.String(),
			Ts:   time.Now().Unix(),
		})
	}
	opts = append([]Option{WithTransitionHook(hook)}, opts...)

	l := NewLooper(s, opts...)
	if err := l.Start(ctx); err != nil {
		s.publishDone(err)
		return nil, err
	}

	var renderErr error
	for {
		ok, err := l.Render()
		if err != nil {
			renderErr = err
			break
		}
		if err := s.presenter.SwapAndPoll(); err != nil {
			l.abort()
			renderErr = fmt.Errorf("%w: %w", ErrHardware, err)
			break
		}
		if !ok {
			break
		}
	}

	err := l.Close()
	if renderErr != nil {
		err = renderErr
	}
	s.publishDone(err)
	if err != nil {
		return nil, err
	}

	return &Result{
		Stimuli:   s.stimuli,
		Responses: s.Responses(),
	}, nil
}

func (s *Session) publishDone(err error) {
	ev := events.CaptureDoneEvent{
		Measurements: len(s.Responses()),
		Ts:           time.Now().Unix(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.Hub.Publish(events.CaptureDone, ev)
}

// Run is a shorthand for NewSession(p, m, stimuli).Run(ctx, opts...).
func Run(ctx context.Context, p Presenter, m Meter, stimuli []Color, opts ...Option) (*Result, error) {
	return NewSession(p, m, stimuli).Run(ctx, opts...)
}
