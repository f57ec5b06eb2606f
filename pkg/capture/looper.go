// Package capture coordinates stimulus presentation with spectral
// measurement. Two roles share one atomic state word:
//
//   - presentation (the caller's frame loop) owns NextDisplay→NextMeasure
//     and NextDisplay→Stop
//   - measurement (a goroutine started by Start) owns Waiting→NextDisplay
//     and NextMeasure→NextDisplay, plus the abort edge to Stop
//
// Every transition is a compare-and-swap from the state the role observed.
package capture

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// State is the shared capture state.
type State int32

const (
	Waiting State = iota
	NextDisplay
	NextMeasure
	Stop
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "Waiting"
	case NextDisplay:
		return "NextDisplay"
	case NextMeasure:
		return "NextMeasure"
	case Stop:
		return "Stop"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Driver supplies the per-role work of a Looper.
type Driver interface {
	// Advance moves to the next stimulus. It returns false when the
	// sequence is exhausted. Called from the presentation role.
	Advance() bool
	// Refresh redraws the current stimulus. Called every frame from the
	// presentation role.
	Refresh() error
	// Measure performs the blocking hardware measurement of the current
	// stimulus. Called from the measurement role.
	Measure(ctx context.Context) error
}

const (
	defaultPollInterval      = 100 * time.Millisecond
	defaultStartPollInterval = 50 * time.Millisecond
)

type options struct {
	pollInterval      time.Duration
	startPollInterval time.Duration
	measureTimeout    time.Duration
	onTransition      func(from, to State)
}

// Option configures a Looper.
type Option func(*options)

// WithPollInterval sets how often the idle measurement role re-reads the state.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithStartPollInterval sets how often Start re-reads the state.
func WithStartPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.startPollInterval = d
		}
	}
}

// WithMeasureTimeout bounds every measurement. Zero, the default, means no
// deadline: a hung meter blocks the measurement role until the context
// passed to Start is cancelled.
func WithMeasureTimeout(d time.Duration) Option {
	return func(o *options) {
		o.measureTimeout = d
	}
}

// WithTransitionHook registers fn to be called after every committed
// transition. fn is called from both roles and must be safe for concurrent use.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(o *options) {
		o.onTransition = fn
	}
}

// Looper is the two-role capture state machine.
type Looper struct {
	driver  Driver
	opts    options
	state   atomic.Int32
	started atomic.Bool

	done   chan struct{}
	cancel context.CancelFunc
	// err is written by the measurement role before done is closed.
	err error
}

// NewLooper returns a Looper in the Waiting state.
func NewLooper(d Driver, opts ...Option) *Looper {
	o := options{
		pollInterval:      defaultPollInterval,
		startPollInterval: defaultStartPollInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Looper{driver: d, opts: o}
}

// State returns the current state.
func (l *Looper) State() State {
	return State(l.state.Load())
}

func (l *Looper) transition(from, to State) bool {
	if !l.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	logrus.WithFields(logrus.Fields{
		"from": from,
		"to":   to,
	}).Trace("capture state transition")
	if l.opts.onTransition != nil {
		l.opts.onTransition(from, to)
	}
	return true
}

// forceStop moves any non-terminal state to Stop.
func (l *Looper) forceStop() {
	for {
		cur := l.State()
		if cur == Stop || l.transition(cur, Stop) {
			return
		}
	}
}

// abort is the presentation role's way out: it stops the machine and
// cancels a measurement still in flight.
func (l *Looper) abort() {
	l.forceStop()
	if l.cancel != nil {
		l.cancel()
	}
}

// Start launches the measurement role and blocks until it has handed control
// to presentation. It fails with ErrInvalidState unless the Looper is
// Waiting and has never been started. Cancelling ctx stops the measurement
// role.
func (l *Looper) Start(ctx context.Context) error {
	if cur := l.State(); cur != Waiting {
		return pkgerrors.Wrapf(ErrInvalidState, "start in state %s", cur)
	}
	if !l.started.CompareAndSwap(false, true) {
		return pkgerrors.Wrap(ErrInvalidState, "already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.loop(ctx)

	for l.State() == Waiting {
		time.Sleep(l.opts.startPollInterval)
	}

	if l.State() == Stop {
		<-l.done
		return l.err
	}
	return nil
}

func (l *Looper) loop(ctx context.Context) {
	defer close(l.done)

	l.transition(Waiting, NextDisplay)

	ticker := time.NewTicker(l.opts.pollInterval)
	defer ticker.Stop()

	for {
		cur := l.State()
		if cur == Stop {
			logrus.Debug("measurement loop stopped")
			return
		}

		if cur != NextMeasure {
			select {
			case <-ctx.Done():
				l.err = pkgerrors.Wrap(ctx.Err(), "capture cancelled")
				l.forceStop()
				return
			case <-ticker.C:
			}
			continue
		}

		if err := l.measure(ctx); err != nil {
			l.err = fmt.Errorf("%w: %w", ErrHardware, err)
			if l.State() == Stop {
				logrus.WithError(err).Debug("measurement interrupted by presentation")
			} else {
				logrus.WithError(err).Error("measurement failed, aborting capture")
			}
			l.forceStop()
			return
		}

		l.transition(cur, NextDisplay)
	}
}

func (l *Looper) measure(ctx context.Context) error {
	if l.opts.measureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.measureTimeout)
		defer cancel()
	}
	return l.driver.Measure(ctx)
}

// Render runs one presentation step. It returns false once the state is
// Stop. In NextDisplay it advances the stimulus and commits the next state
// only if nobody changed the state meanwhile. Unless stopping, the current
// frame is always redrawn.
//
// A Refresh failure moves the state to Stop, cancels a measurement in
// flight and is returned wrapped in ErrHardware.
func (l *Looper) Render() (bool, error) {
	cur := l.State()
	if cur == Stop {
		return false, nil
	}

	if cur != NextDisplay {
		return true, l.refresh()
	}

	if !l.driver.Advance() {
		l.transition(cur, Stop)
		return false, nil
	}
	// The new stimulus is drawn before measurement is released.
	if err := l.refresh(); err != nil {
		return false, err
	}
	l.transition(cur, NextMeasure)
	return true, nil
}

func (l *Looper) refresh() error {
	if err := l.driver.Refresh(); err != nil {
		l.abort()
		return fmt.Errorf("%w: %w", ErrHardware, err)
	}
	return nil
}

// Close waits for the measurement role to exit and returns its error. It
// blocks until the state reaches Stop.
func (l *Looper) Close() error {
	if l.done == nil {
		return nil
	}
	<-l.done
	l.cancel()
	return l.err
}
