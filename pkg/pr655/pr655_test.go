package pr655

import (
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"testing"
	"time"
)

func flat(v float64) func() []float64 {
	return func() []float64 {
		out := make([]float64, NumWavelengths)
		for i := range out {
			out[i] = v
		}
		return out
	}
}

func TestInfoCommands(t *testing.T) {
	m := NewMock(nil)
	d := New(m, WithoutDelays())
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tests := []struct {
		name string
		fn   func(context.Context) (string, error)
		want string
	}{
		{"serial", d.SerialNumber, "60984123"},
		{"model", d.ModelNumber, "PR-655"},
		{"software", d.SoftwareVersion, "1.004"},
	}
	for _, tt := range tests {
		got, err := tt.fn(ctx)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}

	if err := d.SetUnits(ctx, true); err != nil {
		t.Fatalf("SetUnits: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := "PHOTO D110 D111 D114 SU1 Q"
	if got := strings.Join(m.Commands, " "); got != want {
		t.Fatalf("command log %q, want %q", got, want)
	}
}

func TestMeasure(t *testing.T) {
	m := NewMock(func() []float64 {
		out := make([]float64, NumWavelengths)
		for i := range out {
			out[i] = float64(i+1) * 1e-3
		}
		return out
	})
	d := New(m, WithoutDelays())

	s, err := d.Measure(context.Background())
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if s.Len() != NumWavelengths || s.Start != 380 || s.Step != 4 {
		t.Fatalf("unexpected grid %v/%v/%d", s.Start, s.Step, s.Len())
	}
	if s.Wavelength(100) != 780 {
		t.Fatalf("last bin at %v nm", s.Wavelength(100))
	}
	for i, v := range s.Values {
		want := float64(i+1) * 1e-3
		if math.Abs(v-want) > want*1e-3 {
			t.Fatalf("bin %d: got %v, want %v", i, v, want)
		}
	}
}

func TestMeasureStatusError(t *testing.T) {
	m := NewMock(flat(1))
	m.Status = 3
	d := New(m, WithoutDelays())

	_, err := d.Measure(context.Background())
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
}

func TestMeasureShortRead(t *testing.T) {
	m := NewMock(flat(1))
	d := New(m, WithoutDelays())

	// nothing has been sent, so there is no reply to read
	if _, err := d.read(context.Background(), 4); !errors.Is(err, ErrShortRead) {
		t.Fatalf("expected ErrShortRead, got %v", err)
	}
}

func TestMeasureCancelled(t *testing.T) {
	d := New(NewMock(flat(1)), WithoutDelays())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Measure(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// silentPort never answers: reads block on an idle pipe and writes are
// dropped.
type silentPort struct {
	*os.File
}

func (silentPort) Write(b []byte) (int, error) { return len(b), nil }

func newSilentPort(t *testing.T) silentPort {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})
	return silentPort{r}
}

func TestMeasureBlockedRead(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		ctx     func() (context.Context, context.CancelFunc)
		want    error
	}{
		{
			name:    "context deadline",
			timeout: 10 * time.Second,
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 50*time.Millisecond)
			},
			want: context.DeadlineExceeded,
		},
		{
			name:    "cancel",
			timeout: 10 * time.Second,
			ctx: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				time.AfterFunc(50*time.Millisecond, cancel)
				return ctx, cancel
			},
			want: context.Canceled,
		},
		{
			name:    "read timeout",
			timeout: 50 * time.Millisecond,
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithCancel(context.Background())
			},
			want: ErrShortRead,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(newSilentPort(t), WithoutDelays(), WithReadTimeout(tt.timeout))
			ctx, cancel := tt.ctx()
			defer cancel()

			start := time.Now()
			_, err := d.Measure(ctx)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Fatalf("Measure returned after %v", elapsed)
			}
		})
	}
}

func TestParseDataLine(t *testing.T) {
	tests := []struct {
		line   string
		lambda int
		value  float64
		bad    bool
	}{
		{"0380,1.234e-03\r\n", 380, 1.234e-3, false},
		{"0780,0.000e+00\r\n", 780, 0, false},
		{"0380;1.234e-03\r\n", 0, 0, true},
		{"abcd,1.234e-03\r\n", 0, 0, true},
		{"0380,garbage!!\r\n", 0, 0, true},
	}
	for _, tt := range tests {
		lambda, value, err := parseDataLine(tt.line)
		if tt.bad {
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("%q: expected ErrMalformed, got %v", tt.line, err)
			}
			continue
		}
		if err != nil || lambda != tt.lambda || value != tt.value {
			t.Fatalf("%q: got %d, %v, %v", tt.line, lambda, value, err)
		}
	}
}
