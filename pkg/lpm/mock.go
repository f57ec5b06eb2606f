package lpm

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Mock is an in-memory light box. Replies are queued as soon as a command's
// LF is written, so reads never block.
type Mock struct {
	mu  sync.Mutex
	cmd []byte
	out bytes.Buffer

	// Pins lists the pins that have an LED attached.
	Pins []int

	levels map[int]int
	shots  int

	// Commands records every command received.
	Commands []string
}

var _ io.ReadWriter = (*Mock)(nil)

// NewMock returns a mock with LEDs on pins.
func NewMock(pins ...int) *Mock {
	return &Mock{
		Pins:   pins,
		levels: map[int]int{},
	}
}

// Levels returns the current duty value of every lit pin.
func (m *Mock) Levels() map[int]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]int, len(m.levels))
	for p, v := range m.levels {
		out[p] = v
	}
	return out
}

// Shots returns how many times the camera was triggered.
func (m *Mock) Shots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shots
}

func (m *Mock) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range p {
		if b != '\n' {
			m.cmd = append(m.cmd, b)
			continue
		}
		cmd := strings.TrimSpace(string(m.cmd))
		m.cmd = m.cmd[:0]
		m.Commands = append(m.Commands, cmd)
		m.handle(cmd)
		m.out.WriteString(endOfReply + "\r\n")
	}
	return len(p), nil
}

func (m *Mock) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.out.Len() == 0 {
		return 0, io.EOF
	}
	return m.out.Read(p)
}

func (m *Mock) hasPin(pin int) bool {
	for _, p := range m.Pins {
		if p == pin {
			return true
		}
	}
	return false
}

func (m *Mock) handle(cmd string) {
	name, args, _ := strings.Cut(cmd, " ")
	switch name {
	case "info":
		pins := append([]int(nil), m.Pins...)
		sort.Ints(pins)
		fmt.Fprintf(&m.out, "lpm mock, %d leds %v\r\n", len(pins), pins)
	case "reset":
		m.levels = map[int]int{}
		m.out.WriteString("all leds off\r\n")
	case "shoot":
		m.shots++
		fmt.Fprintf(&m.out, "shot %d\r\n", m.shots)
	case "pwm":
		pinStr, valStr, ok := strings.Cut(args, ",")
		pin, err1 := strconv.Atoi(strings.TrimSpace(pinStr))
		val, err2 := strconv.Atoi(strings.TrimSpace(valStr))
		switch {
		case !ok || err1 != nil || err2 != nil:
			fmt.Fprintf(&m.out, "error: bad pwm arguments %q\r\n", args)
		case !m.hasPin(pin):
			fmt.Fprintf(&m.out, "error: no led on pin %d\r\n", pin)
		default:
			if val == 0 {
				delete(m.levels, pin)
			} else {
				m.levels[pin] = val
			}
			fmt.Fprintf(&m.out, "pin %d pwm %d\r\n", pin, val)
		}
	default:
		fmt.Fprintf(&m.out, "error: unknown command %q\r\n", name)
	}
}
