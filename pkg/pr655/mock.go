package pr655

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Mock is an in-memory PR-655. Replies are queued as soon as a command's CR
// is written, so reads never block.
type Mock struct {
	mu  sync.Mutex
	cmd []byte
	out bytes.Buffer

	// Spectrum returns the radiance for each of the NumWavelengths bins.
	Spectrum func() []float64
	// Status is reported in every status field.
	Status int

	Serial   string
	Model    string
	Software string

	// Commands records every command received.
	Commands []string
}

var _ io.ReadWriter = (*Mock)(nil)

// NewMock returns a mock whose measurements come from spectrum.
func NewMock(spectrum func() []float64) *Mock {
	return &Mock{
		Spectrum: spectrum,
		Serial:   "60984123",
		Model:    "PR-655",
		Software: "1.004",
	}
}

// reply pads body to n bytes including the trailing CR LF.
func reply(n int, body string) string {
	if len(body) > n-2 {
		body = body[:n-2]
	}
	return body + strings.Repeat(" ", n-2-len(body)) + "\r\n"
}

func (m *Mock) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range p {
		if b != '\r' {
			m.cmd = append(m.cmd, b)
			continue
		}
		cmd := string(m.cmd)
		m.cmd = m.cmd[:0]
		m.Commands = append(m.Commands, cmd)
		m.handle(cmd)
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

func (m *Mock) handle(cmd string) {
	status := fmt.Sprintf("%05d", m.Status)
	switch cmd {
	case "PHOTO":
		m.out.WriteString(reply(lenRemote, " REMOTE MODE"))
	case "Q":
	case "D110":
		m.out.WriteString(reply(lenSerial, status+","+m.Serial))
	case "D111":
		m.out.WriteString(reply(lenModel, status+","+m.Model))
	case "D114":
		m.out.WriteString(reply(lenSoftware, status+","+m.Software))
	case "SU0", "SU1":
		m.out.WriteString(reply(lenUnits, status))
	case "M5":
		m.measure(status)
	default:
		m.out.WriteString(reply(lenUnits, "00020"))
	}
}

func (m *Mock) measure(status string) {
	values := make([]float64, NumWavelengths)
	if m.Spectrum != nil {
		copy(values, m.Spectrum())
	}

	peak, total := 0, 0.0
	for i, v := range values {
		if v > values[peak] {
			peak = i
		}
		total += v * WavelengthStep
	}
	m.out.WriteString(reply(lenHeader, fmt.Sprintf("%s,0001,%9.3e,%9.3e",
		status, float64(StartWavelength+peak*WavelengthStep), total)))
	if m.Status != 0 {
		return
	}

	for i, v := range values {
		if v < 0 {
			v = 0
		}
		m.out.WriteString(fmt.Sprintf("%04d,%9.3e\r\n", StartWavelength+i*WavelengthStep, v))
	}
}
