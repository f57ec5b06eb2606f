package store

import (
	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/charlie0129/iris/pkg/fit"
)

type monitorDoc struct {
	Monitor *Monitor `yaml:"monitor"`
}

type displayDoc struct {
	Display *Display `yaml:"display"`
}

type rgb2lmsBody struct {
	ID        string    `yaml:"id"`
	Size      Size      `yaml:"size"`
	GrayLevel float64   `yaml:"gray-level"`
	Dataset   string    `yaml:"dataset"`
	Display   Display   `yaml:"display"`
	DKL       []float64 `yaml:"dkl,flow"`
}

type rgb2lmsDoc struct {
	RGB2LMS *rgb2lmsBody `yaml:"rgb2lms"`
}

// Links maps gfx name → monitor id → link id.
type Links map[string]map[string]string

// LEDs maps a light box pin to the peak wavelength in nm of its LED.
type LEDs map[int]int

type ledsDoc struct {
	LEDs LEDs `yaml:"leds"`
}

// MarshalMonitor encodes a monitor descriptor.
func MarshalMonitor(m Monitor) ([]byte, error) {
	return yaml.Marshal(monitorDoc{Monitor: &m})
}

// UnmarshalMonitor decodes a monitor descriptor.
func UnmarshalMonitor(data []byte) (Monitor, error) {
	var doc monitorDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Monitor{}, pkgerrors.Wrapf(ErrParse, "monitor: %v", err)
	}
	if doc.Monitor == nil || doc.Monitor.ID == "" {
		return Monitor{}, pkgerrors.Wrap(ErrParse, "monitor: missing id")
	}
	return *doc.Monitor, nil
}

// MarshalDisplay encodes a display descriptor.
func MarshalDisplay(d Display) ([]byte, error) {
	return yaml.Marshal(displayDoc{Display: &d})
}

// UnmarshalDisplay decodes a display descriptor.
func UnmarshalDisplay(data []byte) (Display, error) {
	var doc displayDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Display{}, pkgerrors.Wrapf(ErrParse, "display: %v", err)
	}
	if doc.Display == nil || doc.Display.MonitorID == "" {
		return Display{}, pkgerrors.Wrap(ErrParse, "display: missing monitor_id")
	}
	return *doc.Display, nil
}

// MarshalRGB2LMS encodes a color transform.
func MarshalRGB2LMS(t RGB2LMS) ([]byte, error) {
	return yaml.Marshal(rgb2lmsDoc{RGB2LMS: &rgb2lmsBody{
		ID:        t.ID,
		Size:      t.Size,
		GrayLevel: t.GrayLevel,
		Dataset:   t.Dataset,
		Display:   t.Display,
		DKL:       t.Params[:],
	}})
}

// UnmarshalRGB2LMS decodes a color transform.
func UnmarshalRGB2LMS(data []byte) (RGB2LMS, error) {
	var doc rgb2lmsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return RGB2LMS{}, pkgerrors.Wrapf(ErrParse, "rgb2lms: %v", err)
	}
	b := doc.RGB2LMS
	if b == nil || b.ID == "" {
		return RGB2LMS{}, pkgerrors.Wrap(ErrParse, "rgb2lms: missing id")
	}
	if len(b.DKL) != fit.NumRGB2LMSParams {
		return RGB2LMS{}, pkgerrors.Wrapf(ErrParse, "rgb2lms %s: want %d parameters, got %d", b.ID, fit.NumRGB2LMSParams, len(b.DKL))
	}

	t := RGB2LMS{
		ID:        b.ID,
		Size:      b.Size,
		GrayLevel: b.GrayLevel,
		Dataset:   b.Dataset,
		Display:   b.Display,
	}
	copy(t.Params[:], b.DKL)
	return t, nil
}

// UnmarshalLinks decodes a link table.
func UnmarshalLinks(data []byte) (Links, error) {
	links := Links{}
	if err := yaml.Unmarshal(data, &links); err != nil {
		return nil, pkgerrors.Wrapf(ErrParse, "links: %v", err)
	}
	// An empty document or a YAML null decodes to a nil map.
	if links == nil {
		links = Links{}
	}
	return links, nil
}

// MarshalLinks encodes a link table.
func MarshalLinks(l Links) ([]byte, error) {
	return yaml.Marshal(l)
}

// UnmarshalLEDs decodes a light box LED table.
func UnmarshalLEDs(data []byte) (LEDs, error) {
	var doc ledsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, pkgerrors.Wrapf(ErrParse, "leds: %v", err)
	}
	if doc.LEDs == nil {
		doc.LEDs = LEDs{}
	}
	for pin, wl := range doc.LEDs {
		if pin < 0 || wl <= 0 {
			return nil, pkgerrors.Wrapf(ErrParse, "leds: invalid entry %d: %d", pin, wl)
		}
	}
	return doc.LEDs, nil
}

// MarshalLEDs encodes a light box LED table.
func MarshalLEDs(l LEDs) ([]byte, error) {
	return yaml.Marshal(ledsDoc{LEDs: l})
}
