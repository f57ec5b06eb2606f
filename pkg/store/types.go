package store

import "github.com/charlie0129/iris/pkg/fit"

// Mode is a display mode.
type Mode struct {
	Width   float64 `yaml:"width" json:"width"`
	Height  float64 `yaml:"height" json:"height"`
	Refresh float64 `yaml:"refresh" json:"refresh"`
	// ColorDepth holds the bits per channel (r, g, b).
	ColorDepth [3]int `yaml:"color-depth,flow" json:"colorDepth"`
}

// Monitor is the identity record of a physical display. Values are never
// mutated in place once loaded; write a new value back instead.
type Monitor struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Vendor      string `yaml:"vendor" json:"vendor"`
	Year        string `yaml:"year" json:"year"`
	Serial      string `yaml:"serial" json:"serial"`
	DefaultMode Mode   `yaml:"preferred_mode" json:"defaultMode"`
}

// Display is the key of one calibration context.
type Display struct {
	MonitorID  string `yaml:"monitor_id" json:"monitorId"`
	SettingsID string `yaml:"settings_id" json:"settingsId"`
	LinkID     string `yaml:"link_id" json:"linkId"`
	Gfx        string `yaml:"gfx" json:"gfx"`
	Mode       Mode   `yaml:"mode" json:"mode"`
}

// Matches reports whether d and o are the same calibration target. The
// display mode is not compared.
func (d Display) Matches(o Display) bool {
	// FIXME: decide whether a differing mode should invalidate a calibration.
	return d.MonitorID == o.MonitorID &&
		d.SettingsID == o.SettingsID &&
		d.LinkID == o.LinkID &&
		d.Gfx == o.Gfx
}

// Size is a physical size.
type Size struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// RGB2LMS is a fitted color transform for one Display.
type RGB2LMS struct {
	ID        string            `json:"id"`
	Size      Size              `json:"size"`
	GrayLevel float64           `json:"grayLevel"`
	Dataset   string            `json:"dataset"`
	Display   Display           `json:"display"`
	Params    fit.RGB2LMSParams `json:"params"`
}
