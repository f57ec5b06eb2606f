package config

import "time"

type Config interface {
	// DataStore is the root of the writable calibration tree. Empty means
	// the default location.
	DataStore() string
	// ConfigStore is the root of the read-only configuration tree. Empty
	// means the default location.
	ConfigStore() string
	// Device is the serial device of the spectroradiometer.
	Device() string
	// Gfx names the graphics output the display is attached to.
	Gfx() string
	// MeasureTimeout bounds a single measurement. Zero means no deadline.
	MeasureTimeout() time.Duration
	PollInterval() time.Duration
	RampLevels() int
	WeightExponent() float64
	Socket() string

	SetDataStore(string)
	SetConfigStore(string)
	SetDevice(string)
	SetGfx(string)
	SetMeasureTimeout(time.Duration) error
	SetPollInterval(time.Duration) error
	SetRampLevels(int) error
	SetWeightExponent(float64) error
	SetSocket(string)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
