package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/iris/pkg/utils/ptr"
)

const DefaultSocket = "/tmp/iris.sock"

var (
	defaultFileConfig = &RawFileConfig{
		DataStore:             ptr.To(""),
		ConfigStore:           ptr.To(""),
		Device:                ptr.To("/dev/ttyACM0"),
		Gfx:                   ptr.To("default"),
		MeasureTimeoutSeconds: ptr.To(0),
		PollIntervalMillis:    ptr.To(100),
		RampLevels:            ptr.To(16),
		// rgb2lms residuals are scaled by |y|^(1-w).
		WeightExponent: ptr.To(1.1),
		Socket:         ptr.To(DefaultSocket),
	}
)

// DefaultPath returns ~/.config/iris/iris.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "iris", "iris.json")
}

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	DataStore             *string  `json:"dataStore,omitempty"`
	ConfigStore           *string  `json:"configStore,omitempty"`
	Device                *string  `json:"device,omitempty"`
	Gfx                   *string  `json:"gfx,omitempty"`
	MeasureTimeoutSeconds *int     `json:"measureTimeoutSeconds,omitempty"`
	PollIntervalMillis    *int     `json:"pollIntervalMillis,omitempty"`
	RampLevels            *int     `json:"rampLevels,omitempty"`
	WeightExponent        *float64 `json:"weightExponent,omitempty"`
	Socket                *string  `json:"socket,omitempty"`
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	rawConfig := &RawFileConfig{
		DataStore:             ptr.To(c.DataStore()),
		ConfigStore:           ptr.To(c.ConfigStore()),
		Device:                ptr.To(c.Device()),
		Gfx:                   ptr.To(c.Gfx()),
		MeasureTimeoutSeconds: ptr.To(int(c.MeasureTimeout() / time.Second)),
		PollIntervalMillis:    ptr.To(int(c.PollInterval() / time.Millisecond)),
		RampLevels:            ptr.To(c.RampLevels()),
		WeightExponent:        ptr.To(c.WeightExponent()),
		Socket:                ptr.To(c.Socket()),
	}

	return rawConfig, nil
}

// get returns *v, or *def when v is unset. Callers hold f.mu.
func get[T any](v, def *T) T {
	if v != nil {
		return *v
	}
	return *def
}

func (f *File) read() *RawFileConfig {
	if f.c == nil {
		panic("config is nil")
	}
	return f.c
}

func (f *File) DataStore() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return get(f.read().DataStore, defaultFileConfig.DataStore)
}

func (f *File) ConfigStore() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return get(f.read().ConfigStore, defaultFileConfig.ConfigStore)
}

func (f *File) Device() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return get(f.read().Device, defaultFileConfig.Device)
}

func (f *File) Gfx() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return get(f.read().Gfx, defaultFileConfig.Gfx)
}

func (f *File) MeasureTimeout() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return time.Duration(get(f.read().MeasureTimeoutSeconds, defaultFileConfig.MeasureTimeoutSeconds)) * time.Second
}

func (f *File) PollInterval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return time.Duration(get(f.read().PollIntervalMillis, defaultFileConfig.PollIntervalMillis)) * time.Millisecond
}

func (f *File) RampLevels() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return get(f.read().RampLevels, defaultFileConfig.RampLevels)
}

func (f *File) WeightExponent() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return get(f.read().WeightExponent, defaultFileConfig.WeightExponent)
}

func (f *File) Socket() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return get(f.read().Socket, defaultFileConfig.Socket)
}

func (f *File) SetDataStore(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().DataStore = &s
}

func (f *File) SetConfigStore(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().ConfigStore = &s
}

func (f *File) SetDevice(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().Device = &s
}

func (f *File) SetGfx(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().Gfx = &s
}

func (f *File) SetMeasureTimeout(d time.Duration) error {
	if d < 0 {
		return pkgerrors.Errorf("measure timeout must not be negative, got %s", d)
	}
	secs := int(d / time.Second)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().MeasureTimeoutSeconds = &secs
	return nil
}

func (f *File) SetPollInterval(d time.Duration) error {
	if d < time.Millisecond {
		return pkgerrors.Errorf("poll interval must be at least 1ms, got %s", d)
	}
	ms := int(d / time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().PollIntervalMillis = &ms
	return nil
}

func (f *File) SetRampLevels(n int) error {
	if n < 2 {
		return pkgerrors.Errorf("ramp needs at least 2 levels, got %d", n)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().RampLevels = &n
	return nil
}

func (f *File) SetWeightExponent(w float64) error {
	if w <= 0 {
		return pkgerrors.Errorf("weight exponent must be positive, got %g", w)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().WeightExponent = &w
	return nil
}

func (f *File) SetSocket(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().Socket = &s
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	if err := os.MkdirAll(filepath.Dir(f.filepath), 0o755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create directory for %s", f.filepath)
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"dataStore":      f.DataStore(),
		"configStore":    f.ConfigStore(),
		"device":         f.Device(),
		"gfx":            f.Gfx(),
		"measureTimeout": f.MeasureTimeout(),
		"pollInterval":   f.PollInterval(),
		"rampLevels":     f.RampLevels(),
		"weightExponent": f.WeightExponent(),
		"socket":         f.Socket(),
	}
}
