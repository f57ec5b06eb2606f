// Package store persists calibration artifacts in a hierarchical tree:
//
//	<root>/version
//	<root>/default.monitor          -> pointer to a monitor id
//	<root>/links.cfg                gfx -> monitor id -> link id
//	<root>/leds.cfg                 light box pin -> LED wavelength
//	<root>/[monitors/]<id>/<id>.monitor
//	<root>/[monitors/]<id>/<settings>.settings
//	<root>/[monitors/]<id>/<profile>.rgb2lms
//
// The store never caches. Every call re-reads the backing FS, so external
// changes are visible immediately, and there are no multi-record transactions.
package store

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CurrentVersion is the tree format written by Init.
const CurrentVersion = "1.0"

const (
	versionFile        = "version"
	defaultMonitorLink = "default.monitor"
	linksFile          = "links.cfg"
	ledsFile           = "leds.cfg"

	monitorSuffix  = ".monitor"
	settingsSuffix = ".settings"
	rgb2lmsSuffix  = ".rgb2lms"
)

// Layout describes where monitor subtrees live and whether writes are allowed.
type Layout struct {
	Name        string
	MonitorsDir string
	ReadOnly    bool
}

var (
	// DataLayout is the read/write data tree (~/.config/iris).
	DataLayout = Layout{Name: "data", MonitorsDir: "monitors"}
	// ConfigLayout is the read-only config tree (~/.iris/config).
	ConfigLayout = Layout{Name: "config", ReadOnly: true}
)

// Store provides lookup, enumeration, load and save over one tree.
type Store struct {
	fs     FS
	layout Layout
	now    func() time.Time
}

// New returns a store over fsys.
func New(fsys FS, layout Layout) *Store {
	return &Store{
		fs:     fsys,
		layout: layout,
		now:    time.Now,
	}
}

// Open returns a store rooted at root, which must exist.
func Open(root string, layout Layout) (*Store, error) {
	fi, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pkgerrors.Wrapf(ErrNotFound, "could not initialize %s store at %s", layout.Name, root)
		}
		return nil, pkgerrors.Wrapf(err, "failed to stat %s", root)
	}
	if !fi.IsDir() {
		return nil, pkgerrors.Errorf("%s is not a directory", root)
	}
	return New(OSFS{Root: root}, layout), nil
}

// OpenData opens a data tree and checks its version file. A version
// mismatch is logged, not rejected.
func OpenData(root string) (*Store, error) {
	s, err := Open(root, DataLayout)
	if err != nil {
		return nil, err
	}

	b, err := s.fs.ReadAll(versionFile)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "could not initialize data store at %s", root)
	}
	if v := strings.TrimSpace(string(b)); v != CurrentVersion {
		logrus.WithFields(logrus.Fields{
			"found":    v,
			"expected": CurrentVersion,
			"root":     root,
		}).Warn("different store version")
	}

	return s, nil
}

// Init creates an empty data tree at root if needed and opens it.
func Init(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, DataLayout.MonitorsDir), 0755); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to create data store at %s", root)
	}
	fsys := OSFS{Root: root}
	if !fsys.Exists(versionFile) {
		if err := fsys.WriteAll(versionFile, []byte(CurrentVersion+"\n")); err != nil {
			return nil, err
		}
	}
	return OpenData(root)
}

// DefaultDataRoot returns ~/.config/iris.
func DefaultDataRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to locate home directory")
	}
	return filepath.Join(home, ".config", "iris"), nil
}

// DefaultConfigRoot returns ~/.iris/config.
func DefaultConfigRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to locate home directory")
	}
	return filepath.Join(home, ".iris", "config"), nil
}

// DefaultDataStore opens the data tree in the user's home directory.
func DefaultDataStore() (*Store, error) {
	root, err := DefaultDataRoot()
	if err != nil {
		return nil, err
	}
	return OpenData(root)
}

// DefaultConfigStore opens the read-only config tree in the user's home directory.
func DefaultConfigStore() (*Store, error) {
	root, err := DefaultConfigRoot()
	if err != nil {
		return nil, err
	}
	return Open(root, ConfigLayout)
}

// Layout returns the store's layout.
func (s *Store) Layout() Layout { return s.layout }

func (s *Store) monitorDir(id string) string {
	return path.Join(s.layout.MonitorsDir, id)
}

func (s *Store) monitorFile(id string) string {
	return path.Join(s.monitorDir(id), id+monitorSuffix)
}

func (s *Store) checkWritable() error {
	if s.layout.ReadOnly {
		return pkgerrors.Wrapf(ErrReadOnly, "%s store", s.layout.Name)
	}
	return nil
}

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// DefaultMonitor resolves the default.monitor pointer to a monitor id.
func (s *Store) DefaultMonitor() (string, error) {
	if !s.fs.Exists(defaultMonitorLink) {
		return "", pkgerrors.Wrapf(ErrNotFound, "no default monitor found @ %s", defaultMonitorLink)
	}
	target, err := s.fs.ReadLink(defaultMonitorLink)
	if err != nil {
		return "", err
	}
	id := path.Base(filepath.ToSlash(strings.TrimSuffix(target, "/")))
	if !validID(id) {
		return "", pkgerrors.Wrapf(ErrNotFound, "default monitor pointer %q is invalid", target)
	}
	return id, nil
}

// SetDefaultMonitor points default.monitor at an existing monitor.
func (s *Store) SetDefaultMonitor(id string) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if _, err := s.LoadMonitor(id); err != nil {
		return err
	}
	return s.fs.Symlink(s.monitorDir(id), defaultMonitorLink)
}

// LoadMonitor reads <id>/<id>.monitor.
func (s *Store) LoadMonitor(id string) (Monitor, error) {
	if !validID(id) {
		return Monitor{}, pkgerrors.Wrapf(ErrNotFound, "invalid monitor id %q", id)
	}

	p := s.monitorFile(id)
	logrus.WithField("path", p).Debug("loading monitor")

	b, err := s.fs.ReadAll(p)
	if err != nil {
		return Monitor{}, err
	}
	m, err := UnmarshalMonitor(b)
	if err != nil {
		return Monitor{}, pkgerrors.Wrapf(err, "failed to parse %s", p)
	}
	return m, nil
}

// SaveMonitor writes m to its subtree, replacing the previous descriptor.
func (s *Store) SaveMonitor(m Monitor) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if !validID(m.ID) {
		return pkgerrors.Errorf("invalid monitor id %q", m.ID)
	}

	b, err := MarshalMonitor(m)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode monitor %s", m.ID)
	}
	return s.fs.WriteAll(s.monitorFile(m.ID), b)
}

// ListMonitors returns the ids of the subdirectories holding a descriptor
// named after themselves, sorted ascending.
func (s *Store) ListMonitors() ([]string, error) {
	children, err := s.fs.List(s.layout.MonitorsDir)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []string{}, nil
		}
		return nil, err
	}

	ids := make([]string, 0, len(children))
	for _, c := range children {
		if !validID(c) || !s.fs.Exists(s.monitorFile(c)) {
			continue
		}
		ids = append(ids, c)
	}
	sort.Strings(ids)
	return ids, nil
}

// listSuffix returns the stems of the children of dir ending in suffix,
// sorted descending.
func (s *Store) listSuffix(dir, suffix string) ([]string, error) {
	children, err := s.fs.List(dir)
	if err != nil {
		return nil, err
	}

	stems := make([]string, 0, len(children))
	for _, c := range children {
		if !strings.HasSuffix(c, suffix) || len(c) == len(suffix) {
			continue
		}
		stems = append(stems, strings.TrimSuffix(c, suffix))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(stems)))
	return stems, nil
}

// ListSettings returns the settings profile ids of m, newest first.
func (s *Store) ListSettings(m Monitor) ([]string, error) {
	return s.listSuffix(s.monitorDir(m.ID), settingsSuffix)
}

// LatestSettings returns the newest settings id of m, or "" if m has none,
// including when this tree has no subtree for m.
func (s *Store) LatestSettings(m Monitor) (string, error) {
	ids, err := s.ListSettings(m)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}

// MakeDisplay combines m, mode and gfx with the link table and the latest
// settings into a Display.
func (s *Store) MakeDisplay(m Monitor, mode Mode, gfx string) (Display, error) {
	links, err := s.LoadLinks()
	if err != nil {
		return Display{}, err
	}

	byMonitor, ok := links[gfx]
	if !ok {
		return Display{}, pkgerrors.Wrapf(ErrNotFound, "no link entry for gfx %q", gfx)
	}
	linkID, ok := byMonitor[m.ID]
	if !ok {
		return Display{}, pkgerrors.Wrapf(ErrNotFound, "no link entry for monitor %q on gfx %q", m.ID, gfx)
	}

	settingsID, err := s.LatestSettings(m)
	if err != nil {
		return Display{}, err
	}

	return Display{
		MonitorID:  m.ID,
		SettingsID: settingsID,
		LinkID:     linkID,
		Gfx:        gfx,
		Mode:       mode,
	}, nil
}

// ListRGB2LMS returns the transform ids stored for a monitor, newest first.
func (s *Store) ListRGB2LMS(monitorID string) ([]string, error) {
	if !validID(monitorID) {
		return nil, pkgerrors.Wrapf(ErrNotFound, "invalid monitor id %q", monitorID)
	}
	return s.listSuffix(s.monitorDir(monitorID), rgb2lmsSuffix)
}

// LoadRGB2LMS returns the newest transform whose display matches d on
// monitor, settings, link and gfx. It is a linear scan.
func (s *Store) LoadRGB2LMS(d Display) (RGB2LMS, error) {
	ids, err := s.ListRGB2LMS(d.MonitorID)
	if errors.Is(err, ErrNotFound) {
		return RGB2LMS{}, pkgerrors.Wrapf(ErrNoCalibration, "monitor %s has no calibrations", d.MonitorID)
	}
	if err != nil {
		return RGB2LMS{}, err
	}

	log := logrus.WithFields(logrus.Fields{
		"monitor":  d.MonitorID,
		"settings": d.SettingsID,
		"link":     d.LinkID,
		"gfx":      d.Gfx,
	})

	for _, id := range ids {
		p := path.Join(s.monitorDir(d.MonitorID), id+rgb2lmsSuffix)
		b, err := s.fs.ReadAll(p)
		if err != nil {
			return RGB2LMS{}, err
		}
		t, err := UnmarshalRGB2LMS(b)
		if err != nil {
			return RGB2LMS{}, pkgerrors.Wrapf(err, "failed to parse %s", p)
		}
		if t.Display.Matches(d) {
			log.WithField("id", t.ID).Debug("found matching rgb2lms")
			return t, nil
		}
	}

	return RGB2LMS{}, pkgerrors.Wrapf(ErrNoCalibration, "monitor %s, settings %q, link %q, gfx %q",
		d.MonitorID, d.SettingsID, d.LinkID, d.Gfx)
}

// NewTransformID returns a fixed-width UTC timestamp, so that descending
// lexicographic order lists the newest transform first.
func NewTransformID(t time.Time) string {
	return t.UTC().Format("20060102T150405.000000000Z")
}

// SaveRGB2LMS appends t under its monitor's subtree. An empty id is replaced
// by NewTransformID; existing records are never overwritten. The saved value
// is returned.
func (s *Store) SaveRGB2LMS(t RGB2LMS) (RGB2LMS, error) {
	if err := s.checkWritable(); err != nil {
		return RGB2LMS{}, err
	}
	if !validID(t.Display.MonitorID) {
		return RGB2LMS{}, pkgerrors.Errorf("invalid monitor id %q", t.Display.MonitorID)
	}
	if t.ID == "" {
		t.ID = NewTransformID(s.now())
	}
	if !validID(t.ID) {
		return RGB2LMS{}, pkgerrors.Errorf("invalid rgb2lms id %q", t.ID)
	}

	p := path.Join(s.monitorDir(t.Display.MonitorID), t.ID+rgb2lmsSuffix)
	if s.fs.Exists(p) {
		return RGB2LMS{}, pkgerrors.Wrapf(ErrExists, "rgb2lms %s", p)
	}

	b, err := MarshalRGB2LMS(t)
	if err != nil {
		return RGB2LMS{}, pkgerrors.Wrapf(err, "failed to encode rgb2lms %s", t.ID)
	}
	if err := s.fs.WriteAll(p, b); err != nil {
		return RGB2LMS{}, err
	}

	logrus.WithFields(logrus.Fields{
		"id":      t.ID,
		"monitor": t.Display.MonitorID,
	}).Info("saved rgb2lms")
	return t, nil
}

// LoadLinks reads the link table.
func (s *Store) LoadLinks() (Links, error) {
	b, err := s.fs.ReadAll(linksFile)
	if err != nil {
		return nil, err
	}
	return UnmarshalLinks(b)
}

// SaveLink records the link id of a monitor on a gfx backend.
func (s *Store) SaveLink(gfx, monitorID, linkID string) error {
	if err := s.checkWritable(); err != nil {
		return err
	}

	links, err := s.LoadLinks()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		links = Links{}
	}
	if links == nil {
		links = Links{}
	}
	if links[gfx] == nil {
		links[gfx] = map[string]string{}
	}
	links[gfx][monitorID] = linkID

	b, err := MarshalLinks(links)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to encode links")
	}
	return s.fs.WriteAll(linksFile, b)
}

// LoadLEDs reads the light box LED table.
func (s *Store) LoadLEDs() (LEDs, error) {
	b, err := s.fs.ReadAll(ledsFile)
	if err != nil {
		return nil, err
	}
	return UnmarshalLEDs(b)
}

// SaveLED records the wavelength of the LED on pin. A wavelength of zero
// removes the pin.
func (s *Store) SaveLED(pin, wavelength int) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if pin < 0 || wavelength < 0 {
		return fmt.Errorf("invalid led pin %d wavelength %d", pin, wavelength)
	}

	leds, err := s.LoadLEDs()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		leds = LEDs{}
	}
	if wavelength == 0 {
		delete(leds, pin)
	} else {
		leds[pin] = wavelength
	}

	b, err := MarshalLEDs(leds)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to encode leds")
	}
	return s.fs.WriteAll(ledsFile, b)
}
