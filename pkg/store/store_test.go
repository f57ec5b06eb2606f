package store

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/charlie0129/iris/pkg/fit"
)

var testMonitor = Monitor{
	ID:     "eizo-cg277",
	Name:   "CG277",
	Vendor: "EIZO",
	Year:   "2016",
	Serial: "21436587",
	DefaultMode: Mode{
		Width:      2560,
		Height:     1440,
		Refresh:    59.951,
		ColorDepth: [3]int{10, 10, 10},
	},
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := Init(root)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return s, root
}

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestMonitorRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.SaveMonitor(testMonitor); err != nil {
		t.Fatalf("SaveMonitor failed: %v", err)
	}
	got, err := s.LoadMonitor(testMonitor.ID)
	if err != nil {
		t.Fatalf("LoadMonitor failed: %v", err)
	}
	if got != testMonitor {
		t.Errorf("LoadMonitor() = %+v, want %+v", got, testMonitor)
	}
}

func TestLoadMonitorErrors(t *testing.T) {
	s, root := newTestStore(t)

	if _, err := s.LoadMonitor("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	writeFile(t, filepath.Join(root, "monitors", "broken", "broken.monitor"), "monitor: [unterminated")
	if _, err := s.LoadMonitor("broken"); !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}

	writeFile(t, filepath.Join(root, "monitors", "noid", "noid.monitor"), "monitor:\n  name: x\n")
	if _, err := s.LoadMonitor("noid"); !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for missing id, got %v", err)
	}
}

func TestListMonitors(t *testing.T) {
	s, root := newTestStore(t)

	if err := s.SaveMonitor(testMonitor); err != nil {
		t.Fatal(err)
	}
	other := testMonitor
	other.ID = "dell-u2415"
	if err := s.SaveMonitor(other); err != nil {
		t.Fatal(err)
	}
	// Directory without a descriptor named after itself.
	writeFile(t, filepath.Join(root, "monitors", "stray", "other.monitor"), "")

	ids, err := s.ListMonitors()
	if err != nil {
		t.Fatalf("ListMonitors failed: %v", err)
	}
	want := []string{"dell-u2415", "eizo-cg277"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ListMonitors() = %v, want %v", ids, want)
	}
}

func TestListSettings(t *testing.T) {
	s, root := newTestStore(t)
	if err := s.SaveMonitor(testMonitor); err != nil {
		t.Fatal(err)
	}

	latest, err := s.LatestSettings(testMonitor)
	if err != nil {
		t.Fatalf("LatestSettings failed: %v", err)
	}
	if latest != "" {
		t.Errorf("LatestSettings() = %q, want empty", latest)
	}

	dir := filepath.Join(root, "monitors", testMonitor.ID)
	for _, name := range []string{"20170102.settings", "20180305.settings", "20161231.settings", "notes.txt"} {
		writeFile(t, filepath.Join(dir, name), "")
	}

	ids, err := s.ListSettings(testMonitor)
	if err != nil {
		t.Fatalf("ListSettings failed: %v", err)
	}
	want := []string{"20180305", "20170102", "20161231"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ListSettings() = %v, want %v", ids, want)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] <= ids[i] {
			t.Errorf("settings not strictly descending at %d: %v", i, ids)
		}
	}

	latest, err = s.LatestSettings(testMonitor)
	if err != nil {
		t.Fatal(err)
	}
	if latest != ids[0] {
		t.Errorf("LatestSettings() = %q, want %q", latest, ids[0])
	}
}

func TestMakeDisplay(t *testing.T) {
	s, root := newTestStore(t)
	if err := s.SaveMonitor(testMonitor); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "monitors", testMonitor.ID, "20180305.settings"), "")
	if err := s.SaveLink("opengl", testMonitor.ID, "dp-1"); err != nil {
		t.Fatalf("SaveLink failed: %v", err)
	}

	mode := Mode{Width: 1920, Height: 1080, Refresh: 60, ColorDepth: [3]int{8, 8, 8}}
	d, err := s.MakeDisplay(testMonitor, mode, "opengl")
	if err != nil {
		t.Fatalf("MakeDisplay failed: %v", err)
	}
	want := Display{
		MonitorID:  testMonitor.ID,
		SettingsID: "20180305",
		LinkID:     "dp-1",
		Gfx:        "opengl",
		Mode:       mode,
	}
	if d != want {
		t.Errorf("MakeDisplay() = %+v, want %+v", d, want)
	}

	if _, err := s.MakeDisplay(testMonitor, mode, "vulkan"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown gfx: expected ErrNotFound, got %v", err)
	}
	other := testMonitor
	other.ID = "unlinked"
	if _, err := s.MakeDisplay(other, mode, "opengl"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unlinked monitor: expected ErrNotFound, got %v", err)
	}
}

func TestMakeDisplayWithoutLinkTable(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.MakeDisplay(testMonitor, Mode{}, "opengl"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testTransform(display Display) RGB2LMS {
	return RGB2LMS{
		Size:      Size{Width: 597.6, Height: 336.2},
		GrayLevel: 0.66,
		Dataset:   "run-1",
		Display:   display,
		Params: fit.RGB2LMSParams{
			0.1, 1.0 / 3, math.Pi,
			1e-300, -2.5e-7, 6.02214076e23,
			0.30000000000000004, 5e-5, 1e-5,
			math.SmallestNonzeroFloat64, math.MaxFloat64, -0.0,
			2.2, 1.9999999999999998, 2.4000000000000004,
		},
	}
}

func TestRGB2LMSRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	d := Display{MonitorID: testMonitor.ID, SettingsID: "20180305", LinkID: "dp-1", Gfx: "opengl"}

	saved, err := s.SaveRGB2LMS(testTransform(d))
	if err != nil {
		t.Fatalf("SaveRGB2LMS failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("expected an id to be assigned")
	}

	got, err := s.LoadRGB2LMS(d)
	if err != nil {
		t.Fatalf("LoadRGB2LMS failed: %v", err)
	}
	for i := range saved.Params {
		if math.Float64bits(got.Params[i]) != math.Float64bits(saved.Params[i]) {
			t.Errorf("param[%d] = %v, want %v (bit-exact)", i, got.Params[i], saved.Params[i])
		}
	}
	if got.ID != saved.ID || got.Size != saved.Size || got.GrayLevel != saved.GrayLevel ||
		got.Dataset != saved.Dataset || got.Display != saved.Display {
		t.Errorf("LoadRGB2LMS() = %+v, want %+v", got, saved)
	}
}

func TestLoadRGB2LMSPrefersNewestMatch(t *testing.T) {
	s, _ := newTestStore(t)
	clock := time.Date(2018, 3, 5, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	d := Display{MonitorID: testMonitor.ID, SettingsID: "s1", LinkID: "dp-1", Gfx: "opengl"}
	other := d
	other.LinkID = "hdmi-1"

	older, err := s.SaveRGB2LMS(testTransform(d))
	if err != nil {
		t.Fatal(err)
	}
	newerT := testTransform(d)
	newerT.Display.Mode = Mode{Width: 800, Height: 600, Refresh: 75}
	newer, err := s.SaveRGB2LMS(newerT)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveRGB2LMS(testTransform(other)); err != nil {
		t.Fatal(err)
	}

	ids, err := s.ListRGB2LMS(testMonitor.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[1] != newer.ID || ids[2] != older.ID {
		t.Fatalf("ListRGB2LMS() = %v, want newest first", ids)
	}

	// The mode differs from the newest record but is not part of the match.
	got, err := s.LoadRGB2LMS(d)
	if err != nil {
		t.Fatalf("LoadRGB2LMS failed: %v", err)
	}
	if got.ID != newer.ID {
		t.Errorf("LoadRGB2LMS() picked %s, want %s", got.ID, newer.ID)
	}

	miss := d
	miss.SettingsID = "s0"
	_, err = s.LoadRGB2LMS(miss)
	if !errors.Is(err, ErrNoCalibration) || !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNoCalibration, got %v", err)
	}
}

func TestSaveRGB2LMSAppendOnly(t *testing.T) {
	s, _ := newTestStore(t)
	tr := testTransform(Display{MonitorID: testMonitor.ID})
	tr.ID = "fixed"

	if _, err := s.SaveRGB2LMS(tr); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveRGB2LMS(tr); !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
}

func TestNewTransformIDOrdering(t *testing.T) {
	base := time.Date(2019, 12, 31, 23, 59, 59, 999, time.UTC)
	a := NewTransformID(base)
	b := NewTransformID(base.Add(time.Nanosecond))
	c := NewTransformID(base.Add(48 * time.Hour))
	if !(a < b && b < c) {
		t.Errorf("ids do not sort chronologically: %s %s %s", a, b, c)
	}
	if len(a) != len(c) {
		t.Errorf("ids are not fixed width: %s %s", a, c)
	}
}

func TestDefaultMonitor(t *testing.T) {
	s, root := newTestStore(t)

	if _, err := s.DefaultMonitor(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.SetDefaultMonitor(testMonitor.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("default to missing monitor: expected ErrNotFound, got %v", err)
	}

	if err := s.SaveMonitor(testMonitor); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDefaultMonitor(testMonitor.ID); err != nil {
		t.Fatalf("SetDefaultMonitor failed: %v", err)
	}
	id, err := s.DefaultMonitor()
	if err != nil {
		t.Fatalf("DefaultMonitor failed: %v", err)
	}
	if id != testMonitor.ID {
		t.Errorf("DefaultMonitor() = %q, want %q", id, testMonitor.ID)
	}

	// A plain file works as a pointer too.
	link := filepath.Join(root, "default.monitor")
	if err := os.Remove(link); err != nil {
		t.Fatal(err)
	}
	writeFile(t, link, "monitors/dell-u2415\n")
	if id, err = s.DefaultMonitor(); err != nil || id != "dell-u2415" {
		t.Errorf("DefaultMonitor() = %q, %v", id, err)
	}
}

func TestConfigStore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "eizo-cg277", "eizo-cg277.monitor"), `monitor:
  id: eizo-cg277
  name: CG277
  vendor: EIZO
  year: "2016"
  serial: "21436587"
  preferred_mode:
    width: 2560
    height: 1440
    refresh: 59.951
    color-depth: [10, 10, 10]
`)
	writeFile(t, filepath.Join(root, "links.cfg"), "opengl:\n  eizo-cg277: dp-1\n")

	s, err := Open(root, ConfigLayout)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	m, err := s.LoadMonitor("eizo-cg277")
	if err != nil {
		t.Fatalf("LoadMonitor failed: %v", err)
	}
	if m != testMonitor {
		t.Errorf("LoadMonitor() = %+v, want %+v", m, testMonitor)
	}

	ids, err := s.ListMonitors()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"eizo-cg277"}) {
		t.Errorf("ListMonitors() = %v", ids)
	}

	if err := s.SaveMonitor(m); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
	if _, err := s.SaveRGB2LMS(testTransform(Display{MonitorID: m.ID})); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}

	d, err := s.MakeDisplay(m, m.DefaultMode, "opengl")
	if err != nil {
		t.Fatalf("MakeDisplay failed: %v", err)
	}
	if d.LinkID != "dp-1" || d.SettingsID != "" {
		t.Errorf("MakeDisplay() = %+v", d)
	}
}

func TestOpenData(t *testing.T) {
	if _, err := OpenData(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	root := t.TempDir()
	if _, err := OpenData(root); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing version file: expected ErrNotFound, got %v", err)
	}

	writeFile(t, filepath.Join(root, "version"), "0.9\n")
	if _, err := OpenData(root); err != nil {
		t.Errorf("version mismatch must not fail: %v", err)
	}
}

func TestDisplayMatchesIgnoresMode(t *testing.T) {
	a := Display{MonitorID: "m", SettingsID: "s", LinkID: "l", Gfx: "g", Mode: Mode{Width: 1}}
	b := a
	b.Mode = Mode{Width: 2}
	if !a.Matches(b) {
		t.Errorf("displays differing only in mode must match")
	}
	for _, mutate := range []func(*Display){
		func(d *Display) { d.MonitorID = "x" },
		func(d *Display) { d.SettingsID = "x" },
		func(d *Display) { d.LinkID = "x" },
		func(d *Display) { d.Gfx = "x" },
	} {
		c := a
		mutate(&c)
		if a.Matches(c) {
			t.Errorf("displays %+v and %+v must not match", a, c)
		}
	}
}

func TestSaveLinkOverNullTable(t *testing.T) {
	s, root := newTestStore(t)
	writeFile(t, filepath.Join(root, "links.cfg"), "~\n")

	links, err := s.LoadLinks()
	if err != nil || links == nil {
		t.Fatalf("LoadLinks() = %v, %v; want an empty table", links, err)
	}
	if err := s.SaveLink("opengl", testMonitor.ID, "dp-1"); err != nil {
		t.Fatalf("SaveLink failed: %v", err)
	}
	links, err = s.LoadLinks()
	if err != nil {
		t.Fatal(err)
	}
	if links["opengl"][testMonitor.ID] != "dp-1" {
		t.Errorf("LoadLinks() = %v", links)
	}
}

func TestLoadRGB2LMSUnknownMonitor(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.LoadRGB2LMS(Display{MonitorID: "never-calibrated", Gfx: "opengl"})
	if !errors.Is(err, ErrNoCalibration) {
		t.Errorf("expected ErrNoCalibration, got %v", err)
	}
}

func TestCatalogMakeDisplay(t *testing.T) {
	data, dataRoot := newTestStore(t)
	if err := data.SaveMonitor(testMonitor); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dataRoot, "monitors", testMonitor.ID, "20180305.settings"), "")
	if err := data.SaveLink("opengl", testMonitor.ID, "dp-1"); err != nil {
		t.Fatal(err)
	}

	// The config tree carries descriptors only: no links.cfg, no settings.
	confRoot := t.TempDir()
	override := testMonitor
	override.Name = "CG277 (lab)"
	b, err := MarshalMonitor(override)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(confRoot, testMonitor.ID, testMonitor.ID+".monitor"), string(b))
	if err := os.Symlink(testMonitor.ID, filepath.Join(confRoot, "default.monitor")); err != nil {
		t.Fatal(err)
	}
	conf, err := Open(confRoot, ConfigLayout)
	if err != nil {
		t.Fatal(err)
	}

	c := Catalog{Data: data, Config: conf}
	m, err := c.LoadMonitor(testMonitor.ID)
	if err != nil || m.Name != override.Name {
		t.Fatalf("LoadMonitor() = %+v, %v; want the config descriptor", m, err)
	}

	d, err := c.MakeDisplay("", nil, "opengl")
	if err != nil {
		t.Fatalf("MakeDisplay failed: %v", err)
	}
	want := Display{
		MonitorID:  testMonitor.ID,
		SettingsID: "20180305",
		LinkID:     "dp-1",
		Gfx:        "opengl",
		Mode:       testMonitor.DefaultMode,
	}
	if d != want {
		t.Errorf("MakeDisplay() = %+v, want %+v", d, want)
	}

	saved, err := data.SaveRGB2LMS(testTransform(d))
	if err != nil {
		t.Fatal(err)
	}
	got, err := data.LoadRGB2LMS(d)
	if err != nil || got.ID != saved.ID {
		t.Errorf("LoadRGB2LMS() = %v, %v; want %s", got.ID, err, saved.ID)
	}

	// A monitor known only to the config tree has no settings yet.
	only := testMonitor
	only.ID = "lab-projector"
	b, err = MarshalMonitor(only)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(confRoot, only.ID, only.ID+".monitor"), string(b))
	if err := data.SaveLink("opengl", only.ID, "hdmi-1"); err != nil {
		t.Fatal(err)
	}
	d, err = c.MakeDisplay(only.ID, &Mode{Width: 1920, Height: 1080, Refresh: 60}, "opengl")
	if err != nil {
		t.Fatalf("MakeDisplay failed: %v", err)
	}
	if d.SettingsID != "" || d.LinkID != "hdmi-1" || d.Mode.Width != 1920 {
		t.Errorf("MakeDisplay() = %+v", d)
	}
}

func TestLEDs(t *testing.T) {
	s, root := newTestStore(t)

	if _, err := s.LoadLEDs(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	steps := []struct {
		pin, wavelength int
		want            LEDs
	}{
		{10, 450, LEDs{10: 450}},
		{11, 525, LEDs{10: 450, 11: 525}},
		{10, 460, LEDs{10: 460, 11: 525}},
		{11, 0, LEDs{10: 460}},
	}
	for _, st := range steps {
		if err := s.SaveLED(st.pin, st.wavelength); err != nil {
			t.Fatalf("SaveLED(%d, %d) failed: %v", st.pin, st.wavelength, err)
		}
		got, err := s.LoadLEDs()
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, st.want) {
			t.Errorf("after SaveLED(%d, %d): LoadLEDs() = %v, want %v", st.pin, st.wavelength, got, st.want)
		}
	}

	writeFile(t, filepath.Join(root, "leds.cfg"), "leds:\n  3: -5\n")
	if _, err := s.LoadLEDs(); !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestCatalogLEDs(t *testing.T) {
	data, _ := newTestStore(t)
	if err := data.SaveLED(10, 450); err != nil {
		t.Fatal(err)
	}

	confRoot := t.TempDir()
	conf, err := Open(confRoot, ConfigLayout)
	if err != nil {
		t.Fatal(err)
	}
	c := Catalog{Data: data, Config: conf}

	got, err := c.LoadLEDs()
	if err != nil || !reflect.DeepEqual(got, LEDs{10: 450}) {
		t.Fatalf("LoadLEDs() = %v, %v; want the data table", got, err)
	}

	writeFile(t, filepath.Join(confRoot, "leds.cfg"), "leds:\n  2: 405\n  3: 630\n")
	got, err = c.LoadLEDs()
	if err != nil || !reflect.DeepEqual(got, LEDs{2: 405, 3: 630}) {
		t.Fatalf("LoadLEDs() = %v, %v; want the config table", got, err)
	}

	if err := conf.SaveLED(4, 700); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
}
