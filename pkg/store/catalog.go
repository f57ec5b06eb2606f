package store

import (
	"errors"
)

// Catalog combines a data tree with an optional read-only config tree. The
// config tree only provides monitor descriptors, the default monitor and the
// light box LED table; link tables, settings profiles and transforms always
// live in the data tree.
type Catalog struct {
	Data   *Store
	Config *Store
}

// DefaultMonitor prefers the config tree's default monitor.
func (c Catalog) DefaultMonitor() (string, error) {
	if c.Config != nil {
		id, err := c.Config.DefaultMonitor()
		if err == nil || !errors.Is(err, ErrNotFound) {
			return id, err
		}
	}
	return c.Data.DefaultMonitor()
}

// LoadMonitor prefers the config tree's descriptor of id.
func (c Catalog) LoadMonitor(id string) (Monitor, error) {
	if c.Config != nil {
		m, err := c.Config.LoadMonitor(id)
		if err == nil || !errors.Is(err, ErrNotFound) {
			return m, err
		}
	}
	return c.Data.LoadMonitor(id)
}

// MakeDisplay assembles the display of monitorID on gfx. An empty monitorID
// means the default monitor and a nil mode the monitor's preferred mode.
func (c Catalog) MakeDisplay(monitorID string, mode *Mode, gfx string) (Display, error) {
	if monitorID == "" {
		id, err := c.DefaultMonitor()
		if err != nil {
			return Display{}, err
		}
		monitorID = id
	}

	m, err := c.LoadMonitor(monitorID)
	if err != nil {
		return Display{}, err
	}
	md := m.DefaultMode
	if mode != nil {
		md = *mode
	}
	return c.Data.MakeDisplay(m, md, gfx)
}

// LoadLEDs prefers the config tree's LED table.
func (c Catalog) LoadLEDs() (LEDs, error) {
	if c.Config != nil {
		l, err := c.Config.LoadLEDs()
		if err == nil || !errors.Is(err, ErrNotFound) {
			return l, err
		}
	}
	return c.Data.LoadLEDs()
}
