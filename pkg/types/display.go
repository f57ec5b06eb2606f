package types

import "github.com/charlie0129/iris/pkg/store"

// DisplayRequest asks the daemon to assemble a display identity.
// This struct is shared between the daemon and client packages.
type DisplayRequest struct {
	// Monitor defaults to the default monitor of the data store.
	Monitor string `json:"monitor,omitempty"`
	Gfx     string `json:"gfx"`
	// Mode defaults to the monitor's preferred mode.
	Mode *store.Mode `json:"mode,omitempty"`
}
