package events

import "encoding/json"

// Names of the events a capture session publishes.
const (
	CaptureState    = "capture.state"
	CaptureMeasured = "capture.measured"
	CaptureDone     = "capture.done"
)

// Event is one published capture event. Data holds the JSON encoding of the
// payload type matching Name.
type Event struct {
	Name string
	Data json.RawMessage
}

// CaptureStateEvent is the typed payload for capture.state.
type CaptureStateEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
	Ts   int64  `json:"ts"`
}

// CaptureMeasuredEvent is the typed payload for capture.measured.
type CaptureMeasuredEvent struct {
	Index    int        `json:"index"`
	Stimulus [3]float64 `json:"stimulus"`
	Radiance float64    `json:"radiance"`
	Ts       int64      `json:"ts"`
}

// CaptureDoneEvent is the typed payload for capture.done.
type CaptureDoneEvent struct {
	Measurements int    `json:"measurements"`
	Error        string `json:"error,omitempty"`
	Ts           int64  `json:"ts"`
}

// DecodeAs decodes the payload of e as T. An empty payload yields the zero
// T. The event name is not checked:
//
//	m, err := events.DecodeAs[events.CaptureMeasuredEvent](ev)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
