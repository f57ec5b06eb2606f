package events

import "testing"

func TestPublishSubscribe(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()

	h.Publish(CaptureState, CaptureStateEvent{From: "NextDisplay", To: "NextMeasure", Ts: 42})

	ev := <-ch
	if ev.Name != CaptureState {
		t.Fatalf("unexpected event name %q", ev.Name)
	}
	payload, err := DecodeAs[CaptureStateEvent](ev)
	if err != nil {
		t.Fatalf("DecodeAs: %v", err)
	}
	if payload.From != "NextDisplay" || payload.To != "NextMeasure" || payload.Ts != 42 {
		t.Fatalf("unexpected payload %+v", payload)
	}

	h.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after unsubscribe")
	}
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	for i := 0; i < cap(ch)+10; i++ {
		h.Publish(CaptureMeasured, CaptureMeasuredEvent{Index: i})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("expected buffer full at %d, got %d", cap(ch), len(ch))
	}
}

func TestNilHub(t *testing.T) {
	var h *EventHub
	h.Publish(CaptureDone, CaptureDoneEvent{})
}

func TestDecodeEmpty(t *testing.T) {
	v, err := DecodeAs[CaptureDoneEvent](Event{Name: CaptureDone})
	if err != nil || v.Measurements != 0 {
		t.Fatalf("unexpected result %+v, %v", v, err)
	}
}

func TestSubscribeByName(t *testing.T) {
	h := NewEventHub()
	progress := h.Subscribe(CaptureMeasured, CaptureDone)
	all := h.Subscribe()
	defer h.Unsubscribe(progress)
	defer h.Unsubscribe(all)

	h.Publish(CaptureState, CaptureStateEvent{From: "NextDisplay", To: "WaitMeasure"})
	h.Publish(CaptureMeasured, CaptureMeasuredEvent{Index: 3})
	h.Publish(CaptureState, CaptureStateEvent{From: "WaitMeasure", To: "NextMeasure"})
	h.Publish(CaptureDone, CaptureDoneEvent{Measurements: 4})

	tests := []struct {
		name string
		ch   chan Event
		want []string
	}{
		{"filtered", progress, []string{CaptureMeasured, CaptureDone}},
		{"unfiltered", all, []string{CaptureState, CaptureMeasured, CaptureState, CaptureDone}},
	}
	for _, tt := range tests {
		if len(tt.ch) != len(tt.want) {
			t.Fatalf("%s: expected %d queued events, got %d", tt.name, len(tt.want), len(tt.ch))
		}
		for i, want := range tt.want {
			if ev := <-tt.ch; ev.Name != want {
				t.Fatalf("%s: event %d is %q, want %q", tt.name, i, ev.Name, want)
			}
		}
	}
}

func TestDoneSurvivesFullQueue(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	for i := 0; i < cap(ch)+5; i++ {
		h.Publish(CaptureState, CaptureStateEvent{Ts: int64(i)})
	}
	if got := h.Dropped(ch); got != 5 {
		t.Fatalf("expected 5 dropped events, got %d", got)
	}

	h.Publish(CaptureDone, CaptureDoneEvent{Measurements: 7})
	if got := h.Dropped(ch); got != 6 {
		t.Fatalf("expected the oldest event evicted, got %d dropped", got)
	}

	var last Event
	for len(ch) > 0 {
		last = <-ch
	}
	done, err := DecodeAs[CaptureDoneEvent](last)
	if last.Name != CaptureDone || err != nil || done.Measurements != 7 {
		t.Fatalf("expected capture.done last, got %q %+v %v", last.Name, done, err)
	}
}
