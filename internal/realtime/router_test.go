package realtime

import (
	"testing"

	"soc-realtime/pkg/log"
)

func TestRouter_DispatchesToRegisteredHandlers(t *testing.T) {
	r := NewRouter(log.Nop())

	var got []string
	r.On(EventNewAlert, func(f *Frame) { got = append(got, "first") })
	r.On(EventNewAlert, func(f *Frame) { got = append(got, "second") })

	r.Dispatch([]byte(`{"type":"new_alert","data":{"id":"a-1"}}`))

	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("handlers ran as %v, want [first second] in order", got)
	}
}

func TestRouter_UnknownTypeIsDropped(t *testing.T) {
	r := NewRouter(log.Nop())

	called := false
	r.On(EventNotification, func(f *Frame) { called = true })

	r.Dispatch([]byte(`{"type":"future_event","data":{}}`))

	if called {
		t.Error("handler for a different type must not run")
	}
}

func TestRouter_MalformedFrameIsDropped(t *testing.T) {
	r := NewRouter(log.Nop())

	called := false
	r.On(EventNotification, func(f *Frame) { called = true })

	r.Dispatch([]byte(`not json at all`))
	r.Dispatch([]byte(`{"data":{"no":"type"}}`))

	if called {
		t.Error("malformed frames must not dispatch")
	}
}

func TestRouter_PanickingHandlerIsIsolated(t *testing.T) {
	r := NewRouter(log.Nop())

	r.On(EventNewAlert, func(f *Frame) { panic("bad consumer") })

	secondRan := false
	r.On(EventNewAlert, func(f *Frame) { secondRan = true })

	notificationRan := false
	r.On(EventNotification, func(f *Frame) { notificationRan = true })

	r.Dispatch([]byte(`{"type":"new_alert","data":{}}`))
	r.Dispatch([]byte(`{"type":"notification","data":{"title":"X"}}`))

	if !secondRan {
		t.Error("panic in one handler blocked the next handler for the same type")
	}
	if !notificationRan {
		t.Error("panic in one handler blocked delivery of a later frame")
	}
}

func TestRouter_PassesFrameFields(t *testing.T) {
	r := NewRouter(log.Nop())

	var gotID string
	r.On(EventAlertUpdate, func(f *Frame) { gotID = f.AlertID })

	r.Dispatch([]byte(`{"type":"alert_update","alert_id":"a-7","data":{"status":"resolved"}}`))

	if gotID != "a-7" {
		t.Errorf("AlertID = %q, want a-7", gotID)
	}
}
