// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bambumon/bambumon/command"
	"github.com/bambumon/bambumon/config"
	"github.com/bambumon/bambumon/lib/clock"
	"github.com/bambumon/bambumon/session"
)

var registryEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	deviceA = config.Device{
		Name: "Workshop", Host: "192.168.1.40",
		Serial: "01P00A123456789", AccessCode: "11111111", Port: config.DefaultPort,
	}
	deviceB = config.Device{
		Name: "Office", Host: "192.168.1.41",
		Serial: "00M00A987654321", AccessCode: "22222222", Port: config.DefaultPort,
	}
)

// fakeTransport always connects and records traffic.
type fakeTransport struct {
	mu        sync.Mutex
	handler   session.MessageHandler
	published [][]byte
	lost      chan error
}

func (f *fakeTransport) Connect(ctx context.Context) error { return nil }

func (f *fakeTransport) Subscribe(topic string, handler session.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return nil
}

func (f *fakeTransport) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeTransport) Disconnect() {}

func (f *fakeTransport) Lost() <-chan error { return f.lost }

func (f *fakeTransport) deliver(t *testing.T, payload string) {
	t.Helper()
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler == nil {
		t.Fatalf("no subscription registered")
	}
	handler([]byte(payload))
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type harness struct {
	registry *Registry
	clock    *clock.FakeClock

	mu         sync.Mutex
	transports map[string][]*fakeTransport
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:      clock.Fake(registryEpoch),
		transports: make(map[string][]*fakeTransport),
	}
	h.registry = New(Options{
		Clock:  h.clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewTransport: func(device config.Device) session.Transport {
			transport := &fakeTransport{lost: make(chan error, 1)}
			h.mu.Lock()
			h.transports[device.Serial] = append(h.transports[device.Serial], transport)
			h.mu.Unlock()
			return transport
		},
	})
	t.Cleanup(h.registry.Close)
	return h
}

func (h *harness) transport(t *testing.T, serial string) *fakeTransport {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	transports := h.transports[serial]
	if len(transports) == 0 {
		t.Fatalf("no transport created for %s", serial)
	}
	return transports[len(transports)-1]
}

func (h *harness) transportCount(serial string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.transports[serial])
}

func (h *harness) waitConnected(t *testing.T, serial string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event := <-h.registry.Events():
			if event.Serial == serial && event.Kind == EventState &&
				event.State.Phase == session.PhaseConnected {
				return
			}
		case <-deadline:
			t.Fatalf("%s never connected", serial)
		}
	}
}

func waitNotification(t *testing.T, r *Registry) command.Notification {
	t.Helper()
	select {
	case notification := <-r.Notifications():
		return notification
	case <-time.After(5 * time.Second):
		t.Fatalf("no notification")
		panic("unreachable")
	}
}

func TestApplyStartsDevicesInOrder(t *testing.T) {
	h := newHarness(t)
	h.registry.Apply([]config.Device{deviceA, deviceB})
	h.waitConnected(t, deviceA.Serial)
	h.waitConnected(t, deviceB.Serial)

	views := h.registry.Views()
	if len(views) != 2 {
		t.Fatalf("views = %d, want 2", len(views))
	}
	if views[0].Identity.Serial != deviceA.Serial || views[1].Identity.Serial != deviceB.Serial {
		t.Fatalf("view order = %s, %s", views[0].Identity.Serial, views[1].Identity.Serial)
	}
	for _, view := range views {
		if !view.Locked {
			t.Fatalf("device %s not locked by default", view.Identity.Serial)
		}
		if view.State.Phase != session.PhaseConnected {
			t.Fatalf("device %s state = %v", view.Identity.Serial, view.State.Phase)
		}
	}
	if views[0].Snapshot.Model != "Bambu Lab P1S" || views[1].Snapshot.Model != "Bambu Lab X1C" {
		t.Fatalf("models = %q, %q", views[0].Snapshot.Model, views[1].Snapshot.Model)
	}
}

func TestDispatchUnknownDevice(t *testing.T) {
	h := newHarness(t)
	if _, err := h.registry.Dispatch("nope", command.Pause()); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("err = %v, want ErrUnknownDevice", err)
	}
	if err := h.registry.SetLocked("nope", false); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("err = %v, want ErrUnknownDevice", err)
	}
}

func TestDispatchEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.registry.Apply([]config.Device{deviceA})
	h.waitConnected(t, deviceA.Serial)
	transport := h.transport(t, deviceA.Serial)
	announced := transport.count()

	// Locked by default.
	if result, _ := h.registry.Dispatch(deviceA.Serial, command.Pause()); result != command.ResultRejectedLocked {
		t.Fatalf("locked dispatch = %v", result)
	}

	if err := h.registry.SetLocked(deviceA.Serial, false); err != nil {
		t.Fatalf("SetLocked: %v", err)
	}

	// Destructive actions take two dispatches.
	if result, _ := h.registry.Dispatch(deviceA.Serial, command.Pause()); result != command.ResultAwaitingConfirmation {
		t.Fatalf("first dispatch = %v", result)
	}
	views := h.registry.Views()
	if !views[0].HasPending || views[0].Pending != command.Pause() {
		t.Fatalf("pending not visible in view: %+v", views[0])
	}
	if result, _ := h.registry.Dispatch(deviceA.Serial, command.Pause()); result != command.ResultSent {
		t.Fatalf("confirming dispatch = %v", result)
	}
	if transport.count() != announced+1 {
		t.Fatalf("published = %d, want one command after announce", transport.count())
	}

	// The device echo resolves the command through the session.
	transport.deliver(t, `{"print":{"command":"pause","sequence_id":"3","result":"success"}}`)
	notification := waitNotification(t, h.registry)
	if notification.Serial != deviceA.Serial || notification.Outcome != command.OutcomeAcknowledged {
		t.Fatalf("notification = %+v", notification)
	}
	if notification.Action != command.Pause() {
		t.Fatalf("notification action = %v", notification.Action)
	}
}

func TestSnapshotEvents(t *testing.T) {
	h := newHarness(t)
	h.registry.Apply([]config.Device{deviceA})
	h.waitConnected(t, deviceA.Serial)

	h.transport(t, deviceA.Serial).deliver(t, `{"print":{"mc_percent":33}}`)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case event := <-h.registry.Events():
			if event.Kind != EventSnapshot {
				continue
			}
			views := h.registry.Views()
			if progress := views[0].Snapshot.Job.Progress; progress == nil || *progress != 33 {
				t.Fatalf("progress = %v, want 33", progress)
			}
			return
		case <-deadline:
			t.Fatalf("no snapshot event")
		}
	}
}

func TestApplyRemovesDevices(t *testing.T) {
	h := newHarness(t)
	h.registry.Apply([]config.Device{deviceA, deviceB})
	h.waitConnected(t, deviceA.Serial)
	h.waitConnected(t, deviceB.Serial)

	h.registry.Apply([]config.Device{deviceB})

	views := h.registry.Views()
	if len(views) != 1 || views[0].Identity.Serial != deviceB.Serial {
		t.Fatalf("views after removal = %+v", views)
	}
	if _, err := h.registry.Dispatch(deviceA.Serial, command.Pause()); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("removed device still dispatchable: %v", err)
	}
	// The survivor was not restarted.
	if h.transportCount(deviceB.Serial) != 1 {
		t.Fatalf("surviving device restarted")
	}
}

func TestApplyRestartsChangedIdentity(t *testing.T) {
	h := newHarness(t)
	h.registry.Apply([]config.Device{deviceA})
	h.waitConnected(t, deviceA.Serial)

	moved := deviceA
	moved.Host = "192.168.1.99"
	h.registry.Apply([]config.Device{moved})
	h.waitConnected(t, deviceA.Serial)

	if h.transportCount(deviceA.Serial) != 2 {
		t.Fatalf("transports = %d, want restart on identity change", h.transportCount(deviceA.Serial))
	}
	if h.registry.Views()[0].Identity.Host != "192.168.1.99" {
		t.Fatalf("view identity not updated")
	}

	// Idempotent apply changes nothing.
	h.registry.Apply([]config.Device{moved})
	if h.transportCount(deviceA.Serial) != 2 {
		t.Fatalf("unchanged apply restarted the session")
	}
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	h.registry.Apply([]config.Device{deviceA})
	h.waitConnected(t, deviceA.Serial)

	h.registry.Close()
	if views := h.registry.Views(); len(views) != 0 {
		t.Fatalf("views after close = %d", len(views))
	}
	if _, err := h.registry.Dispatch(deviceA.Serial, command.Pause()); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("dispatch after close = %v", err)
	}
	// Close is idempotent, and Apply after Close is a no-op.
	h.registry.Close()
	h.registry.Apply([]config.Device{deviceB})
	if views := h.registry.Views(); len(views) != 0 {
		t.Fatalf("apply after close started devices")
	}
}
