// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/bambumon/bambumon/command"
	"github.com/bambumon/bambumon/config"
	"github.com/bambumon/bambumon/lib/clock"
	"github.com/bambumon/bambumon/printer"
	"github.com/bambumon/bambumon/session"
)

// ErrUnknownDevice is returned for a serial the registry does not
// manage.
var ErrUnknownDevice = errors.New("registry: unknown device")

const (
	eventBuffer        = 64
	notificationBuffer = 32
)

// EventKind classifies a change signal.
type EventKind int

const (
	// EventSnapshot means the device's snapshot changed; re-read it
	// via Views.
	EventSnapshot EventKind = iota
	// EventState means the connection state changed.
	EventState
)

// Event is one change signal. Events are hints, not a transaction
// log: on overflow the newest hint is dropped, and readers recover by
// re-reading Views.
type Event struct {
	Serial string
	Kind   EventKind

	// State carries the new connection state for EventState.
	State session.State
}

// DeviceView is one device's complete state at a point in time. The
// snapshot is a deep copy owned by the caller.
type DeviceView struct {
	Identity config.Device
	State    session.State
	Snapshot *printer.Snapshot
	Locked   bool

	// Pending is the armed destructive action awaiting confirmation,
	// valid when HasPending is set.
	Pending    command.Action
	HasPending bool
}

// Options configures a registry.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger

	// NewTransport overrides the per-device transport. Nil selects
	// the production MQTT transport; demo mode and tests inject fakes
	// here.
	NewTransport func(config.Device) session.Transport
}

// Registry owns the device fleet. Create with New, populate with
// Apply, tear down with Close.
type Registry struct {
	clock        clock.Clock
	logger       *slog.Logger
	newTransport func(config.Device) session.Transport

	rootCtx    context.Context
	rootCancel context.CancelFunc

	events        chan Event
	notifications chan command.Notification

	mu      sync.Mutex
	order   []string
	devices map[string]*managedDevice
	closed  bool
}

type managedDevice struct {
	identity      config.Device
	session       *session.Session
	tracker       *command.Tracker
	cancel        context.CancelFunc
	sessionDone   chan struct{}
	forwarderDone chan struct{}
}

// New builds an empty registry.
func New(options Options) *Registry {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		clock:         clk,
		logger:        logger,
		newTransport:  options.NewTransport,
		rootCtx:       ctx,
		rootCancel:    cancel,
		events:        make(chan Event, eventBuffer),
		notifications: make(chan command.Notification, notificationBuffer),
		devices:       make(map[string]*managedDevice),
	}
}

// Events delivers change hints for all devices.
func (r *Registry) Events() <-chan Event {
	return r.events
}

// Notifications delivers command resolutions for all devices.
func (r *Registry) Notifications() <-chan command.Notification {
	return r.notifications
}

// Apply reconciles the running sessions against devices. New serials
// start, absent serials stop, and a serial whose identity changed
// (host, access code, name) restarts with the new identity. Display
// order follows the given list.
func (r *Registry) Apply(devices []config.Device) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	incoming := make(map[string]config.Device, len(devices))
	order := make([]string, 0, len(devices))
	for _, identity := range devices {
		incoming[identity.Serial] = identity
		order = append(order, identity.Serial)
	}

	var stopping []*managedDevice
	for serial, device := range r.devices {
		identity, keep := incoming[serial]
		if keep && identity == device.identity {
			continue
		}
		stopping = append(stopping, device)
		delete(r.devices, serial)
	}
	var starting []config.Device
	for _, identity := range devices {
		if _, running := r.devices[identity.Serial]; !running {
			starting = append(starting, identity)
		}
	}
	r.order = order
	r.mu.Unlock()

	for _, device := range stopping {
		r.logger.Info("stopping device session", "serial", device.identity.Serial)
		r.stopDevice(device)
	}
	for _, identity := range starting {
		r.logger.Info("starting device session",
			"serial", identity.Serial, "name", identity.Name)
		device := r.startDevice(identity)
		r.mu.Lock()
		r.devices[identity.Serial] = device
		r.mu.Unlock()
	}
}

// Views returns every managed device in display order.
func (r *Registry) Views() []DeviceView {
	r.mu.Lock()
	defer r.mu.Unlock()

	views := make([]DeviceView, 0, len(r.order))
	for _, serial := range r.order {
		device, ok := r.devices[serial]
		if !ok {
			continue
		}
		pending, hasPending := device.tracker.Pending()
		views = append(views, DeviceView{
			Identity:   device.identity,
			State:      device.session.State(),
			Snapshot:   device.session.Snapshot(),
			Locked:     device.tracker.Locked(),
			Pending:    pending,
			HasPending: hasPending,
		})
	}
	return views
}

// Dispatch routes an action to one device's tracker.
func (r *Registry) Dispatch(serial string, action command.Action) (command.Result, error) {
	device, err := r.lookup(serial)
	if err != nil {
		return 0, err
	}
	result, err := device.tracker.Dispatch(action)
	if err != nil {
		return result, err
	}
	r.logger.Debug("dispatch", "serial", serial, "action", action.String(), "result", result.String())
	return result, nil
}

// SetLocked engages or releases one device's control lock.
func (r *Registry) SetLocked(serial string, locked bool) error {
	device, err := r.lookup(serial)
	if err != nil {
		return err
	}
	device.tracker.SetLocked(locked)
	r.emit(Event{Serial: serial, Kind: EventSnapshot})
	return nil
}

// Close stops every session and waits for them to finish.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	devices := make([]*managedDevice, 0, len(r.devices))
	for _, device := range r.devices {
		devices = append(devices, device)
	}
	r.devices = make(map[string]*managedDevice)
	r.order = nil
	r.mu.Unlock()

	r.rootCancel()
	for _, device := range devices {
		<-device.sessionDone
		<-device.forwarderDone
		device.tracker.Close()
	}
}

func (r *Registry) lookup(serial string) (*managedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	device, ok := r.devices[serial]
	if !ok {
		return nil, ErrUnknownDevice
	}
	return device, nil
}

func (r *Registry) startDevice(identity config.Device) *managedDevice {
	ctx, cancel := context.WithCancel(r.rootCtx)
	device := &managedDevice{
		identity:      identity,
		cancel:        cancel,
		sessionDone:   make(chan struct{}),
		forwarderDone: make(chan struct{}),
	}

	var transport session.Transport
	if r.newTransport != nil {
		transport = r.newTransport(identity)
	}
	device.session = session.New(session.Options{
		Device:    identity,
		Transport: transport,
		Clock:     r.clock,
		Logger:    r.logger,
		Callbacks: session.Callbacks{
			OnUpdate: func(serial string) {
				r.emit(Event{Serial: serial, Kind: EventSnapshot})
			},
			OnState: func(serial string, state session.State) {
				r.emit(Event{Serial: serial, Kind: EventState, State: state})
			},
			OnEcho: func(_ string, echo printer.CommandEcho) {
				device.tracker.Resolve(echo)
			},
		},
	})
	device.tracker = command.NewTracker(identity.Serial, device.session, r.clock, r.logger)

	go func() {
		defer close(device.sessionDone)
		if err := device.session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("session ended", "serial", identity.Serial, "error", err)
		}
	}()
	go r.forwardNotifications(ctx, device)

	return device
}

func (r *Registry) stopDevice(device *managedDevice) {
	device.cancel()
	<-device.sessionDone
	<-device.forwarderDone
	device.tracker.Close()
}

// forwardNotifications funnels one tracker's resolutions into the
// shared channel, keeping the tracker's drop-oldest overflow policy.
func (r *Registry) forwardNotifications(ctx context.Context, device *managedDevice) {
	defer close(device.forwarderDone)
	for {
		select {
		case <-ctx.Done():
			return
		case notification := <-device.tracker.Notifications():
			for {
				select {
				case r.notifications <- notification:
				default:
					select {
					case <-r.notifications:
					default:
					}
					continue
				}
				break
			}
		}
	}
}

func (r *Registry) emit(event Event) {
	select {
	case r.events <- event:
	default:
	}
}
