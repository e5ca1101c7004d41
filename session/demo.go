// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bambumon/bambumon/lib/clock"
	"github.com/bambumon/bambumon/printer"
)

// demoInterval paces the scripted feed so phase changes are visible.
const demoInterval = 2 * time.Second

// DemoTransport replays a scripted report feed instead of talking to
// a real printer. Published commands are acknowledged with success
// echoes, so command dispatch and confirmation behave end to end.
// The feed runs through the same decode and merge path as production
// traffic.
type DemoTransport struct {
	clock  clock.Clock
	script [][]byte
	lost   chan error

	mu      sync.Mutex
	handler MessageHandler
}

// NewDemoTransport builds a transport replaying the standard demo
// script.
func NewDemoTransport(clk clock.Clock) *DemoTransport {
	return &DemoTransport{
		clock:  clk,
		script: printer.DemoScript(),
		lost:   make(chan error),
	}
}

// Connect starts the replay goroutine, bound to ctx. The first
// payload is delivered one interval after connect, leaving time for
// the subscription to land.
func (t *DemoTransport) Connect(ctx context.Context) error {
	go t.replay(ctx)
	return nil
}

func (t *DemoTransport) Subscribe(topic string, handler MessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
	return nil
}

// Publish acknowledges print and system commands with a success echo.
// pushall and get_version need no reply; the script already carries a
// full push and version info.
func (t *DemoTransport) Publish(topic string, payload []byte) error {
	var envelope map[string]map[string]any
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil
	}
	for _, section := range []string{"print", "system"} {
		body, ok := envelope[section]
		if !ok {
			continue
		}
		echo, err := json.Marshal(map[string]map[string]any{
			section: {
				"command":     body["command"],
				"sequence_id": body["sequence_id"],
				"result":      "success",
			},
		})
		if err != nil {
			continue
		}
		t.deliver(echo)
	}
	return nil
}

func (t *DemoTransport) Disconnect() {}

// Lost never signals: the demo printer never drops the link.
func (t *DemoTransport) Lost() <-chan error {
	return t.lost
}

func (t *DemoTransport) replay(ctx context.Context) {
	ticker := t.clock.NewTicker(demoInterval)
	defer ticker.Stop()
	for _, payload := range t.script {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		t.deliver(payload)
	}
}

func (t *DemoTransport) deliver(payload []byte) {
	t.mu.Lock()
	handler := t.handler
	t.mu.Unlock()
	if handler != nil {
		handler(payload)
	}
}
