// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/bambumon/bambumon/config"
)

// MessageHandler receives one raw message payload.
type MessageHandler func(payload []byte)

// Transport is the wire connection to one printer. The production
// implementation speaks MQTT over TLS; tests and demo mode substitute
// in-process fakes.
type Transport interface {
	// Connect establishes the connection, honoring context
	// cancellation. A credential rejection comes back as *AuthError.
	Connect(ctx context.Context) error

	// Subscribe registers a handler for a topic on the current
	// connection. Must be called again after each reconnect.
	Subscribe(topic string, handler MessageHandler) error

	// Publish sends one payload at QoS 0.
	Publish(topic string, payload []byte) error

	// Disconnect tears down the current connection. Safe to call when
	// not connected.
	Disconnect()

	// Lost signals asynchronous connection loss after a successful
	// Connect.
	Lost() <-chan error
}

const (
	mqttUsername       = "bblp"
	mqttKeepAlive      = 30 * time.Second
	mqttConnectTimeout = 10 * time.Second
)

// transportSeq disambiguates client IDs when one process talks to
// several printers.
var transportSeq atomic.Uint64

type mqttTransport struct {
	options *mqtt.ClientOptions
	client  mqtt.Client
	lost    chan error
}

// NewMQTTTransport builds the production transport for one device.
// The printer terminates TLS with a self-signed certificate, so
// verification is disabled; the access code is the only
// authentication the device offers.
func NewMQTTTransport(device config.Device) Transport {
	t := &mqttTransport{lost: make(chan error, 1)}

	options := mqtt.NewClientOptions()
	options.AddBroker(fmt.Sprintf("ssl://%s:%d", device.Host, device.Port))
	options.SetClientID(fmt.Sprintf("bambumon_%d_%d", os.Getpid(), transportSeq.Add(1)))
	options.SetUsername(mqttUsername)
	options.SetPassword(device.AccessCode)
	options.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	options.SetKeepAlive(mqttKeepAlive)
	options.SetConnectTimeout(mqttConnectTimeout)
	// The session owns the reconnect loop; paho must not race it.
	options.SetAutoReconnect(false)
	options.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		select {
		case t.lost <- err:
		default:
		}
	})
	t.options = options
	return t
}

func (t *mqttTransport) Connect(ctx context.Context) error {
	// Drain any loss signal from a previous connection.
	select {
	case <-t.lost:
	default:
	}

	t.client = mqtt.NewClient(t.options)
	token := t.client.Connect()
	select {
	case <-ctx.Done():
		t.client.Disconnect(0)
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		if isCredentialRefusal(err) {
			return &AuthError{Err: err}
		}
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (t *mqttTransport) Subscribe(topic string, handler MessageHandler) error {
	token := t.client.Subscribe(topic, 0, func(_ mqtt.Client, message mqtt.Message) {
		handler(message.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	return nil
}

func (t *mqttTransport) Publish(topic string, payload []byte) error {
	token := t.client.Publish(topic, 0, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

func (t *mqttTransport) Disconnect() {
	if t.client != nil && t.client.IsConnected() {
		t.client.Disconnect(250)
	}
}

func (t *mqttTransport) Lost() <-chan error {
	return t.lost
}

func isCredentialRefusal(err error) bool {
	return errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) ||
		errors.Is(err, packets.ErrorRefusedNotAuthorised)
}
