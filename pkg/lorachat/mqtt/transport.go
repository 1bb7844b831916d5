// Package mqtt carries the chat link over an MQTT broker, for nodes bridged to the internet.
package mqtt

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/exepirit/lorachat/internal/log"
	"github.com/exepirit/lorachat/pkg/lorachat"
)

const defaultBuffer = 120

// ErrNotConnected is returned by HandleMessages before Connect succeeds.
var ErrNotConnected = errors.New("mqtt: broker connection is down")

var _ lorachat.Transport = &Transport{}

// Transport is an MQTT-based transport for chat frames.
type Transport struct {
	// BrokerURL is the URL of the MQTT broker to connect to.
	BrokerURL string
	// Username is the username for MQTT authentication.
	Username string
	// Password is the password for MQTT authentication.
	Password string
	// AppName is a unique identifier for the application, used in the MQTT client ID.
	AppName string
	// RootTopic is the base topic for all messages.
	RootTopic string
	// ChannelID names the shared air on the broker. Every node on the same ChannelID hears each other.
	ChannelID string
	// GatewayID identifies this node. Envelopes published with it are ignored on receipt.
	GatewayID string
	// Buffer bounds the number of received but not yet polled messages.
	Buffer int
	Logger log.Logger

	lock       sync.Mutex
	client     mqtt.Client
	messagesCh chan mqtt.Message
}

// Topic returns the topic an envelope from gatewayID is published to.
func (mt *Transport) Topic(gatewayID string) string {
	return fmt.Sprintf("%s/2/e/%s/%s", mt.RootTopic, mt.ChannelID, gatewayID)
}

// Initialize connects to the broker and subscribes to the channel.
func (mt *Transport) Initialize(ctx context.Context) error {
	if err := mt.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %w", lorachat.ErrInitFailed, err)
	}
	if err := mt.HandleMessages(ctx); err != nil {
		mt.Disconnect()
		return fmt.Errorf("%w: %w", lorachat.ErrInitFailed, err)
	}
	return nil
}

// Connect establishes an MQTT connection to the broker.
// It generates a random client ID and connects to the broker.
func (mt *Transport) Connect(ctx context.Context) error {
	mt.lock.Lock()
	defer mt.lock.Unlock()
	if mt.client != nil && mt.client.IsConnected() {
		return nil
	}

	randomId := make([]byte, 4)
	_, _ = rand.Read(randomId)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(mt.BrokerURL)
	opts.SetUsername(mt.Username)
	opts.SetPassword(mt.Password)
	opts.SetClientID(fmt.Sprintf("%s-%x", mt.AppName, randomId))
	opts.SetOrderMatters(false)

	client := mqtt.NewClient(opts)
	if err := wait(ctx, client.Connect()); err != nil {
		return fmt.Errorf("failed to connect MQTT: %w", err)
	}
	mt.client = client
	return nil
}

// HandleMessages subscribes to envelopes of the channel.
func (mt *Transport) HandleMessages(ctx context.Context) error {
	mt.lock.Lock()
	client := mt.client
	if mt.messagesCh == nil {
		buffer := mt.Buffer
		if buffer <= 0 {
			buffer = defaultBuffer
		}
		mt.messagesCh = make(chan mqtt.Message, buffer)
	}
	mt.lock.Unlock()

	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}
	if err := wait(ctx, client.Subscribe(mt.Topic("+"), 0, mt.handleMessage)); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %w", err)
	}
	return nil
}

// Send publishes a frame wrapped in a ServiceEnvelope.
func (mt *Transport) Send(ctx context.Context, frame []byte) error {
	mt.lock.Lock()
	client := mt.client
	mt.lock.Unlock()
	if client == nil || !client.IsConnected() {
		return lorachat.ErrNotInitialized
	}

	envelope := ServiceEnvelope{Payload: frame, ChannelID: mt.ChannelID, GatewayID: mt.GatewayID}
	token := client.Publish(mt.Topic(mt.GatewayID), 0, false, envelope.Marshal())
	if err := wait(ctx, token); err != nil {
		return fmt.Errorf("%w: %w", lorachat.ErrNoAck, err)
	}
	return nil
}

// Poll returns the payload of the next envelope published by another gateway.
func (mt *Transport) Poll(_ context.Context) ([]byte, error) {
	if !mt.Ready() {
		return nil, lorachat.ErrNotInitialized
	}
	return mt.receive()
}

func (mt *Transport) receive() ([]byte, error) {
	mt.lock.Lock()
	messages := mt.messagesCh
	mt.lock.Unlock()

	for {
		var msg mqtt.Message
		select {
		case msg = <-messages:
		default:
			return nil, nil
		}

		var envelope ServiceEnvelope
		if err := envelope.Unmarshal(msg.Payload()); err != nil {
			return nil, err
		}
		if envelope.GatewayID == mt.GatewayID {
			continue
		}
		log.OrNOOP(mt.Logger).Debug("Received MQTT envelope", "topic", msg.Topic(), "gateway", envelope.GatewayID)
		return envelope.Payload, nil
	}
}

// Ready reports whether the client is connected.
func (mt *Transport) Ready() bool {
	mt.lock.Lock()
	defer mt.lock.Unlock()
	return mt.client != nil && mt.client.IsConnected()
}

// Cleanup disconnects from the broker.
func (mt *Transport) Cleanup() error {
	mt.Disconnect()
	return nil
}

// Disconnect closes the MQTT connection.
func (mt *Transport) Disconnect() {
	mt.lock.Lock()
	defer mt.lock.Unlock()
	if mt.client != nil && mt.client.IsConnected() {
		mt.client.Disconnect(1000)
	}
	mt.client = nil
}

// handleMessage queues a message for Poll, dropping the oldest queued one when full.
func (mt *Transport) handleMessage(_ mqtt.Client, message mqtt.Message) {
	mt.lock.Lock()
	messages := mt.messagesCh
	mt.lock.Unlock()

	select {
	case messages <- message:
		return
	default:
	}
	select {
	case <-messages:
	default:
	}
	select {
	case messages <- message:
	default:
	}
}

func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}
