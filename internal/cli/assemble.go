package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"os"

	"github.com/exepirit/lorachat/internal/chat"
	"github.com/exepirit/lorachat/internal/config"
	"github.com/exepirit/lorachat/internal/log"
	"github.com/exepirit/lorachat/internal/store"
	"github.com/exepirit/lorachat/internal/ui"
	"github.com/exepirit/lorachat/pkg/lorachat"
	"github.com/exepirit/lorachat/pkg/lorachat/http"
	"github.com/exepirit/lorachat/pkg/lorachat/mqtt"
	"github.com/exepirit/lorachat/pkg/lorachat/serial"
	"github.com/exepirit/lorachat/pkg/lorachat/sim"
	"github.com/exepirit/lorachat/pkg/lorachat/udp"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLogger writes to the configured log file, or to stderr. A full-screen terminal
// must not be written to, so without a file the log is discarded.
func newLogger(cfg config.LogConfig, stderr io.Writer, fullScreen bool) (*slog.Logger, io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return log.New(level, f), f, nil
	}
	if fullScreen {
		return log.New(level, io.Discard), nopCloser{}, nil
	}
	return log.New(level, stderr), nopCloser{}, nil
}

// newTransport creates the link selected by cfg.Link.Kind.
func newTransport(cfg config.Config, codec *lorachat.Codec, logger log.Logger) (lorachat.Transport, error) {
	switch cfg.Link.Kind {
	case config.LinkSim:
		return sim.New(sim.Config{
			ArrivalProbability: cfg.Link.Sim.ArrivalProbability,
			MinInterval:        cfg.Link.Sim.MinInterval,
			Codec:              codec,
			Logger:             logger,
		}), nil
	case config.LinkSerial:
		radio, err := cfg.RadioSettings()
		if err != nil {
			return nil, err
		}
		return &serial.Transport{
			PortName: cfg.Link.Serial.Port,
			BaudRate: cfg.Link.Serial.Baud,
			Radio:    radio,
			Logger:   logger,
		}, nil
	case config.LinkMQTT:
		return &mqtt.Transport{
			BrokerURL: cfg.Link.MQTT.Broker,
			Username:  cfg.Link.MQTT.Username,
			Password:  cfg.Link.MQTT.Password,
			AppName:   "lorachat",
			RootTopic: cfg.Link.MQTT.RootTopic,
			ChannelID: cfg.Link.MQTT.Channel,
			GatewayID: cfg.NodeID,
			Logger:    logger,
		}, nil
	case config.LinkHTTP:
		return &http.Transport{
			URL:    cfg.Link.HTTP.URL,
			NodeID: cfg.NodeID,
			Client: nethttp.Client{Timeout: cfg.Link.HTTP.Timeout},
		}, nil
	case config.LinkUDP:
		return &udp.Transport{
			Group:     cfg.Link.UDP.Group,
			Interface: cfg.Link.UDP.Interface,
			Logger:    logger,
		}, nil
	}
	return nil, fmt.Errorf("unknown link kind %q", cfg.Link.Kind)
}

// assembly is a node together with the resources to release after it stops.
type assembly struct {
	node    *chat.Node
	closers []io.Closer
}

func (a *assembly) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// newNode wires a chat node from the configuration.
func newNode(cfg config.Config, logger log.Logger) (*assembly, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cipher, err := cfg.Cipher()
	if err != nil {
		return nil, err
	}
	channels, err := cfg.ChannelRegistry()
	if err != nil {
		return nil, err
	}
	codec := lorachat.NewCodec(lorachat.CodecConfig{
		NodeID:           cfg.NodeID,
		MaxMessageLength: cfg.MaxMessageLength,
		MaxFrameSize:     cfg.MaxFrameSize,
		Cipher:           cipher,
		Channels:         channels,
	})
	transport, err := newTransport(cfg, codec, logger)
	if err != nil {
		return nil, err
	}

	a := &assembly{}
	params := chat.Params{
		Codec:        codec,
		Channels:     channels,
		Transport:    transport,
		Retry:        cfg.Retry.Policy(),
		PollInterval: cfg.PollInterval,
		BufferSize:   cfg.ReceiveBufferSize,
		Logger:       logger,
	}
	if cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		params.Store = db
	}
	a.node = chat.New(params)

	if cfg.Log.Transcript != "" {
		f, err := os.OpenFile(cfg.Log.Transcript, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to open transcript: %w", err)
		}
		a.closers = append(a.closers, f)
		a.node.Subscribe(ui.NewConsole(f))
	}
	return a, nil
}
