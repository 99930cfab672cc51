// Package eventbus provides an embedded NATS pub/sub bus used to fan
// signal and session events out across process boundaries (multiple
// API instances behind a load balancer all see the same events).
package eventbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Subjects this service publishes/subscribes to.
const (
	SubjectSignalChanged  = "nightwatch.signals.changed"
	SubjectSessionRevoked = "nightwatch.sessions.revoked"
	SubjectLiveFragment   = "nightwatch.live.fragment"
)

// Config configures the embedded NATS server. Port 0 lets the OS
// assign an ephemeral port, the right default for a single-process
// deployment that doesn't need a stable address.
type Config struct {
	Host string
	Port int
}

func DefaultConfig() Config { return Config{Host: "127.0.0.1", Port: 0} }

// Bus is an embedded NATS server plus a connected client. No
// multi-plugin port allocation: this service owns its one NATS
// instance outright.
type Bus struct {
	server *server.Server
	conn   *nats.Conn
	logger *slog.Logger

	subsMu sync.Mutex
	subs   map[string][]*nats.Subscription
}

// Open starts an embedded NATS server and connects a client to it.
func Open(cfg Config, logger *slog.Logger) (*Bus, error) {
	opts := &server.Options{Host: cfg.Host, Port: cfg.Port, NoSigs: true, NoLog: true}
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("eventbus: start nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(2 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("eventbus: nats server not ready after 2s")
	}
	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("eventbus: connect: %w", err)
	}
	return &Bus{
		server: ns,
		conn:   nc,
		logger: logger.With("component", "eventbus"),
		subs:   make(map[string][]*nats.Subscription),
	}, nil
}

// ClientURL returns the embedded server's connection URL, for metrics
// or diagnostic endpoints.
func (b *Bus) ClientURL() string { return b.server.ClientURL() }

// Publish marshals v as JSON and publishes it to subject.
func (b *Bus) Publish(subject string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("eventbus: marshal: %w", err)
	}
	return b.conn.Publish(subject, payload)
}

// Subscribe registers handler for messages on subject.
func (b *Bus) Subscribe(subject string, handler func(*nats.Msg)) (*nats.Subscription, error) {
	sub, err := b.conn.Subscribe(subject, handler)
	if err != nil {
		return nil, err
	}
	b.subsMu.Lock()
	b.subs[subject] = append(b.subs[subject], sub)
	b.subsMu.Unlock()
	return sub, nil
}

// Close drains the client connection and shuts down the embedded
// server.
func (b *Bus) Close() {
	_ = b.conn.Drain()
	b.server.Shutdown()
	b.logger.Info("event bus stopped")
}
