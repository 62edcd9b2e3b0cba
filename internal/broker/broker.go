// Package broker is the Aggregator's pub/sub client (spec §6.1/§6.2). The
// Aggregator never implements a pub/sub transport itself (spec §1
// Non-goals) — it is a client of an already-running broker reached over
// NATS_URL. No full NATS client library ships anywhere in the retrieved
// example pack, so this package frames the small client-side subset of the
// NATS text protocol it actually needs (CONNECT, SUB, PUB, MSG, PING/PONG)
// as JSON frames carried over a gorilla/websocket connection, and
// reconnects with cenkalti/backoff/v4 on disconnect.
package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/apperr"
)

// Message is one delivered or outbound pub/sub message.
type Message struct {
	Subject string
	Data    []byte
}

// Handler processes one inbound Message. Handlers run synchronously from
// the connection's read loop in per-subject delivery order (spec §5
// "Ordering guarantees").
type Handler func(Message)

// frame is the wire shape exchanged with the broker.
type frame struct {
	Op      string `json:"op"`
	Subject string `json:"subject,omitempty"`
	Sid     string `json:"sid,omitempty"`
	Payload string `json:"payload,omitempty"` // base64-free: JSON string escaping carries arbitrary UTF-8 payloads
	User    string `json:"user,omitempty"`
	Pass    string `json:"pass,omitempty"`
}

// Conn is a reconnecting client connection to the pub/sub fabric.
type Conn struct {
	url  string
	user string
	pass string

	logger zerolog.Logger

	mu       sync.Mutex
	ws       *websocket.Conn
	handlers map[string]Handler

	closed chan struct{}
	once   sync.Once
}

// Config carries the credentials and endpoint from spec §6.2/§6.4.
type Config struct {
	URL      string
	User     string
	Password string
}

// New constructs a Conn. It does not dial; call Dial to make the initial
// connection.
func New(cfg Config, logger zerolog.Logger) *Conn {
	return &Conn{
		url:      cfg.URL,
		user:     cfg.User,
		pass:     cfg.Password,
		logger:   logger,
		handlers: make(map[string]Handler),
		closed:   make(chan struct{}),
	}
}

// Dial makes the initial connection and re-subscribes nothing yet (callers
// subscribe after Dial succeeds). A failure here is fatal at startup per
// spec §6.2/§7 (FatalStartupError); it is the caller's job to exit
// non-zero on it.
func (c *Conn) Dial(ctx context.Context) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return apperr.FatalStartup("failed to connect to pub/sub broker", err)
	}

	connectFrame := frame{Op: "CONNECT", User: c.user, Pass: c.pass}
	if err := ws.WriteJSON(connectFrame); err != nil {
		ws.Close()
		return apperr.FatalStartup("failed to authenticate with pub/sub broker", err)
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	return nil
}

// Run starts the read loop and reconnect-on-disconnect supervisor. It
// blocks until ctx is cancelled (graceful shutdown, spec §5).
func (c *Conn) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.readLoop(ctx)

		select {
		case <-ctx.Done():
			return
		default:
		}

		c.reconnect(ctx)
	}
}

func (c *Conn) readLoop(ctx context.Context) {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var f frame
		if err := ws.ReadJSON(&f); err != nil {
			c.logger.Warn().Err(err).Msg("pub/sub connection lost, will reconnect")
			return
		}

		switch f.Op {
		case "MSG":
			c.dispatch(f)
		case "PING":
			_ = ws.WriteJSON(frame{Op: "PONG"})
		default:
			// INFO and anything else: ignored, spec only cares about the
			// four subscribed subjects and outbound publish.
		}
	}
}

func (c *Conn) dispatch(f frame) {
	c.mu.Lock()
	h, ok := c.handlers[f.Subject]
	c.mu.Unlock()
	if !ok {
		return
	}
	h(Message{Subject: f.Subject, Data: []byte(f.Payload)})
}

func (c *Conn) reconnect(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retry forever; only ctx cancellation stops it

	_ = backoff.Retry(func() error {
		select {
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		default:
		}

		if err := c.Dial(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("pub/sub reconnect attempt failed")
			return err
		}

		c.mu.Lock()
		subjects := make([]string, 0, len(c.handlers))
		for subj := range c.handlers {
			subjects = append(subjects, subj)
		}
		c.mu.Unlock()
		for _, subj := range subjects {
			if err := c.sendSub(subj); err != nil {
				return err
			}
		}
		c.logger.Info().Msg("pub/sub reconnected")
		return nil
	}, backoff.WithContext(bo, ctx))
}

// Subscribe registers handler for subject and, once connected, sends the
// SUB frame. Subscriptions made before Dial are sent the first time Run
// establishes a connection, and are replayed automatically on reconnect.
func (c *Conn) Subscribe(subject string, h Handler) error {
	c.mu.Lock()
	c.handlers[subject] = h
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		return nil
	}
	return c.sendSub(subject)
}

func (c *Conn) sendSub(subject string) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return fmt.Errorf("not connected")
	}
	return ws.WriteJSON(frame{Op: "SUB", Subject: subject, Sid: subject})
}

// Publish sends data on subject (spec §6.1 outbound). A failure here is a
// TransientIOError per §7: log and move on, the next rollup tick retries.
func (c *Conn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return apperr.TransientIO("publish attempted with no broker connection", nil)
	}
	if err := ws.WriteJSON(frame{Op: "PUB", Subject: subject, Payload: string(data)}); err != nil {
		return apperr.TransientIO("publish failed", err)
	}
	return nil
}

// Close shuts the connection down and stops Run's reconnect loop (spec §5
// "closes the pub/sub subscription").
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		c.mu.Lock()
		if c.ws != nil {
			err = c.ws.Close()
		}
		c.mu.Unlock()
	})
	return err
}
