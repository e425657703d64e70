// Package eventbus mirrors public session events onto a NATS JetStream stream
// for consumers outside the game process.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/trivia/go/internal/quiz/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	MaxMsgs         int64         // Max number of messages to keep
	Replicas        int
	DuplicateWindow time.Duration
	QueueSize       int
	PublishTimeout  time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "QUIZ_EVENTS",
		SubjectPrefix:   "quiz.events",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		MaxMsgs:         -1,
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
		QueueSize:       1024,
		PublishTimeout:  5 * time.Second,
	}
}

// Envelope is the JSON body of every mirrored message.
type Envelope struct {
	EventID   string           `json:"eventId"`
	EventType events.EventType `json:"eventType"`
	SessionID string           `json:"sessionId"`
	GameID    string           `json:"gameId,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   json.RawMessage  `json:"payload"`
}

// JetStreamPublisher is an events.Sink that queues broadcast events and
// publishes them from Run. Private events are not mirrored.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
	queue  chan *events.Event
}

var _ events.Sink = (*JetStreamPublisher)(nil)

func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.Name("trivia-quiz"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{
		nc:     nc,
		js:     js,
		config: cfg,
		queue:  make(chan *events.Event, max(cfg.QueueSize, 1)),
	}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := streamConfig(p.config)

	stream, err := p.js.Stream(ctx, p.config.StreamName)
	if err != nil {
		if _, err = p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().
			Str("stream", p.config.StreamName).
			Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = p.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().
			Str("stream", p.config.StreamName).
			Msg("updated JetStream stream")
	}
	return nil
}

// Broadcast queues evt for publishing. It never blocks; a full queue drops the event.
func (p *JetStreamPublisher) Broadcast(evt *events.Event) {
	select {
	case p.queue <- evt:
	default:
		log.Warn().
			Str("session_id", evt.SessionID).
			Str("event_type", string(evt.Type)).
			Msg("event bus queue full, dropping event")
	}
}

// SendTo is a no-op: per-player events stay on the player's socket.
func (p *JetStreamPublisher) SendTo(string, *events.Event) {}

// Run publishes queued events until ctx is done.
func (p *JetStreamPublisher) Run(ctx context.Context) {
	log.Info().
		Str("stream", p.config.StreamName).
		Str("prefix", p.config.SubjectPrefix).
		Msg("event bus publisher started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event bus publisher shutting down")
			return
		case evt := <-p.queue:
			pubCtx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
			if err := p.Publish(pubCtx, evt); err != nil {
				log.Error().
					Err(err).
					Str("session_id", evt.SessionID).
					Str("event_type", string(evt.Type)).
					Msg("failed to publish event")
			}
			cancel()
		}
	}
}

// Publish sends one event synchronously.
func (p *JetStreamPublisher) Publish(ctx context.Context, evt *events.Event) error {
	msg, err := NewMsg(p.config.SubjectPrefix, evt)
	if err != nil {
		return err
	}

	ack, err := p.js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(evt.ID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", msg.Subject).
		Str("event_id", evt.ID).
		Uint64("sequence", ack.Sequence).
		Msg("published to JetStream")
	return nil
}

func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// NewMsg builds the NATS message for evt.
func NewMsg(prefix string, evt *events.Event) (*nats.Msg, error) {
	data, err := json.Marshal(Envelope{
		EventID:   evt.ID,
		EventType: evt.Type,
		SessionID: evt.SessionID,
		GameID:    evt.GameID,
		Timestamp: evt.Timestamp,
		Payload:   evt.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return &nats.Msg{
		Subject: Subject(prefix, evt.SessionID, evt.Type),
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(evt.Type)},
			"Session-ID": []string{evt.SessionID},
			"Event-ID":   []string{evt.ID},
		},
	}, nil
}

// Subject returns <prefix>.<session>.<eventType>, with the session id made
// safe to use as a single subject token.
func Subject(prefix, sessionID string, eventType events.EventType) string {
	return fmt.Sprintf("%s.%s.%s", prefix, subjectToken(sessionID), eventType)
}

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

func streamConfig(cfg JetStreamConfig) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Trivia session events",
		Subjects:    []string{fmt.Sprintf("%s.>", cfg.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		MaxMsgs:     cfg.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
		Duplicates:  cfg.DuplicateWindow,
	}
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}
