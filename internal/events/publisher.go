// Package events publishes interview activity to Kafka for downstream
// analytics. Turns and phase transitions go to separate topics. When no
// brokers are configured the publisher runs in log-only mode.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/michalfoune/rizma-heygen/internal/interview"
)

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers          []string
	TopicTurns       string
	TopicTransitions string
	Enabled          bool
}

// Publisher writes interview events to Kafka. It implements the
// orchestrator's observer hook, so publishing never blocks a session:
// writes happen on a goroutine per event and failures are logged.
type Publisher struct {
	writerTurns       *kafka.Writer
	writerTransitions *kafka.Writer
	topicTurns        string
	topicTransitions  string
	enabled           bool
	log               zerolog.Logger
}

// New creates a publisher. With Enabled false or no brokers it degrades
// to log-only mode.
func New(cfg *Config, log zerolog.Logger) *Publisher {
	if cfg == nil || !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("kafka disabled, using log-only mode")
		p := &Publisher{enabled: false, log: log}
		if cfg != nil {
			p.topicTurns = cfg.TopicTurns
			p.topicTransitions = cfg.TopicTransitions
		}
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTurns", cfg.TopicTurns).
		Str("topicTransitions", cfg.TopicTransitions).
		Msg("kafka publisher initialized")

	return &Publisher{
		writerTurns:       newWriter(cfg.TopicTurns),
		writerTransitions: newWriter(cfg.TopicTransitions),
		topicTurns:        cfg.TopicTurns,
		topicTransitions:  cfg.TopicTransitions,
		enabled:           true,
		log:               log,
	}
}

// turnEvent is the wire shape for a published turn.
type turnEvent struct {
	SessionID string         `json:"session_id"`
	Turn      interview.Turn `json:"turn"`
	At        time.Time      `json:"published_at"`
}

// OnTurn publishes a committed transcript turn.
func (p *Publisher) OnTurn(sessionID string, t interview.Turn) {
	go p.publish(p.writerTurns, p.topicTurns, sessionID, turnEvent{
		SessionID: sessionID,
		Turn:      t,
		At:        time.Now().UTC(),
	})
}

// OnPhaseChange publishes a phase transition.
func (p *Publisher) OnPhaseChange(ch interview.PhaseChange) {
	go p.publish(p.writerTransitions, p.topicTransitions, ch.SessionID, ch)
}

func (p *Publisher) publish(writer *kafka.Writer, topic, key string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Str("topic", topic).Msg("failed to marshal event")
		return
	}

	p.log.Debug().
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("publishing event")

	if !p.enabled || writer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "sessionId", Value: []byte(key)},
		},
	}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error().Err(err).Str("topic", topic).Str("key", key).Msg("failed to write to kafka")
	}
}

// Close closes both writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTurns != nil {
		if e := p.writerTurns.Close(); e != nil {
			p.log.Error().Err(e).Msg("error closing turns writer")
			err = e
		}
	}
	if p.writerTransitions != nil {
		if e := p.writerTransitions.Close(); e != nil {
			p.log.Error().Err(e).Msg("error closing transitions writer")
			err = e
		}
	}
	return err
}
