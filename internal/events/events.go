// Package events publishes catalog changes after they are committed and
// consumes them to clean up photo files that are no longer referenced.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Kind string

const (
	BirdCreated    Kind = "bird.created"
	BirdUpdated    Kind = "bird.updated"
	BirdDeleted    Kind = "bird.deleted"
	PhotoDiscarded Kind = "photo.discarded"
)

type Event struct {
	Kind     Kind      `json:"kind"`
	BirdID   int64     `json:"bird_id"`
	Filename string    `json:"filename,omitempty"`
	At       time.Time `json:"at"`
}

func New(kind Kind, birdID int64, filename string) Event {
	return Event{Kind: kind, BirdID: birdID, Filename: filename, At: time.Now().UTC()}
}

// Handler reacts to a single event.
type Handler func(ctx context.Context, ev Event) error

type Publisher interface {
	Publish(ctx context.Context, evs ...Event) error
	Close() error
}

// Encode turns ev into a Kafka message keyed by bird id.
func Encode(ev Event) (kafka.Message, error) {
	const op = "events.Encode"
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("%s: %w", op, err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.BirdID, 10)),
		Value: value,
	}, nil
}

func Decode(msg kafka.Message) (Event, error) {
	const op = "events.Decode"
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return Event{}, fmt.Errorf("%s: %w", op, err)
	}
	if ev.Kind == "" {
		return Event{}, fmt.Errorf("%s: message without kind", op)
	}
	return ev, nil
}

// MessageWriter is the part of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evs ...Event) error {
	const op = "events.KafkaPublisher.Publish"
	msgs := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		msg, err := Encode(ev)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// InlinePublisher hands events straight to a handler in the calling
// goroutine. It is used when no broker is configured.
type InlinePublisher struct {
	handle Handler
}

func NewInlinePublisher(h Handler) *InlinePublisher {
	return &InlinePublisher{handle: h}
}

func (p *InlinePublisher) Publish(ctx context.Context, evs ...Event) error {
	for _, ev := range evs {
		if err := p.handle(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (p *InlinePublisher) Close() error {
	return nil
}

// MessageReader is the part of *kafka.Reader used by Consume.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consume reads messages until ctx is cancelled. Malformed messages and
// handler failures are logged and skipped.
func Consume(ctx context.Context, r MessageReader, handle Handler, log *zap.Logger) error {
	defer r.Close()

	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("error reading message", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		ev, err := Decode(msg)
		if err != nil {
			log.Warn("skipping malformed event", zap.Error(err), zap.Int64("offset", msg.Offset))
			continue
		}
		if err := handle(ctx, ev); err != nil {
			log.Error("error handling event",
				zap.Error(err),
				zap.String("kind", string(ev.Kind)),
				zap.Int64("bird_id", ev.BirdID))
		}
	}
}

// Remover deletes stored photo files.
type Remover interface {
	Remove(name string) error
}

// PhotoJanitor returns a handler that deletes the files named by
// photo.discarded events. Other kinds are only logged.
func PhotoJanitor(store Remover, log *zap.Logger) Handler {
	return func(ctx context.Context, ev Event) error {
		if ev.Kind != PhotoDiscarded {
			log.Debug("catalog event", zap.String("kind", string(ev.Kind)), zap.Int64("bird_id", ev.BirdID))
			return nil
		}
		if err := store.Remove(ev.Filename); err != nil {
			return err
		}
		log.Info("photo removed", zap.String("filename", ev.Filename), zap.Int64("bird_id", ev.BirdID))
		return nil
	}
}
