package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/reseich/reseich-api/internal/logger"
)

const statusSubjectPrefix = "research.status."

// StatusEvent is published whenever a research item's status or progress changes.
type StatusEvent struct {
	ResearchID string    `json:"research_id"`
	Status     string    `json:"status"`
	Progress   int32     `json:"progress"`
	HasResult  bool      `json:"has_result"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Terminal reports whether no further events follow for the item.
func (e StatusEvent) Terminal() bool {
	return e.Status == "completed" || e.Status == "failed"
}

// Bus fans research status events out to subscribers, possibly on other instances.
type Bus interface {
	Publish(ctx context.Context, event StatusEvent) error
	// Subscribe calls fn for every event of researchID until the returned func is called.
	Subscribe(researchID string, fn func(StatusEvent)) (func(), error)
}

// StatusSubject returns the NATS subject carrying events for researchID.
func StatusSubject(researchID string) string {
	return statusSubjectPrefix + researchID
}

// NATSBus publishes on research.status.{id}, so any instance can serve a stream.
type NATSBus struct {
	nc     *nats.Conn
	logger *logger.Logger
}

func NewNATSBus(nc *nats.Conn, logger *logger.Logger) *NATSBus {
	return &NATSBus{nc: nc, logger: logger.WithComponent("events")}
}

// Connect dials NATS with reconnects enabled.
func Connect(url string, log *logger.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("reseich-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

func (b *NATSBus) Publish(ctx context.Context, event StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}
	if err := b.nc.Publish(StatusSubject(event.ResearchID), data); err != nil {
		return fmt.Errorf("failed to publish status event: %w", err)
	}
	return nil
}

func (b *NATSBus) Subscribe(researchID string, fn func(StatusEvent)) (func(), error) {
	sub, err := b.nc.Subscribe(StatusSubject(researchID), func(msg *nats.Msg) {
		var event StatusEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.logger.Warn("received invalid status event",
				slog.String("subject", msg.Subject),
				slog.String("error", err.Error()))
			return
		}
		fn(event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", StatusSubject(researchID), err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Debug("unsubscribe failed", slog.String("error", err.Error()))
		}
	}, nil
}

// LocalBus delivers events within the process. Used when NATS is not configured.
type LocalBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func(StatusEvent)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[int]func(StatusEvent))}
}

func (b *LocalBus) Publish(ctx context.Context, event StatusEvent) error {
	b.mu.RLock()
	handlers := make([]func(StatusEvent), 0, len(b.subs[event.ResearchID]))
	for _, fn := range b.subs[event.ResearchID] {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(event)
	}
	return nil
}

func (b *LocalBus) Subscribe(researchID string, fn func(StatusEvent)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.subs[researchID] == nil {
		b.subs[researchID] = make(map[int]func(StatusEvent))
	}
	b.subs[researchID][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[researchID], id)
			if len(b.subs[researchID]) == 0 {
				delete(b.subs, researchID)
			}
		})
	}, nil
}
