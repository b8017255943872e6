// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus provides the in-process pub/sub used to fan out session snapshots.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/genplay/internal/log"
	"github.com/ManuGH/genplay/internal/metrics"
)

// ErrClosed is returned when publishing to or subscribing on a closed bus.
var ErrClosed = errors.New("bus: closed")

// Subscriber receives messages for one topic until Close is called.
type Subscriber[T any] interface {
	C() <-chan T
	Close() error
}

// Bus is a topic based publish/subscribe channel.
type Bus[T any] interface {
	Publish(ctx context.Context, topic string, msg T) error
	Subscribe(ctx context.Context, topic string) (Subscriber[T], error)
}

// MemoryBus is an in-memory pub/sub. Publish never blocks the producer: a
// subscriber whose buffer is full misses the message and the drop is counted.
type MemoryBus[T any] struct {
	mu     sync.RWMutex
	subs   map[string][]*memSub[T]
	buffer int
	closed bool
}

const (
	defaultBuffer = 64
	dropLogEvery  = 100
)

var dropCount atomic.Uint64

// NewMemoryBus creates a bus whose subscribers buffer up to buffer messages.
func NewMemoryBus[T any](buffer int) *MemoryBus[T] {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &MemoryBus[T]{subs: make(map[string][]*memSub[T]), buffer: buffer}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

// Publish delivers msg to every current subscriber of topic.
func (b *MemoryBus[T]) Publish(ctx context.Context, topic string, msg T) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	if err := ctx.Err(); err != nil {
		metrics.IncBusDropReason(topic, publishDropReason(err))
		return fmt.Errorf("publish topic %q: %w", topic, err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for _, s := range b.subs[topic] {
		select {
		case s.ch <- msg:
		default:
			metrics.IncBusDrop(topic)
			if count := dropCount.Add(1); count%dropLogEvery == 0 {
				log.L().Warn().
					Str("topic", topic).
					Uint64("dropped", count).
					Msg("memory bus subscriber is full, dropping messages")
			}
		}
	}
	return nil
}

// Subscribe registers a new subscriber for topic.
func (b *MemoryBus[T]) Subscribe(_ context.Context, topic string) (Subscriber[T], error) {
	s := &memSub[T]{b: b, topic: topic, ch: make(chan T, b.buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.subs[topic] = append(b.subs[topic], s)
	return s, nil
}

// Close closes every subscriber channel. Further publishes fail with ErrClosed.
func (b *MemoryBus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, lst := range b.subs {
		for _, s := range lst {
			s.closeLocked()
		}
		delete(b.subs, topic)
	}
}

type memSub[T any] struct {
	b      *MemoryBus[T]
	topic  string
	ch     chan T
	closed bool
}

func (s *memSub[T]) C() <-chan T {
	return s.ch
}

func (s *memSub[T]) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	lst := s.b.subs[s.topic]
	out := lst[:0]
	for _, c := range lst {
		if c != s {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(s.b.subs, s.topic)
	} else {
		s.b.subs[s.topic] = out
	}
	s.closeLocked()
	return nil
}

// closeLocked requires b.mu held for writing.
func (s *memSub[T]) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

var _ Bus[int] = (*MemoryBus[int])(nil)
