package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"log/slog"
	"time"
)

var _ contract.IBroadcaster = (*Broadcaster)(nil)

// EvictFunc is invoked for a peer whose delivery failed, so that peer's own
// disconnect path runs. It must be safe to call while a broadcast from
// another session is in flight.
type EvictFunc func(peer contract.Peer, cause error)

// Broadcaster delivers one message to every session except its sender.
//
// It provides per-sender FIFO: Publish is called synchronously from a single
// session's receive loop, and each target enqueue is non-blocking, so messages
// from one session reach every recipient in publish order. No total order
// across different senders is guaranteed.
//
// Fan-out isolation: a dead or slow peer never blocks or fails delivery to
// the others. Its failure is swallowed locally and reported to the eviction
// callback.
type Broadcaster struct {
	log         *slog.Logger
	registry    contract.IRegistry
	sinkTimeout time.Duration
	evict       EvictFunc
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry,
	sinkTimeout time.Duration, evict EvictFunc) *Broadcaster {
	return &Broadcaster{
		log:         log,
		registry:    registry,
		sinkTimeout: sinkTimeout,
		evict:       evict,
	}
}

// Publish fans the message out to a snapshot of all other sessions.
// A session registering mid-broadcast may miss this one message; a session
// removed mid-broadcast is either fully included or fully excluded depending
// on snapshot timing, never partially.
func (b *Broadcaster) Publish(ctx context.Context, m domain.Message) {
	if m.Kind == domain.KindChat && m.Empty() {
		return
	}

	snapshot := b.registry.SnapshotOthers(m.SenderID)

	var failed []failure
	for _, peer := range snapshot {
		deliveryCtx, cancel := context.WithTimeout(ctx, b.sinkTimeout)
		err := peer.Sink.Consume(deliveryCtx, m)
		cancel()
		if err != nil {
			b.log.Warn("Peer unreachable during broadcast",
				"peer", peer.Name,
				"kind", m.Kind.String(),
				"error", err)
			failed = append(failed, failure{peer, err})
		}
	}

	// Eviction runs after the whole fan-out so one dead peer cannot delay
	// delivery to the rest. Each eviction removes its peer before any Leave
	// announcement is published, so the chain always terminates.
	if b.evict != nil {
		for _, f := range failed {
			b.evict(f.peer, f.cause)
		}
	}
}

type failure struct {
	peer  contract.Peer
	cause error
}
