package tcp

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

var _ contract.MessageSink = (*ConnSink)(nil)

// ConnSink is one session's outbound handle: a bounded queue of rendered
// frames drained to the socket by a dedicated pump goroutine. Enqueueing
// never blocks on the network, so a slow peer stalls only its own queue.
type ConnSink struct {
	log       *slog.Logger
	out       chan string
	closed    chan struct{}
	closeOnce sync.Once
}

func NewConnSink(log *slog.Logger, bufferSize int) *ConnSink {
	return &ConnSink{
		log:    log,
		out:    make(chan string, bufferSize),
		closed: make(chan struct{}),
	}
}

// Consume is called by the broadcast engine. A full buffer means the peer
// is not keeping up; the caller treats that as the peer's own failure
// (disconnect-on-overflow), never as backpressure on the sender.
func (s *ConnSink) Consume(ctx context.Context, m domain.Message) error {
	select {
	case <-s.closed:
		return errors.ErrSinkClosed
	default:
	}

	select {
	case s.out <- FormatLine(m):
		return nil
	case <-s.closed:
		return errors.ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrSlowConsumer
	}
}

// Pump drains the queue to the connection until the context is canceled,
// the sink is closed, or a write fails. It owns all writes to conn after
// the login reply.
func (s *ConnSink) Pump(ctx context.Context, conn net.Conn, writeTimeout time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return errors.ErrSinkClosed
		case line := <-s.out:
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return err
			}
			if _, err := conn.Write([]byte(line + "\n")); err != nil {
				return err
			}
		}
	}
}

// Close releases the sink; pending frames are dropped. Idempotent.
func (s *ConnSink) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}
