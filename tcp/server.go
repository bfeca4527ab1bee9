package tcp

import (
	"bufio"
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/runtime"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Options tunes the per-connection behavior of the acceptor.
type Options struct {
	// ConnectionBufferSize bounds each session's outbound queue.
	ConnectionBufferSize int
	// SinkTimeout caps one enqueue attempt during a broadcast.
	SinkTimeout time.Duration
	// WriteTimeout caps one frame write to a peer's socket.
	WriteTimeout time.Duration
	// MaxLineBytes bounds a single inbound frame.
	MaxLineBytes int
	// MalformedTolerance is how many unparseable frames a connection may
	// send before it is torn down.
	MalformedTolerance int
}

// Server accepts transport connections, runs the login handshake, and owns
// each session's receive loop. Per connection the state machine is
// Connecting -> Active -> Closing -> Closed; a rejected login goes straight
// from Connecting to Closed without a session ever being created.
type Server struct {
	log         *slog.Logger
	registry    contract.IRegistry
	broadcaster contract.IBroadcaster
	moderator   *moderation.Moderator
	opts        Options
	wg          sync.WaitGroup
}

func NewServer(log *slog.Logger, registry contract.IRegistry,
	moderator *moderation.Moderator, opts Options) *Server {
	s := &Server{
		log:       log,
		registry:  registry,
		moderator: moderator,
		opts:      opts,
	}
	s.broadcaster = runtime.NewBroadcaster(log, registry, opts.SinkTimeout, s.evictPeer)
	return s
}

// Serve accepts connections until the context is canceled, then waits for
// every session handler to finish. The client, not the server, is
// responsible for reconnecting after a drop.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.log.Warn("Accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}

	s.wg.Wait()
	s.log.Info("All sessions closed")
	return nil
}

// handleConn drives one connection through its whole lifecycle.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), s.opts.MaxLineBytes)

	// Connecting: the first frame is the display-name claim.
	if !scanner.Scan() {
		s.log.Debug("Connection closed before login", "remote", conn.RemoteAddr().String())
		return
	}
	name, err := auth.ValidateName(scanner.Text())
	if err != nil {
		s.reject(conn, err)
		return
	}

	sink := NewConnSink(s.log, s.opts.ConnectionBufferSize)
	id, err := s.registry.Register(name, sink)
	if err != nil {
		s.reject(conn, err)
		return
	}

	s.log.Info("Session opened", "name", name, "id", id, "remote", conn.RemoteAddr().String())

	// The login reply is written before the pump starts, so it is always
	// the first frame the client sees.
	if _, err := conn.Write([]byte(formatReplyOK(name) + "\n")); err != nil {
		s.closeSession(ctx, id, name, sink)
		return
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := sink.Pump(sessionCtx, conn, s.opts.WriteTimeout); err != nil && sessionCtx.Err() == nil {
			s.log.Debug("Outbound pump stopped", "name", name, "error", err)
		}
		cancel()
		// Unblocks the receive loop even when its read never returns.
		_ = conn.Close()
	}()

	// Active: announce, send the roster privately, then relay frames.
	s.sendRoster(sessionCtx, sink)
	s.broadcaster.Publish(sessionCtx, domain.NewSystem(domain.KindJoin, id, name, ""))

	s.receiveLoop(sessionCtx, scanner, id, name, sink)

	// Closing: release the registry entry exactly once; the Leave
	// announcement is best-effort and never duplicated.
	s.closeSession(ctx, id, name, sink)
}

// receiveLoop reads frames until EOF, a read error, a quit command, or too
// many malformed frames. It never holds any registry lock while blocked on
// the socket.
func (s *Server) receiveLoop(ctx context.Context, scanner *bufio.Scanner,
	id uuid.UUID, name string, sink *ConnSink) {
	malformed := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		body := strings.TrimSpace(scanner.Text())
		if body == "" {
			continue
		}
		if !utf8.ValidString(body) {
			malformed++
			s.log.Debug("Discarding malformed frame", "name", name, "count", malformed)
			if malformed > s.opts.MalformedTolerance {
				s.log.Warn("Too many malformed frames, dropping connection", "name", name)
				return
			}
			continue
		}

		switch body {
		case CommandQuit:
			return
		case CommandWho:
			s.sendRoster(ctx, sink)
		default:
			s.broadcaster.Publish(ctx, domain.NewChat(id, name, s.censor(name, body)))
		}
	}

	if err := scanner.Err(); err != nil {
		if goerrors.Is(err, bufio.ErrTooLong) {
			s.log.Warn("Frame exceeded size limit, dropping connection", "name", name)
			return
		}
		// EOF and reset are a normal disconnect, not an error to surface.
		s.log.Debug("Session read ended", "name", name, "error", err)
	}
}

// censor runs the moderation pass over one chat body.
func (s *Server) censor(name, body string) string {
	if s.moderator == nil {
		return body
	}
	clean, found := s.moderator.Censor(body)
	if len(found) > 0 {
		s.log.Debug("Censored message",
			"name", name,
			"lang", moderation.DetectLanguage(body),
			"matches", len(found))
	}
	return clean
}

// closeSession tears one session down. Unregister is idempotent and acts as
// the guard: only the caller that actually removed the entry publishes the
// Leave announcement, so racing triggers (read error plus explicit quit)
// produce exactly one.
func (s *Server) closeSession(ctx context.Context, id uuid.UUID, name string, sink *ConnSink) {
	if s.registry.Unregister(id) {
		s.log.Info("Session closed", "name", name, "id", id)
		s.broadcaster.Publish(ctx, domain.NewSystem(domain.KindLeave, id, name, ""))
	}
	sink.Close()
}

// evictPeer is the broadcast engine's failure callback: a peer whose
// delivery failed is removed through the same close path as a disconnect.
func (s *Server) evictPeer(peer contract.Peer, cause error) {
	if s.registry.Unregister(peer.ID) {
		s.log.Warn("Evicting unreachable peer", "peer", peer.Name, "cause", cause)
		s.broadcaster.Publish(context.Background(),
			domain.NewSystem(domain.KindLeave, peer.ID, peer.Name, ""))
	}
	if sink, ok := peer.Sink.(*ConnSink); ok {
		sink.Close()
	}
}

// sendRoster answers the requesting session only.
func (s *Server) sendRoster(ctx context.Context, sink *ConnSink) {
	roster := domain.NewSystem(domain.KindSystem, uuid.Nil, "", formatRoster(s.registry.Names()))
	if err := sink.Consume(ctx, roster); err != nil {
		s.log.Debug("Roster delivery failed", "error", err)
	}
}

// reject answers a failed login and closes the connection; no session was
// created, so nothing is announced to other users.
func (s *Server) reject(conn net.Conn, cause error) {
	s.log.Info("Login rejected", "remote", conn.RemoteAddr().String(), "cause", cause)
	reason := "login rejected"
	switch {
	case goerrors.Is(cause, errors.ErrNameTaken):
		reason = errors.ErrNameTaken.Error()
	case goerrors.Is(cause, errors.ErrInvalidName):
		reason = errors.ErrInvalidName.Error()
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	_, _ = fmt.Fprintf(conn, "%s\n", formatReplyErr(reason))
}
