package e2e

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"chat-relay/moderation"
	"chat-relay/runtime"
	relaytcp "chat-relay/tcp"
)

// BaseRelaySuite boots (or attaches to) a relay once per suite and hands
// scenarios a tiny line-level session helper.
type BaseRelaySuite struct {
	suite.Suite
	Config      Config
	addr        string
	readTimeout time.Duration

	cancel context.CancelFunc
	served chan struct{}
}

// SetupSuite loads the environment configuration and, unless an external
// relay address is given, starts an embedded relay on a loopback port.
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	s.readTimeout, err = time.ParseDuration(s.Config.ReadTimeout)
	s.Require().NoError(err)

	if s.Config.ServerAddr != "" {
		s.addr = s.Config.ServerAddr
		return
	}

	logger := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := runtime.NewRegistry()
	moderator, err := moderation.NewModerator([]string{"idiot"}, '*')
	s.Require().NoError(err)

	server := relaytcp.NewServer(logger, registry, moderator, relaytcp.Options{
		ConnectionBufferSize: 32,
		SinkTimeout:          100 * time.Millisecond,
		WriteTimeout:         time.Second,
		MaxLineBytes:         8192,
		MalformedTolerance:   3,
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.addr = listener.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.served = make(chan struct{})
	go func() {
		_ = server.Serve(ctx, listener)
		close(s.served)
	}()
}

func (s *BaseRelaySuite) TearDownSuite() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	select {
	case <-s.served:
	case <-time.After(3 * time.Second):
		s.T().Error("embedded relay did not shut down in time")
	}
}

// Header prints a colorized banner for a scenario step in the test logs.
func (s *BaseRelaySuite) Header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Session is one logged-in line-level connection to the relay.
type Session struct {
	Name string
	conn net.Conn
	r    *bufio.Reader

	readTimeout time.Duration
	history     []string
}

// Connect dials the relay and performs the login handshake for the given
// name, draining the private roster frame. The next ReadLine returns the
// first broadcast the session receives.
func (s *BaseRelaySuite) Connect(t *testing.T, name string) *Session {
	t.Helper()
	session, reply := s.attempt(t, name)
	s.Require().Equal("OK "+name, reply)

	roster := relaytcp.ParseRoster(session.ReadLine(t))
	s.Require().Contains(roster, name)
	return session
}

// attempt dials and claims a name, returning the raw reply line.
func (s *BaseRelaySuite) attempt(t *testing.T, name string) (*Session, string) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", s.addr, time.Second)
	s.Require().NoError(err)
	t.Cleanup(func() { _ = conn.Close() })

	session := &Session{Name: name, conn: conn, r: bufio.NewReader(conn), readTimeout: s.readTimeout}
	session.Send(t, name)
	return session, session.ReadLine(t)
}

func (c *Session) Send(t *testing.T, line string) {
	t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	if err != nil {
		t.Fatalf("sending %q: %v", line, err)
	}
}

func (c *Session) ReadLine(t *testing.T) string {
	t.Helper()
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		t.Fatal(err)
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		t.Fatalf("reading from %s: %v", c.Name, err)
	}
	frame := strings.TrimRight(line, "\n")
	c.history = append(c.history, frame)
	return frame
}

// Saw reports whether any frame read so far contained the fragment.
func (c *Session) Saw(fragment string) bool {
	for _, frame := range c.history {
		if strings.Contains(frame, fragment) {
			return true
		}
	}
	return false
}

// ReadUntil reads frames until one contains the given fragment and returns
// it. Scenarios share one relay, so a session may first see the tail of the
// previous scenario's teardown; those frames are skipped, order among the
// frames that follow is preserved.
func (c *Session) ReadUntil(t *testing.T, fragment string) string {
	t.Helper()
	for i := 0; i < 20; i++ {
		line := c.ReadLine(t)
		if strings.Contains(line, fragment) {
			return line
		}
	}
	t.Fatalf("%s never received a frame containing %q", c.Name, fragment)
	return ""
}

// ExpectSilence asserts no frame arrives within a short window.
func (c *Session) ExpectSilence(t *testing.T) {
	t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, err := c.r.ReadString('\n'); err == nil {
		t.Fatalf("%s received an unexpected frame", c.Name)
	} else if netErr, ok := err.(net.Error); !ok || !netErr.Timeout() {
		t.Fatalf("expected a read timeout for %s, got: %v", c.Name, err)
	}
}

func (c *Session) Close() {
	_ = c.conn.Close()
}
