package tcp

import (
	"bufio"
	"chat-relay/moderation"
	"chat-relay/runtime"
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const readTimeout = 2 * time.Second

func testOptions() Options {
	return Options{
		ConnectionBufferSize: 16,
		SinkTimeout:          100 * time.Millisecond,
		WriteTimeout:         time.Second,
		MaxLineBytes:         8192,
		MalformedTolerance:   2,
	}
}

// startServer boots a relay on a loopback port and returns its address
// plus a stop function waiting for a clean shutdown.
func startServer(t *testing.T, moderator *moderation.Moderator) (string, *runtime.Registry, func()) {
	t.Helper()
	req := require.New(t)

	logger := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := runtime.NewRegistry()
	server := NewServer(logger, registry, moderator, testOptions())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = server.Serve(ctx, listener)
		close(done)
	}()

	stop := func() {
		cancel()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Error("server did not shut down in time")
		}
	}
	return listener.Addr().String(), registry, stop
}

type testClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(t *testing.T, line string) {
	t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (c *testClient) readLine(t *testing.T) string {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(readTimeout)))
	line, err := c.r.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(line, "\n")
}

// expectSilence asserts no frame arrives within a short window.
func (c *testClient) expectSilence(t *testing.T) {
	t.Helper()
	req := require.New(t)
	req.NoError(c.conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond)))
	_, err := c.r.ReadString('\n')
	req.Error(err)
	netErr, ok := err.(net.Error)
	req.True(ok, "expected a timeout, got: %v", err)
	req.True(netErr.Timeout())
}

// login performs the handshake and drains the private roster frame, so the
// next read is the first broadcast the session receives.
func login(t *testing.T, addr, name string) *testClient {
	t.Helper()
	req := require.New(t)

	c := dial(t, addr)
	c.send(t, name)
	req.Equal("OK "+name, c.readLine(t))

	roster := ParseRoster(c.readLine(t))
	req.Contains(roster, name)
	return c
}

func TestServer_Login_Handshake(t *testing.T) {
	req := require.New(t)
	addr, registry, stop := startServer(t, nil)
	defer stop()

	// When a client claims a free name
	c := dial(t, addr)
	c.send(t, "alice")

	// Then it is acknowledged and privately given the roster
	req.Equal("OK alice", c.readLine(t))
	req.Equal([]string{"alice"}, ParseRoster(c.readLine(t)))
	req.Equal(1, registry.Len())
}

func TestServer_Rejects_Invalid_Name(t *testing.T) {
	req := require.New(t)
	addr, registry, stop := startServer(t, nil)
	defer stop()

	// When a client claims a name with inner whitespace
	c := dial(t, addr)
	c.send(t, "mary jane")

	// Then login fails and no session exists
	line := c.readLine(t)
	req.True(strings.HasPrefix(line, "ERR "), "got %q", line)
	req.Zero(registry.Len())
}

func TestServer_Rejects_Taken_Name(t *testing.T) {
	req := require.New(t)
	addr, registry, stop := startServer(t, nil)
	defer stop()

	_ = login(t, addr, "carol")

	// When a second client claims the same name
	late := dial(t, addr)
	late.send(t, "carol")

	// Then it is turned away while the first session stays up
	line := late.readLine(t)
	req.True(strings.HasPrefix(line, "ERR "), "got %q", line)
	req.Contains(line, "taken")
	req.Equal(1, registry.Len())
}

func TestServer_Concurrent_Logins_Same_Name(t *testing.T) {
	req := require.New(t)
	addr, registry, stop := startServer(t, nil)
	defer stop()

	const attempts = 10
	replies := make([]string, attempts)

	// When several clients race for the same name
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				return
			}
			defer conn.Close()
			_, _ = conn.Write([]byte("carol\n"))
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			line, err := bufio.NewReader(conn).ReadString('\n')
			if err == nil {
				replies[i] = strings.TrimRight(line, "\n")
			}
		}(i)
	}
	wg.Wait()

	// Then exactly one of them won the name
	winners := 0
	for _, reply := range replies {
		if reply == "OK carol" {
			winners++
		}
	}
	req.Equal(1, winners)
	req.Equal(1, registry.Len())
}

func TestServer_Broadcasts_To_Others_Not_To_Sender(t *testing.T) {
	req := require.New(t)
	addr, _, stop := startServer(t, nil)
	defer stop()

	alice := login(t, addr, "alice")
	bob := login(t, addr, "bob")

	// alice is told about bob's arrival
	joined := alice.readLine(t)
	req.True(IsSystemLine(joined))
	req.Contains(joined, "bob has joined")

	// When bob speaks
	bob.send(t, "hello room")

	// Then alice receives the frame and bob hears no echo
	req.Contains(alice.readLine(t), "bob: hello room")
	bob.expectSilence(t)
}

func TestServer_Preserves_Sender_Order(t *testing.T) {
	req := require.New(t)
	addr, _, stop := startServer(t, nil)
	defer stop()

	alice := login(t, addr, "alice")
	dave := login(t, addr, "dave")
	req.Contains(alice.readLine(t), "dave has joined")

	// When dave sends several messages back to back
	dave.send(t, "first")
	dave.send(t, "second")
	dave.send(t, "third")

	// Then alice sees them in exactly that order
	req.Contains(alice.readLine(t), "dave: first")
	req.Contains(alice.readLine(t), "dave: second")
	req.Contains(alice.readLine(t), "dave: third")
}

func TestServer_Announces_Leave_Exactly_Once(t *testing.T) {
	req := require.New(t)
	addr, registry, stop := startServer(t, nil)
	defer stop()

	alice := login(t, addr, "alice")
	dave := login(t, addr, "dave")
	req.Contains(alice.readLine(t), "dave has joined")

	dave.send(t, "bye all")
	req.Contains(alice.readLine(t), "dave: bye all")

	// When dave's connection drops abruptly, without a quit command
	req.NoError(dave.conn.Close())

	// Then exactly one leave announcement reaches the others
	req.Contains(alice.readLine(t), "dave has left")
	alice.expectSilence(t)

	req.Eventually(func() bool { return registry.Len() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestServer_Quit_Command_Closes_The_Session(t *testing.T) {
	req := require.New(t)
	addr, registry, stop := startServer(t, nil)
	defer stop()

	alice := login(t, addr, "alice")
	bob := login(t, addr, "bob")
	req.Contains(alice.readLine(t), "bob has joined")

	// When bob quits explicitly
	bob.send(t, "/quit")

	// Then the others are told once and the session is released
	req.Contains(alice.readLine(t), "bob has left")
	alice.expectSilence(t)
	req.Eventually(func() bool { return registry.Len() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestServer_Who_Command_Answers_Privately(t *testing.T) {
	req := require.New(t)
	addr, _, stop := startServer(t, nil)
	defer stop()

	alice := login(t, addr, "alice")
	bob := login(t, addr, "bob")
	req.Contains(alice.readLine(t), "bob has joined")

	// When alice asks for the roster
	alice.send(t, CommandWho)

	// Then she alone receives it, sorted
	req.Equal([]string{"alice", "bob"}, ParseRoster(alice.readLine(t)))
	bob.expectSilence(t)
}

func TestServer_Skips_Empty_Frames(t *testing.T) {
	req := require.New(t)
	addr, _, stop := startServer(t, nil)
	defer stop()

	alice := login(t, addr, "alice")
	bob := login(t, addr, "bob")
	req.Contains(alice.readLine(t), "bob has joined")

	// When bob sends blank lines around a real message
	bob.send(t, "")
	bob.send(t, "   ")
	bob.send(t, "still here")

	// Then only the real message is relayed
	req.Contains(alice.readLine(t), "bob: still here")
	alice.expectSilence(t)
}

func TestServer_Drops_Connection_After_Too_Many_Malformed_Frames(t *testing.T) {
	req := require.New(t)
	addr, registry, stop := startServer(t, nil)
	defer stop()

	alice := login(t, addr, "alice")
	bob := login(t, addr, "bob")
	req.Contains(alice.readLine(t), "bob has joined")

	// When bob keeps sending frames that are not valid UTF-8
	for i := 0; i < 3; i++ {
		_, err := bob.conn.Write([]byte{0xff, 0xfe, 0xfd, '\n'})
		req.NoError(err)
	}

	// Then the tolerance runs out and the session is torn down
	req.Contains(alice.readLine(t), "bob has left")
	req.Eventually(func() bool { return registry.Len() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestServer_Name_Reusable_After_Disconnect(t *testing.T) {
	req := require.New(t)
	addr, registry, stop := startServer(t, nil)
	defer stop()

	first := login(t, addr, "alice")
	first.send(t, "/quit")

	req.Eventually(func() bool { return registry.Len() == 0 },
		time.Second, 10*time.Millisecond)

	// When the name is claimed again after the session closed
	second := dial(t, addr)
	second.send(t, "alice")

	// Then the claim succeeds
	req.Equal("OK alice", second.readLine(t))
}

func TestServer_Censors_Chat_Traffic(t *testing.T) {
	req := require.New(t)
	moderator, err := moderation.NewModerator([]string{"idiot"}, '*')
	req.NoError(err)

	addr, _, stop := startServer(t, moderator)
	defer stop()

	alice := login(t, addr, "alice")
	bob := login(t, addr, "bob")
	req.Contains(alice.readLine(t), "bob has joined")

	// When bob's message contains a censored word
	bob.send(t, "you are an idiot")

	// Then the others receive the masked form
	line := alice.readLine(t)
	req.Contains(line, "bob: you are an *****")
	req.NotContains(line, "idiot")
}
