// Package client implements the relay client core: the login step and the
// two concurrent paths (local input to socket, socket to renderer).
package client

import (
	"bufio"
	"chat-relay/tcp"
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"
)

// Client couples one server connection with a renderer for inbound frames.
// A single buffered reader is shared between Login and Run, so a frame the
// server sends right behind the login reply is never lost.
type Client struct {
	log      *slog.Logger
	conn     net.Conn
	reader   *bufio.Reader
	renderer *Renderer
}

func New(log *slog.Logger, conn net.Conn, renderer *Renderer) *Client {
	return &Client{log: log, conn: conn, reader: bufio.NewReader(conn), renderer: renderer}
}

// Login claims a display name and waits for the server's verdict. It must
// run before Run: the reply line is the first frame the server sends.
func (c *Client) Login(name string, timeout time.Duration) (string, error) {
	if err := c.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	defer c.conn.SetDeadline(time.Time{})

	if _, err := fmt.Fprintf(c.conn, "%s\n", name); err != nil {
		return "", fmt.Errorf("sending login: %w", err)
	}

	reply, err := c.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading login reply: %w", err)
	}
	return tcp.ParseReply(strings.TrimSpace(reply))
}

// Run drives the send and receive paths concurrently until either one
// fails or the context is canceled. The two paths are jointly canceled:
// a failure on one closes the connection, which ends the other. No
// ordering is assumed between what was just sent and what is received.
func (c *Client) Run(parent context.Context, input io.Reader) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	errChan := make(chan error, 2)
	var quit atomic.Bool

	// Receive path: socket -> renderer.
	go func() {
		for {
			line, err := c.reader.ReadString('\n')
			if err != nil {
				errChan <- fmt.Errorf("server connection lost: %w", err)
				cancel()
				return
			}
			c.renderer.Render(strings.TrimRight(line, "\r\n"))
		}
	}()

	// Send path: local input -> socket.
	go func() {
		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
				errChan <- fmt.Errorf("sending message: %w", err)
				cancel()
				return
			}
			if line == tcp.CommandQuit {
				quit.Store(true)
				errChan <- nil
				cancel()
				return
			}
		}
		// Local input closed (Ctrl+D): a clean way to leave.
		quit.Store(true)
		_, _ = fmt.Fprintf(c.conn, "%s\n", tcp.CommandQuit)
		errChan <- nil
		cancel()
	}()

	<-ctx.Done()

	// Closing the socket unblocks whichever path is still inside a read.
	_ = c.conn.Close()

	err := <-errChan
	if parent.Err() != nil || quit.Load() || isClosedConn(err) {
		// The error is only the echo of our own close, or the server
		// hanging up after an announced quit. Both are clean exits.
		return nil
	}
	return err
}

func isClosedConn(err error) bool {
	return err != nil && (goerrors.Is(err, net.ErrClosed) || goerrors.Is(err, io.ErrClosedPipe))
}
