// Package tcp implements the wire side of the relay: the connection
// acceptor, the per-session receive loop, and the outbound sink draining
// to the socket. Frames are newline-delimited UTF-8 text, symmetric
// between client and server.
package tcp

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"strings"
)

// Wire contract. The first line of a connection is the requested display
// name; the server answers with exactly one reply line. Every later line
// from the server is either a chat line or a system-tagged announcement.
const (
	replyOK  = "OK"
	replyErr = "ERR"

	systemTag = "* "

	CommandQuit = "/quit"
	CommandWho  = "/who"

	rosterPrefix = "online: "
)

// FormatLine renders a message as a single server-to-client frame.
func FormatLine(m domain.Message) string {
	ts := m.CreatedAt.Format("15:04:05")
	switch m.Kind {
	case domain.KindChat:
		return fmt.Sprintf("[%s] %s: %s", ts, m.SenderName, m.Body)
	case domain.KindJoin:
		return fmt.Sprintf("[%s] %s%s has joined", ts, systemTag, m.SenderName)
	case domain.KindLeave:
		return fmt.Sprintf("[%s] %s%s has left", ts, systemTag, m.SenderName)
	default:
		return fmt.Sprintf("[%s] %s%s", ts, systemTag, m.Body)
	}
}

// IsSystemLine reports whether a received frame carries the system tag.
func IsSystemLine(line string) bool {
	if i := strings.Index(line, "] "); i >= 0 {
		line = line[i+2:]
	}
	return strings.HasPrefix(line, systemTag)
}

func formatReplyOK(name string) string {
	return replyOK + " " + name
}

func formatReplyErr(reason string) string {
	return replyErr + " " + reason
}

// ParseReply decodes the single login reply line sent by the server.
func ParseReply(line string) (string, error) {
	switch {
	case strings.HasPrefix(line, replyOK+" "):
		return strings.TrimPrefix(line, replyOK+" "), nil
	case strings.HasPrefix(line, replyErr+" "):
		return "", fmt.Errorf("%w: %s", errors.ErrLoginRejected, strings.TrimPrefix(line, replyErr+" "))
	default:
		return "", fmt.Errorf("%w: unexpected reply %q", errors.ErrLoginRejected, line)
	}
}

func formatRoster(names []string) string {
	return rosterPrefix + strings.Join(names, ", ")
}

// ParseRoster extracts the display names from a roster announcement,
// or nil when the frame is not one.
func ParseRoster(line string) []string {
	i := strings.Index(line, systemTag+rosterPrefix)
	if i < 0 {
		return nil
	}
	raw := line[i+len(systemTag)+len(rosterPrefix):]
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ", ")
}
