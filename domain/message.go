// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a Message on the wire and in the fan-out pipeline.
type Kind int

const (
	KindChat Kind = iota
	KindJoin
	KindLeave
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindJoin:
		return "join"
	case KindLeave:
		return "leave"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Message represents an immutable chat event.
// SenderName is a snapshot taken at publish time: a sender rename (not
// supported today) would never retroactively alter delivered history.
type Message struct {
	ID         uuid.UUID // unique identifier
	SenderID   uuid.UUID
	SenderName string
	Body       string
	Kind       Kind
	CreatedAt  time.Time
}

// NewChat builds a chat message from a session identity and a raw body.
func NewChat(senderID uuid.UUID, senderName, body string) Message {
	return Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		SenderName: senderName,
		Body:       strings.TrimSpace(body),
		Kind:       KindChat,
		CreatedAt:  time.Now().UTC(),
	}
}

// NewSystem builds a server-originated announcement (join, leave, notices).
func NewSystem(kind Kind, senderID uuid.UUID, senderName, body string) Message {
	return Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
		Kind:       kind,
		CreatedAt:  time.Now().UTC(),
	}
}

// Empty reports whether the message carries no displayable content.
func (m Message) Empty() bool {
	return strings.TrimSpace(m.Body) == ""
}
