//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// MessageSink is one session's outbound handle. Consume must never block
// longer than the sink's own backpressure policy allows.
type MessageSink interface {
	Consume(ctx context.Context, m domain.Message) error
}

// Peer is the read-only view of a registered session handed out by snapshots.
type Peer struct {
	ID   uuid.UUID
	Name string
	Sink MessageSink
}

type IRegistry interface {
	Register(name string, sink MessageSink) (uuid.UUID, error)
	Unregister(id uuid.UUID) bool
	SnapshotOthers(exclude uuid.UUID) []Peer
	Lookup(id uuid.UUID) (Peer, bool)
	Names() []string
	Len() int
}

type IBroadcaster interface {
	Publish(ctx context.Context, m domain.Message)
}
