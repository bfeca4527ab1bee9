package errors

import "fmt"

var (
	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrNameTaken     = fmt.Errorf("display name already taken")
	ErrInvalidName   = fmt.Errorf("invalid display name")
	ErrSlowConsumer  = fmt.Errorf("peer outbound buffer full")
	ErrSinkClosed    = fmt.Errorf("peer outbound sink closed")
	ErrLoginRejected = fmt.Errorf("login rejected by server")
	ErrEmptyWords    = fmt.Errorf("no words have been found")
)
