package bridge

import "errors"

var (
	// ErrConnClosed is returned when sending on a connection that has
	// already been closed.
	ErrConnClosed = errors.New("bridge: connection closed")

	// ErrSendBufferFull is returned when a connection's outbound buffer is
	// full and the message was dropped.
	ErrSendBufferFull = errors.New("bridge: send buffer full")

	// ErrUnrecognizedMessage is returned by Decode for a JSON object that
	// matches none of the known inbound shapes.
	ErrUnrecognizedMessage = errors.New("bridge: unrecognized message shape")

	// ErrInputCanceled is returned to the executor when an input request
	// is abandoned because the connection went away.
	ErrInputCanceled = errors.New("bridge: input request canceled")

	// ErrNilExecutorPool is returned by NewServer when no executor pool is
	// configured.
	ErrNilExecutorPool = errors.New("bridge: executor pool is required")

	// ErrNilCache is returned by NewServer when no cache manager is
	// configured.
	ErrNilCache = errors.New("bridge: cache manager is required")
)
