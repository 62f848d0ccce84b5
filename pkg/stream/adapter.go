package stream

import "context"

// Handler is invoked once per decoded frame or queue message. A nil return
// marks the message as consumed; queue-backed adapters redeliver on error.
type Handler func(ctx context.Context, message []byte) error

// Adapter owns one physical connection lifecycle and delivers every inbound
// message to the registered handler. Listen blocks until ctx is cancelled.
type Adapter interface {
	Listen(ctx context.Context, handler Handler) error
}
