package dispatcher

import (
	"context"

	"github.com/garyjia/lease-agent/internal/domain/event"
)

// Handler reacts to a lease request event
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registered handler
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}
