package services

import (
	"github.com/rs/zerolog"
)

// Event names published after successful state changes.
const (
	EventProductCreated  = "product.created"
	EventProductUpdated  = "product.updated"
	EventProductDeleted  = "product.deleted"
	EventProductPurged   = "product.purged"
	EventCategoryCreated = "category.created"
	EventCategoryUpdated = "category.updated"
	EventCategoryDeleted = "category.deleted"
	EventUserRegistered  = "user.registered"
)

// EventPublisher delivers domain events to a broker. *rabbitmq.Client
// satisfies it.
type EventPublisher interface {
	Publish(name string, payload interface{}) error
}

// publish never fails the caller: a broken broker only costs the event.
func publish(events EventPublisher, log zerolog.Logger, name string, payload interface{}) {
	if events == nil {
		return
	}
	if err := events.Publish(name, payload); err != nil {
		log.Warn().Err(err).Str("event", name).Msg("failed to publish event")
	}
}
