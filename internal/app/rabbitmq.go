package app

import (
	"log/slog"

	"zibana/internal/config"
	"zibana/internal/events"
)

// NewEventPublisher connects to RabbitMQ when enabled. Without a broker,
// ride events are dropped and only local notifications are sent.
func NewEventPublisher(cfg config.RabbitMQConfig, log *slog.Logger) (events.Publisher, func(), error) {
	if !cfg.Enabled {
		log.Info("ride event publishing disabled")
		return events.NopPublisher{}, func() {}, nil
	}

	pub, err := events.NewRabbitPublisher(cfg.URL, log)
	if err != nil {
		return nil, nil, err
	}
	return pub, func() { _ = pub.Close() }, nil
}
