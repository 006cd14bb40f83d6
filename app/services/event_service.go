package services

import (
	"encoding/json"
	"log/slog"

	"ingest-svc/app/domains"

	"github.com/nats-io/nats.go"
)

const (
	subjectBeacon = "ingest.beacon"
	subjectResult = "ingest.result"
)

// EventService publishes ingestion events for downstream consumers. It is
// best-effort: a nil service or a publish failure never fails the request
// that produced the event.
type EventService struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewEventService creates a new event service.
func NewEventService(conn *nats.Conn, logger *slog.Logger) *EventService {
	return &EventService{conn: conn, logger: logger}
}

// PublishBeacon announces an agent check-in.
func (s *EventService) PublishBeacon(agent *domains.Agent) {
	s.publish(subjectBeacon, agent)
}

// PublishResult announces a stored finding.
func (s *EventService) PublishResult(result *domains.Result) {
	s.publish(subjectResult, result)
}

func (s *EventService) publish(subject string, payload interface{}) {
	if s == nil || s.conn == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event", "subject", subject, "error", err)
		return
	}
	if err := s.conn.Publish(subject, data); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
