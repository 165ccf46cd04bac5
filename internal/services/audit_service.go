package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-blog/inkwell/internal/models"
	pkglogger "github.com/inkwell-blog/inkwell/pkg/logger"
	"github.com/inkwell-blog/inkwell/pkg/metrics"
)

// AuditRepository defines the interface for audit log persistence
type AuditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
}

// AuditEvent is the inbound shape of a security-relevant event before
// redaction and persistence
type AuditEvent struct {
	Action         string
	Status         string
	UserID         string
	IPAddress      string
	UserAgent      string
	Endpoint       string
	Method         string
	ResponseStatus int
	LatencyMs      int64
	Details        map[string]interface{}
}

// AuditService records security events without ever blocking or failing
// the request path. Events are handed to a buffered channel and written by
// a single background goroutine; a full buffer drops the entry and reports
// it operationally.
type AuditService struct {
	repo   AuditRepository
	logger *slog.Logger
	events chan AuditEvent
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewAuditService creates an audit service with the given buffer size
func NewAuditService(repo AuditRepository, logger *slog.Logger, bufferSize int) *AuditService {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	s := &AuditService{
		repo:   repo,
		logger: logger,
		events: make(chan AuditEvent, bufferSize),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Record hands off an event for asynchronous persistence. It never blocks:
// when the buffer is full the event is dropped and surfaced to the
// operational log.
func (s *AuditService) Record(event AuditEvent) {
	select {
	case s.events <- event:
	default:
		metrics.AuditDropped.Inc()
		s.logger.Error("audit buffer full, entry dropped",
			slog.String("action", event.Action),
			slog.String("status", event.Status))
	}
}

// Close drains buffered events and stops the writer. Call during shutdown.
func (s *AuditService) Close() {
	close(s.done)
	s.wg.Wait()
}

func (s *AuditService) run() {
	defer s.wg.Done()

	for {
		select {
		case event := <-s.events:
			s.write(event)
		case <-s.done:
			// Drain whatever is still buffered before exiting
			for {
				select {
				case event := <-s.events:
					s.write(event)
				default:
					return
				}
			}
		}
	}
}

func (s *AuditService) write(event AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := &models.AuditLog{
		Action:  event.Action,
		Status:  event.Status,
		Details: pkglogger.RedactDetails(event.Details),
	}

	if event.UserID != "" {
		if id, err := uuid.Parse(event.UserID); err == nil {
			entry.UserID = &id
		}
	}
	if event.IPAddress != "" {
		entry.IPAddress = &event.IPAddress
	}
	if event.UserAgent != "" {
		entry.UserAgent = &event.UserAgent
	}
	if event.Endpoint != "" {
		entry.Endpoint = &event.Endpoint
	}
	if event.Method != "" {
		entry.Method = &event.Method
	}
	if event.ResponseStatus != 0 {
		entry.ResponseStatus = &event.ResponseStatus
	}
	if event.LatencyMs != 0 {
		entry.LatencyMs = &event.LatencyMs
	}

	if _, err := s.repo.Create(ctx, entry); err != nil {
		// Best effort only: a failed audit write never propagates to the
		// user-facing flow
		s.logger.Error("failed to write audit entry",
			slog.String("action", event.Action),
			slog.Any("error", err))
	}
}
