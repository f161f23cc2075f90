package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hp-booking/internal/event"
	"hp-booking/internal/model"
	"hp-booking/pkg/apierror"
)

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

const (
	auditStatusSuccess = "success"
	auditStatusFailure = "failure"
)

type AuditService struct {
	store  AuditStore
	logger *slog.Logger
}

func NewAuditService(store AuditStore, logger *slog.Logger) *AuditService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditService{store: store, logger: logger}
}

// Run persists auth events until ctx is done or events is closed.
func (s *AuditService) Run(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.Record(ctx, e)
		}
	}
}

// Record writes one event. Failures are logged and never reach the request
// that produced the event.
func (s *AuditService) Record(ctx context.Context, e event.Event) {
	if s == nil || s.store == nil {
		return
	}

	entry := EntryFromEvent(e)
	if err := s.store.Log(ctx, entry); err != nil {
		s.logger.Error("audit write failed", "action", entry.Action, "error", err)
	}
}

// EntryFromEvent maps an auth event to its audit row.
func EntryFromEvent(e event.Event) model.AuditEntry {
	status := auditStatusSuccess
	if e.Type == event.TypeLoginFailed || e.Type == event.TypeRegisterFailed {
		status = auditStatusFailure
	}

	return model.AuditEntry{
		Action:     string(e.Type),
		OccurredAt: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Actor: model.AuditActor{
			UserID: e.ActorID,
			Email:  e.Email,
			Role:   e.Role,
			IP:     e.IP,
		},
		Status:   status,
		Resource: "/auth",
		Error:    e.Reason,
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	from, err := parseOptionalAuditTime(query.From)
	if err != nil {
		return nil, model.Meta{}, apierror.New(apierror.CodeBadRequest, "invalid 'from' datetime format", query.From, http.StatusBadRequest)
	}
	to, err := parseOptionalAuditTime(query.To)
	if err != nil {
		return nil, model.Meta{}, apierror.New(apierror.CodeBadRequest, "invalid 'to' datetime format", query.To, http.StatusBadRequest)
	}

	query.From = formatOptionalAuditTime(from)
	query.To = formatOptionalAuditTime(to)

	return s.store.Query(ctx, query)
}

func parseOptionalAuditTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}

	if value, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return value.UTC(), nil
	}
	value, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, err
	}
	return value.UTC(), nil
}

func formatOptionalAuditTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
