package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"autilance/audit"
	"autilance/auth"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository is the dispute row store.
type Repository interface {
	GetSnapshot(ctx context.Context, disputeID string) (Snapshot, error)
	LockSnapshot(ctx context.Context, tx pgx.Tx, disputeID string) (Snapshot, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, disputeID string, next Status) (Record, error)
	List(ctx context.Context, filters Filters) ([]Record, int, error)
}

// ReadModel assembles the full dispute view outside the workflow.
type ReadModel interface {
	Detail(ctx context.Context, disputeID string) (Detail, error)
}

type AuditAppender interface {
	Append(ctx context.Context, tx pgx.Tx, entry audit.Entry) (audit.Entry, error)
}

type OutboxWriter interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// TransitionRecorder observes workflow outcomes, typically for metrics.
type TransitionRecorder interface {
	ObserveTransition(action, outcome string)
}

const (
	OutcomeSucceeded = "succeeded"
	OutcomeRejected  = "rejected"
	OutcomeForbidden = "forbidden"
	OutcomeNotFound  = "not_found"
	OutcomeFailed    = "failed"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service is the dispute workflow engine.
type Service struct {
	pool     TxBeginner
	repo     Repository
	reads    ReadModel
	audit    AuditAppender
	outbox   OutboxWriter
	recorder TransitionRecorder
	log      zerolog.Logger
}

func NewService(pool TxBeginner, repo Repository, reads ReadModel, auditor AuditAppender, outbox OutboxWriter) *Service {
	return &Service{
		pool:   pool,
		repo:   repo,
		reads:  reads,
		audit:  auditor,
		outbox: outbox,
		log:    zerolog.Nop(),
	}
}

func (s *Service) WithLogger(log zerolog.Logger) *Service {
	s.log = log.With().Str("component", "dispute").Logger()
	return s
}

func (s *Service) WithRecorder(rec TransitionRecorder) *Service {
	s.recorder = rec
	return s
}

// Apply dispatches a parsed moderation action and returns the dispute as
// assembled by the read model once the change has committed.
func (s *Service) Apply(ctx context.Context, disputeID string, action Action, p auth.Principal) (Detail, error) {
	switch action {
	case ActionEscalate:
		if _, err := s.Escalate(ctx, disputeID, p); err != nil {
			return Detail{}, err
		}
	default:
		return Detail{}, ErrInvalidAction
	}

	detail, err := s.reads.Detail(ctx, disputeID)
	if err != nil {
		return Detail{}, fmt.Errorf("dispute: reload after %s: %w", action, err)
	}
	return detail, nil
}

// Escalate moves the dispute to escalated. The status update, the audit entry
// and the outbox message share one transaction; the row stays locked from the
// legality check until commit.
func (s *Service) Escalate(ctx context.Context, disputeID string, p auth.Principal) (Record, error) {
	action := string(ActionEscalate)
	if p.ID == "" {
		return Record{}, ErrUnauthenticated
	}
	// Escalation rights do not depend on the dispute's parties, so the gate
	// runs before the row is read.
	if !Classify(p, Snapshot{ID: disputeID}).CanEscalate() {
		s.observe(action, OutcomeForbidden)
		return Record{}, ErrUnauthorized
	}
	if disputeID == "" {
		s.observe(action, OutcomeNotFound)
		return Record{}, ErrNotFound
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		s.observe(action, OutcomeFailed)
		return Record{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	snap, err := s.repo.LockSnapshot(ctx, tx, disputeID)
	if err != nil {
		s.observe(action, outcomeFor(err))
		return Record{}, err
	}
	if err := CanEscalate(snap.Status); err != nil {
		s.observe(action, OutcomeRejected)
		return Record{}, err
	}

	rec, err := s.repo.UpdateStatus(ctx, tx, disputeID, StatusEscalated)
	if err != nil {
		s.observe(action, OutcomeFailed)
		return Record{}, err
	}

	if _, err := s.audit.Append(ctx, tx, audit.Entry{
		Action:  audit.ActionDisputeEscalated,
		ActorID: p.ID,
		Payload: map[string]any{"disputeId": disputeID},
	}); err != nil {
		s.observe(action, OutcomeFailed)
		return Record{}, err
	}

	if s.outbox != nil {
		payload := map[string]any{
			"dispute_id":      disputeID,
			"previous_status": string(snap.Status),
			"status":          string(rec.Status),
			"actor_id":        p.ID,
		}
		if err := s.outbox.Enqueue(ctx, tx, OutboxTopicDisputeEscalated, payload); err != nil {
			s.observe(action, OutcomeFailed)
			return Record{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		s.observe(action, OutcomeFailed)
		return Record{}, fmt.Errorf("dispute: commit escalate: %w", err)
	}

	s.observe(action, OutcomeSucceeded)
	s.log.Info().
		Str("dispute_id", disputeID).
		Str("actor_id", p.ID).
		Str("actor_role", string(p.Role)).
		Str("previous_status", string(snap.Status)).
		Msg("dispute escalated")
	return rec, nil
}

// View returns the dispute detail to contract participants and moderators.
func (s *Service) View(ctx context.Context, disputeID string, p auth.Principal) (Detail, error) {
	if p.ID == "" {
		return Detail{}, ErrUnauthenticated
	}
	if disputeID == "" {
		return Detail{}, ErrNotFound
	}

	snap, err := s.repo.GetSnapshot(ctx, disputeID)
	if err != nil {
		return Detail{}, err
	}
	if !Classify(p, snap).CanView() {
		return Detail{}, ErrUnauthorized
	}
	return s.reads.Detail(ctx, disputeID)
}

// List returns the moderation queue.
func (s *Service) List(ctx context.Context, filters Filters, p auth.Principal) (ListResult, error) {
	if p.ID == "" {
		return ListResult{}, ErrUnauthenticated
	}
	if !p.Role.CanModerate() {
		return ListResult{}, ErrUnauthorized
	}
	if filters.Status != "" && !filters.Status.Valid() {
		return ListResult{}, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, filters.Status)
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > maxPageSize {
		filters.PageSize = defaultPageSize
	}

	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total}, nil
}

func (s *Service) observe(action, outcome string) {
	if s.recorder != nil {
		s.recorder.ObserveTransition(action, outcome)
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInvalidTransition):
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}
