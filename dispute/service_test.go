package dispute

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"autilance/audit"
	"autilance/auth"
)

var (
	admin     = auth.Principal{ID: "admin-1", Role: auth.RoleAdmin}
	moderator = auth.Principal{ID: "mod-1", Role: auth.RoleModerator}
	client    = auth.Principal{ID: "client-1", Role: auth.RoleUser}
	stranger  = auth.Principal{ID: "user-9", Role: auth.RoleUser}
)

func TestEscalate_FromOpenAndInProgress(t *testing.T) {
	for _, start := range []Status{StatusOpen, StatusInProgress} {
		for _, actor := range []auth.Principal{admin, moderator} {
			h := newHarness(map[string]Status{"DIS-003": start})

			rec, err := h.svc.Escalate(context.Background(), "DIS-003", actor)
			if err != nil {
				t.Fatalf("%s by %s: unexpected error: %v", start, actor.Role, err)
			}
			if rec.Status != StatusEscalated {
				t.Fatalf("%s by %s: expected escalated, got %s", start, actor.Role, rec.Status)
			}
			if got := h.store.status("DIS-003"); got != StatusEscalated {
				t.Fatalf("%s by %s: store holds %s", start, actor.Role, got)
			}
			if len(h.store.audit) != 1 {
				t.Fatalf("%s by %s: expected one audit entry, got %d", start, actor.Role, len(h.store.audit))
			}
			entry := h.store.audit[0]
			if entry.Action != audit.ActionDisputeEscalated || entry.ActorID != actor.ID || entry.Payload["disputeId"] != "DIS-003" {
				t.Fatalf("unexpected audit entry: %+v", entry)
			}
			if len(h.store.outbox) != 1 || h.store.outbox[0] != OutboxTopicDisputeEscalated {
				t.Fatalf("expected one outbox message, got %v", h.store.outbox)
			}
			if !h.pool.last.committed {
				t.Fatal("expected transaction commit")
			}
			if h.recorder.count(OutcomeSucceeded) != 1 {
				t.Fatalf("expected succeeded observation, got %v", h.recorder.outcomes)
			}
		}
	}
}

func TestEscalate_AlreadyEscalatedIsRejected(t *testing.T) {
	h := newHarness(map[string]Status{"DIS-001": StatusEscalated})

	_, err := h.svc.Escalate(context.Background(), "DIS-001", moderator)
	if !errors.Is(err, ErrAlreadyEscalated) || !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrAlreadyEscalated, got %v", err)
	}
	if h.store.status("DIS-001") != StatusEscalated {
		t.Fatal("status must remain escalated")
	}
	if len(h.store.audit) != 0 || len(h.store.outbox) != 0 {
		t.Fatalf("rejected escalation must not write audit or outbox: %v %v", h.store.audit, h.store.outbox)
	}
	if h.pool.last.committed || !h.pool.last.rolled {
		t.Fatal("expected rollback without commit")
	}
	if h.recorder.count(OutcomeRejected) != 1 {
		t.Fatalf("expected rejected observation, got %v", h.recorder.outcomes)
	}
}

func TestEscalate_TerminalStatusesAreRejected(t *testing.T) {
	cases := map[Status]error{
		StatusResolved: ErrDisputeResolved,
		StatusClosed:   ErrDisputeClosed,
	}
	for status, want := range cases {
		h := newHarness(map[string]Status{"DIS-002": status})

		_, err := h.svc.Escalate(context.Background(), "DIS-002", admin)
		if !errors.Is(err, want) {
			t.Fatalf("%s: expected %v, got %v", status, want, err)
		}
		if h.store.status("DIS-002") != status {
			t.Fatalf("%s: status changed to %s", status, h.store.status("DIS-002"))
		}
		if len(h.store.audit) != 0 {
			t.Fatalf("%s: unexpected audit entries", status)
		}
	}
}

func TestEscalate_TwiceSucceedsThenFails(t *testing.T) {
	h := newHarness(map[string]Status{"DIS-003": StatusOpen})

	if _, err := h.svc.Escalate(context.Background(), "DIS-003", admin); err != nil {
		t.Fatalf("first escalate: %v", err)
	}
	if _, err := h.svc.Escalate(context.Background(), "DIS-003", admin); !errors.Is(err, ErrAlreadyEscalated) {
		t.Fatalf("second escalate: expected ErrAlreadyEscalated, got %v", err)
	}
	if len(h.store.audit) != 1 {
		t.Fatalf("expected exactly one audit entry, got %d", len(h.store.audit))
	}
}

func TestEscalate_RequiresModeratorBeforeLookup(t *testing.T) {
	h := newHarness(map[string]Status{"DIS-003": StatusOpen})

	if _, err := h.svc.Escalate(context.Background(), "DIS-003", client); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := h.svc.Escalate(context.Background(), "missing", stranger); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown dispute, got %v", err)
	}
	if h.pool.begins != 0 {
		t.Fatalf("expected no transaction for unauthorized caller, got %d", h.pool.begins)
	}
	if _, err := h.svc.Escalate(context.Background(), "DIS-003", auth.Principal{}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestEscalate_NotFound(t *testing.T) {
	h := newHarness(nil)

	if _, err := h.svc.Escalate(context.Background(), "DIS-404", admin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if h.recorder.count(OutcomeNotFound) != 1 {
		t.Fatalf("expected not_found observation, got %v", h.recorder.outcomes)
	}
}

func TestEscalate_AuditFailureRollsBackStatus(t *testing.T) {
	h := newHarness(map[string]Status{"DIS-003": StatusOpen})
	h.auditor.err = errors.New("audit insert failed")

	if _, err := h.svc.Escalate(context.Background(), "DIS-003", admin); err == nil {
		t.Fatal("expected error when audit write fails")
	}
	if h.store.status("DIS-003") != StatusOpen {
		t.Fatalf("status must not change without an audit entry, got %s", h.store.status("DIS-003"))
	}
	if h.pool.last.committed {
		t.Fatal("transaction must not commit")
	}
	if h.recorder.count(OutcomeFailed) != 1 {
		t.Fatalf("expected failed observation, got %v", h.recorder.outcomes)
	}
}

func TestEscalate_BeginFailure(t *testing.T) {
	h := newHarness(map[string]Status{"DIS-003": StatusOpen})
	h.pool.err = errors.New("pool exhausted")

	if _, err := h.svc.Escalate(context.Background(), "DIS-003", admin); err == nil {
		t.Fatal("expected begin error")
	}
}

func TestApply_DispatchesEscalate(t *testing.T) {
	h := newHarness(map[string]Status{"DIS-003": StatusOpen})

	detail, err := h.svc.Apply(context.Background(), "DIS-003", ActionEscalate, admin)
	if err != nil || detail.Status != StatusEscalated {
		t.Fatalf("expected escalated, got %+v %v", detail, err)
	}
	if h.reads.calls != 1 {
		t.Fatalf("expected the read model to assemble the response, got %d calls", h.reads.calls)
	}
	if _, err := h.svc.Apply(context.Background(), "DIS-003", Action("close"), admin); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}

func TestApply_RejectedEscalateSkipsReadModel(t *testing.T) {
	h := newHarness(map[string]Status{"DIS-002": StatusResolved})

	if _, err := h.svc.Apply(context.Background(), "DIS-002", ActionEscalate, moderator); !errors.Is(err, ErrDisputeResolved) {
		t.Fatalf("expected ErrDisputeResolved, got %v", err)
	}
	if _, err := h.svc.Apply(context.Background(), "DIS-002", ActionEscalate, client); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if h.reads.calls != 0 {
		t.Fatalf("read model consulted for a rejected action")
	}
}

func TestView_Authorization(t *testing.T) {
	h := newHarness(map[string]Status{"DIS-001": StatusOpen})

	for _, p := range []auth.Principal{client, {ID: "free-1", Role: auth.RoleUser}, moderator, admin} {
		detail, err := h.svc.View(context.Background(), "DIS-001", p)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", p.ID, err)
		}
		if detail.ID != "DIS-001" {
			t.Fatalf("%s: unexpected detail %+v", p.ID, detail)
		}
	}

	h.reads.calls = 0
	if _, err := h.svc.View(context.Background(), "DIS-001", stranger); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if h.reads.calls != 0 {
		t.Fatal("read model must not be consulted for unauthorized callers")
	}
	if _, err := h.svc.View(context.Background(), "DIS-404", admin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := h.svc.View(context.Background(), "DIS-001", auth.Principal{}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestList_ModeratorQueue(t *testing.T) {
	h := newHarness(map[string]Status{"DIS-001": StatusOpen, "DIS-002": StatusEscalated})

	if _, err := h.svc.List(context.Background(), Filters{}, client); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := h.svc.List(context.Background(), Filters{Status: "rejected"}, admin); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}

	res, err := h.svc.List(context.Background(), Filters{Status: StatusEscalated, PageSize: 500}, moderator)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 1 || len(res.Items) != 1 || res.Items[0].ID != "DIS-002" {
		t.Fatalf("unexpected list result: %+v", res)
	}
	if h.store.lastFilters.Page != 1 || h.store.lastFilters.PageSize != defaultPageSize {
		t.Fatalf("expected normalised paging, got %+v", h.store.lastFilters)
	}
}

type harness struct {
	svc      *Service
	store    *fakeStore
	pool     *fakePool
	auditor  *fakeAuditor
	reads    *fakeReads
	recorder *fakeRecorder
}

func newHarness(statuses map[string]Status) *harness {
	store := &fakeStore{records: make(map[string]Record)}
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	for id, status := range statuses {
		store.records[id] = Record{
			ID:           id,
			ContractID:   "CON-" + id,
			FiledBy:      "client-1",
			Status:       status,
			ClientID:     "client-1",
			FreelancerID: "free-1",
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	h := &harness{
		store:    store,
		pool:     &fakePool{owner: store},
		auditor:  &fakeAuditor{},
		reads:    &fakeReads{store: store},
		recorder: &fakeRecorder{},
	}
	h.svc = NewService(h.pool, store, h.reads, h.auditor, &fakeOutbox{}).WithRecorder(h.recorder)
	return h
}

type fakeStore struct {
	records     map[string]Record
	audit       []audit.Entry
	outbox      []string
	lastFilters Filters
}

func (s *fakeStore) status(id string) Status { return s.records[id].Status }

func (s *fakeStore) GetSnapshot(_ context.Context, id string) (Snapshot, error) {
	rec, ok := s.records[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return rec.Snapshot(), nil
}

func (s *fakeStore) LockSnapshot(ctx context.Context, _ pgx.Tx, id string) (Snapshot, error) {
	return s.GetSnapshot(ctx, id)
}

func (s *fakeStore) UpdateStatus(_ context.Context, tx pgx.Tx, id string, next Status) (Record, error) {
	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Status = next
	ftx := tx.(*fakeTx)
	ftx.onCommit = append(ftx.onCommit, func() { s.records[id] = rec })
	return rec, nil
}

func (s *fakeStore) List(_ context.Context, filters Filters) ([]Record, int, error) {
	s.lastFilters = filters
	var out []Record
	for _, rec := range s.records {
		if filters.Status == "" || rec.Status == filters.Status {
			out = append(out, rec)
		}
	}
	return out, len(out), nil
}

type fakeReads struct {
	store *fakeStore
	calls int
}

func (f *fakeReads) Detail(_ context.Context, id string) (Detail, error) {
	f.calls++
	rec, ok := f.store.records[id]
	if !ok {
		return Detail{}, ErrNotFound
	}
	return Detail{ID: rec.ID, Status: rec.Status}, nil
}

type fakeAuditor struct {
	err error
}

func (f *fakeAuditor) Append(_ context.Context, tx pgx.Tx, entry audit.Entry) (audit.Entry, error) {
	if f.err != nil {
		return audit.Entry{}, f.err
	}
	ftx := tx.(*fakeTx)
	ftx.onCommit = append(ftx.onCommit, func() { ftx.store().audit = append(ftx.store().audit, entry) })
	return entry, nil
}

type fakeOutbox struct{}

func (fakeOutbox) Enqueue(_ context.Context, tx pgx.Tx, topic string, _ map[string]any) error {
	ftx := tx.(*fakeTx)
	ftx.onCommit = append(ftx.onCommit, func() { ftx.store().outbox = append(ftx.store().outbox, topic) })
	return nil
}

type fakeRecorder struct {
	outcomes []string
}

func (f *fakeRecorder) ObserveTransition(_, outcome string) {
	f.outcomes = append(f.outcomes, outcome)
}

func (f *fakeRecorder) count(outcome string) int {
	n := 0
	for _, o := range f.outcomes {
		if o == outcome {
			n++
		}
	}
	return n
}

type fakePool struct {
	last   *fakeTx
	begins int
	err    error
	owner  *fakeStore
}

func (f *fakePool) Begin(context.Context) (pgx.Tx, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.begins++
	f.last = &fakeTx{pool: f}
	return f.last, nil
}

type fakeTx struct {
	pool      *fakePool
	onCommit  []func()
	rolled    bool
	committed bool
}

func (f *fakeTx) store() *fakeStore {
	return f.pool.owner
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	for _, fn := range f.onCommit {
		fn()
	}
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolled = true
	}
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
