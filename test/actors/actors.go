package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"autilance/auth"
	"autilance/dispute"
	"autilance/test/infra"
)

// IDs is the growing set of dispute ids actors pick targets from.
type IDs struct {
	mu  sync.RWMutex
	ids []string
}

func NewIDs(ids ...string) *IDs {
	return &IDs{ids: append([]string(nil), ids...)}
}

func (s *IDs) Add(id string) {
	s.mu.Lock()
	s.ids = append(s.ids, id)
	s.mu.Unlock()
}

func (s *IDs) Random() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids[rand.Intn(len(s.ids))]
}

func (s *IDs) Snapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.ids...)
}

// Tally counts escalation attempts by result.
type Tally struct {
	Succeeded atomic.Int64
	Rejected  atomic.Int64
	Failed    atomic.Int64
}

// Escalator repeatedly escalates random disputes from ids through the real
// workflow. Rejections are expected under contention; connection failures
// caused by chaos are tolerated and counted.
func Escalator(ctx context.Context, svc *dispute.Service, moderator auth.Principal, ids *IDs, tally *Tally, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		id := ids.Random()
		_, err := svc.Escalate(ctx, id, moderator)
		switch {
		case err == nil:
			tally.Succeeded.Add(1)
		case errors.Is(err, dispute.ErrInvalidTransition):
			tally.Rejected.Add(1)
		case errors.Is(err, dispute.ErrUnauthorized), errors.Is(err, dispute.ErrNotFound):
			return fmt.Errorf("escalator %s: %w", id, err)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			tally.Failed.Add(1)
		}
		time.Sleep(time.Duration(5+rand.Intn(15)) * time.Millisecond)
	}
}

// Intruder attempts escalations as a regular user; any success is a breach.
func Intruder(ctx context.Context, svc *dispute.Service, user auth.Principal, ids *IDs, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		id := ids.Random()
		if _, err := svc.Escalate(ctx, id, user); !errors.Is(err, dispute.ErrUnauthorized) {
			return fmt.Errorf("intruder escalate %s: expected unauthorized, got %v", id, err)
		}
		if _, err := svc.View(ctx, id, user); err == nil {
			return fmt.Errorf("intruder viewed %s", id)
		}
		time.Sleep(time.Duration(20+rand.Intn(30)) * time.Millisecond)
	}
}

// Viewer reads dispute detail as a participant while escalations run.
func Viewer(ctx context.Context, svc *dispute.Service, participant auth.Principal, ids *IDs, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		id := ids.Random()
		if _, err := svc.View(ctx, id, participant); errors.Is(err, dispute.ErrUnauthorized) || errors.Is(err, dispute.ErrNotFound) {
			return fmt.Errorf("viewer %s: %w", id, err)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Filer keeps opening fresh disputes so escalators always have new targets.
func Filer(ctx context.Context, pool *pgxpool.Pool, f infra.Fixture, ids *IDs, stop <-chan struct{}) error {
	n := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		n++
		id := fmt.Sprintf("DIS-F%05d", n)
		status := "open"
		if rand.Intn(3) == 0 {
			status = "in-progress"
		}
		if err := infra.SeedDispute(ctx, pool, f, id, status); err == nil {
			ids.Add(id)
		}
		time.Sleep(time.Duration(50+rand.Intn(50)) * time.Millisecond)
	}
}

// OutboxWorker consumes pending outbox messages with SKIP LOCKED and marks
// them processed, or bumps attempts on simulated delivery failure.
func OutboxWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		rows, err := tx.Query(ctx, `SELECT id FROM outbox WHERE status='pending' ORDER BY created_at FOR UPDATE SKIP LOCKED LIMIT 10`)
		if err != nil {
			_ = tx.Rollback(ctx)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		ids := make([]string, 0, 10)
		for rows.Next() {
			var id string
			_ = rows.Scan(&id)
			ids = append(ids, id)
		}
		rows.Close()
		for _, id := range ids {
			if rand.Intn(10) == 0 {
				_, _ = tx.Exec(ctx, `UPDATE outbox SET attempts=attempts+1 WHERE id=$1`, id)
				continue
			}
			_, _ = tx.Exec(ctx, `UPDATE outbox SET status='processed' WHERE id=$1`, id)
		}
		_ = tx.Commit(ctx)
		time.Sleep(100 * time.Millisecond)
	}
}
