package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// recordingQuerier stands in for the transaction WithChatLock puts into
// the context.
type recordingQuerier struct {
	execs []string
}

func (r *recordingQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.execs = append(r.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (r *recordingQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (r *recordingQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func TestDBPrefersTransactionFromContext(t *testing.T) {
	s := &Store{}
	rq := &recordingQuerier{}

	ctx := context.WithValue(context.Background(), txKey{}, querier(rq))
	if got := s.db(ctx); got != querier(rq) {
		t.Fatalf("expected the context transaction, got %T", got)
	}
	if got := s.db(context.Background()); got != querier(s.pool) {
		t.Fatalf("expected the pool without a context transaction, got %T", got)
	}
}

func TestSetTerminStatusRunsOnContextTransaction(t *testing.T) {
	s := &Store{}
	rq := &recordingQuerier{}
	ctx := context.WithValue(context.Background(), txKey{}, querier(rq))

	if err := s.SetTerminStatus(ctx, uuid.New(), StatusConfirmed); err != nil {
		t.Fatal(err)
	}
	if len(rq.execs) != 1 {
		t.Fatalf("expected the update to run on the transaction, got %d execs", len(rq.execs))
	}
}
