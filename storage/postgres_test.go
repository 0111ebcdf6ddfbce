package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

// stubTx satisfies pgx.Tx for the savepoint plumbing; anything beyond
// Begin/Commit/Rollback panics through the embedded nil interface.
type stubTx struct {
	pgx.Tx
	nested     *stubTx
	committed  bool
	rolledBack bool
}

func (t *stubTx) Begin(ctx context.Context) (pgx.Tx, error) {
	t.nested = &stubTx{}
	return t.nested, nil
}

func (t *stubTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *stubTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

func TestWithSavepointCommitsOnSuccess(t *testing.T) {
	outer := &stubTx{}
	sess := &Session{PostgresStore: &PostgresStore{db: outer}, tx: outer}

	var got *PostgresStore
	err := sess.WithSavepoint(context.Background(), func(st *PostgresStore) error {
		got = st
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outer.nested == nil || !outer.nested.committed {
		t.Error("nested transaction was not committed")
	}
	if got == nil || got.db != outer.nested {
		t.Error("callback store must run on the nested transaction")
	}
	if outer.committed || outer.rolledBack {
		t.Error("outer transaction must stay open")
	}
}

func TestWithSavepointRollsBackFailedWrite(t *testing.T) {
	outer := &stubTx{}
	sess := &Session{PostgresStore: &PostgresStore{db: outer}, tx: outer}

	wantErr := errors.New("duplicate key")
	err := sess.WithSavepoint(context.Background(), func(st *PostgresStore) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the write error back, got %v", err)
	}
	if !outer.nested.rolledBack || outer.nested.committed {
		t.Error("failed savepoint must roll back, not commit")
	}
	// the enclosing transaction is untouched and can keep writing
	if outer.committed || outer.rolledBack {
		t.Error("outer transaction must stay open after a failed savepoint")
	}
}
