package database

import (
	"context"
	"database/sql"
	"fmt"

	"mini-shop/order-service/saga"
)

const sagaStatusRunning = "RUNNING"

// SagaJournal records order placement workflows in Postgres: one order_sagas
// row per workflow and one order_saga_steps row per transition.
type SagaJournal struct {
	db *sql.DB
}

func NewSagaJournal(db *sql.DB) *SagaJournal {
	return &SagaJournal{db: db}
}

func (j *SagaJournal) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS order_sagas (
			saga_id UUID PRIMARY KEY,
			order_id BIGINT NOT NULL,
			user_id TEXT NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL,
			step TEXT NOT NULL,
			reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS order_saga_steps (
			id BIGSERIAL PRIMARY KEY,
			saga_id UUID NOT NULL REFERENCES order_sagas(saga_id) ON DELETE CASCADE,
			step TEXT NOT NULL,
			detail TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (j *SagaJournal) Start(ctx context.Context, wf *saga.Workflow) error {
	return j.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_sagas (saga_id, order_id, user_id, amount, status, step)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			wf.ID.String(), wf.Order.ID, wf.Order.UserID, wf.Order.TotalAmount, sagaStatusRunning, string(wf.Step),
		); err != nil {
			return fmt.Errorf("insert saga: %w", err)
		}
		return addStep(ctx, tx, wf, "")
	})
}

func (j *SagaJournal) Step(ctx context.Context, wf *saga.Workflow, detail string) error {
	return j.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE order_sagas
			SET step = $2, updated_at = NOW()
			WHERE saga_id = $1`,
			wf.ID.String(), string(wf.Step),
		); err != nil {
			return fmt.Errorf("update saga step: %w", err)
		}
		return addStep(ctx, tx, wf, detail)
	})
}

// Finish stores the terminal order status and the failure reason, if any.
func (j *SagaJournal) Finish(ctx context.Context, wf *saga.Workflow) error {
	return j.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE order_sagas
			SET step = $2, status = $3, reason = NULLIF($4, ''), updated_at = NOW()
			WHERE saga_id = $1`,
			wf.ID.String(), string(wf.Step), string(wf.Order.Status), wf.Reason,
		); err != nil {
			return fmt.Errorf("finish saga: %w", err)
		}
		return addStep(ctx, tx, wf, string(wf.Order.Status))
	})
}

func addStep(ctx context.Context, tx *sql.Tx, wf *saga.Workflow, detail string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_saga_steps (saga_id, step, detail)
		VALUES ($1, $2, NULLIF($3, ''))`,
		wf.ID.String(), string(wf.Step), detail,
	); err != nil {
		return fmt.Errorf("insert saga step: %w", err)
	}
	return nil
}

func (j *SagaJournal) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
