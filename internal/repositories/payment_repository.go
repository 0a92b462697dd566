package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cinevault/backend/internal/db"
	"github.com/cinevault/backend/internal/models"
)

// PostgresPaymentRepository persists pro-plan payments and the recharge card
// providers they may draw on.
type PostgresPaymentRepository struct {
	pool db.Pool
}

// NewPostgresPaymentRepository constructs a payment repository backed by PostgreSQL.
func NewPostgresPaymentRepository(pool db.Pool) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{pool: pool}
}

const paymentColumns = `p.id, p.user_id, COALESCE(u.display_name, ''), p.total_amount, p.status, p.cards, p.created_at, p.updated_at`

func scanPayment(row pgx.Row) (models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.UserID, &p.UserName, &p.TotalAmount, &p.Status, &p.Cards, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func collectPayments(rows pgx.Rows) ([]models.Payment, error) {
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}

// ListProviders returns every configured recharge card provider.
func (r *PostgresPaymentRepository) ListProviders(ctx context.Context) ([]models.ServiceProvider, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT name, status, amounts FROM service_providers ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	providers := []models.ServiceProvider{}
	for rows.Next() {
		var p models.ServiceProvider
		if err := rows.Scan(&p.Name, &p.Status, &p.Amounts); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}

	return providers, nil
}

// Create stores a submitted payment.
func (r *PostgresPaymentRepository) Create(ctx context.Context, payment models.Payment) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO payments (id, user_id, total_amount, status, cards, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, payment.ID, payment.UserID, payment.TotalAmount, payment.Status, payment.Cards, payment.CreatedAt, payment.UpdatedAt)
	if err != nil {
		if mapped := mapError(err); isMapped(mapped) {
			return mapped
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

// ListPending returns payments awaiting review, oldest first.
func (r *PostgresPaymentRepository) ListPending(ctx context.Context) ([]models.Payment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+paymentColumns+`
        FROM payments p
        LEFT JOIN users u ON u.id = p.user_id
        WHERE p.status = 'pending'
        ORDER BY p.created_at ASC, p.id ASC
    `)
	if err != nil {
		return nil, fmt.Errorf("query pending payments: %w", err)
	}

	return collectPayments(rows)
}

// ListForUser returns the user's own payments, newest first.
func (r *PostgresPaymentRepository) ListForUser(ctx context.Context, userID string) ([]models.Payment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+paymentColumns+`
        FROM payments p
        LEFT JOIN users u ON u.id = p.user_id
        WHERE p.user_id = $1
        ORDER BY p.created_at DESC, p.id ASC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query user payments: %w", err)
	}

	return collectPayments(rows)
}

// Decide settles a pending payment. Approval completes the payment and grants
// the user the pro role; rejection fails it and counts the rejection against
// the user. Both changes commit together. Deciding a settled payment yields
// ErrConflict.
func (r *PostgresPaymentRepository) Decide(ctx context.Context, paymentID string, approve bool, at time.Time) (models.Payment, error) {
	var payment models.Payment
	at = at.UTC()

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var userID, status string
		err := tx.QueryRow(ctx, `SELECT user_id, status FROM payments WHERE id = $1 FOR UPDATE`, paymentID).Scan(&userID, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock payment: %w", err)
		}
		if status != models.PaymentPending {
			return ErrConflict
		}

		next := models.PaymentFailed
		if approve {
			next = models.PaymentCompleted
		}
		if _, err := tx.Exec(ctx, `UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`, paymentID, next, at); err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}

		if approve {
			_, err = tx.Exec(ctx, `
                UPDATE users
                SET role = CASE WHEN role = 'admin' THEN role ELSE 'pro' END,
                    pro_activated_at = $2,
                    updated_at = $2
                WHERE id = $1
            `, userID, at)
		} else {
			_, err = tx.Exec(ctx, `
                UPDATE users
                SET rejected_payments = rejected_payments + 1,
                    updated_at = $2
                WHERE id = $1
            `, userID, at)
		}
		if err != nil {
			return fmt.Errorf("update paying user: %w", err)
		}

		payment, err = scanPayment(tx.QueryRow(ctx, `
            SELECT `+paymentColumns+`
            FROM payments p
            LEFT JOIN users u ON u.id = p.user_id
            WHERE p.id = $1
        `, paymentID))
		if err != nil {
			return fmt.Errorf("reload payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Payment{}, err
	}

	return payment, nil
}
