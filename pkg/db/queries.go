package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("db: not found")

// InsertOrderRecord writes a freshly submitted order.
func (d *Database) InsertOrderRecord(ctx context.Context, r *OrderRecord) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO order_history (
			id, symbol, code, action, quantity, price_type, price, status,
			order_id, seqno, ordno, fill_status, fill_quantity, fill_price,
			cancel_quantity, error_message, simulation, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`,
		r.ID, r.Symbol, r.Code, r.Action, r.Quantity, r.PriceType, r.Price, r.Status,
		r.OrderID, r.Seqno, r.Ordno, r.FillStatus, r.FillQuantity, r.FillPrice,
		r.CancelQuantity, r.ErrorMessage, boolToInt(r.Simulation),
	)
	if err != nil {
		return fmt.Errorf("insert order record: %w", err)
	}
	return nil
}

// UpdateOrderFill updates the fill columns after a status poll.
func (d *Database) UpdateOrderFill(ctx context.Context, id, status, fillStatus string, fillQty int, fillPrice float64, cancelQty int) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE order_history
		SET status = ?, fill_status = ?, fill_quantity = ?, fill_price = ?,
		    cancel_quantity = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, fillStatus, fillQty, fillPrice, cancelQty, id)
	if err != nil {
		return fmt.Errorf("update order fill: %w", err)
	}
	return nil
}

// MarkOrderFailed records a rejection or verification failure.
func (d *Database) MarkOrderFailed(ctx context.Context, id, errMsg string) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE order_history
		SET status = 'failed', error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, errMsg, id)
	if err != nil {
		return fmt.Errorf("mark order failed: %w", err)
	}
	return nil
}

// GetOrderRecord fetches one order by internal id.
func (d *Database) GetOrderRecord(ctx context.Context, id string) (*OrderRecord, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, symbol, code, action, quantity, price_type, price, status,
		       order_id, seqno, ordno, fill_status, fill_quantity, fill_price,
		       cancel_quantity, error_message, simulation, created_at, updated_at
		FROM order_history WHERE id = ?
	`, id)
	return scanOrderRecord(row)
}

// RecentOrders lists the most recent orders, newest first.
func (d *Database) RecentOrders(ctx context.Context, limit int) ([]*OrderRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, symbol, code, action, quantity, price_type, price, status,
		       order_id, seqno, ordno, fill_status, fill_quantity, fill_price,
		       cancel_quantity, error_message, simulation, created_at, updated_at
		FROM order_history ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent orders: %w", err)
	}
	defer rows.Close()

	var out []*OrderRecord
	for rows.Next() {
		r, err := scanOrderRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrderRecord(row rowScanner) (*OrderRecord, error) {
	r := &OrderRecord{}
	var sim int
	err := row.Scan(
		&r.ID, &r.Symbol, &r.Code, &r.Action, &r.Quantity, &r.PriceType, &r.Price, &r.Status,
		&r.OrderID, &r.Seqno, &r.Ordno, &r.FillStatus, &r.FillQuantity, &r.FillPrice,
		&r.CancelQuantity, &r.ErrorMessage, &sim, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan order record: %w", err)
	}
	r.Simulation = sim == 1
	return r, nil
}

// InsertQuotes writes a batch of ticks in one transaction.
func (d *Database) InsertQuotes(ctx context.Context, quotes []QuoteRow) error {
	if len(quotes) == 0 {
		return nil
	}
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin quote batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quote_history (symbol, close, volume, tick_time) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare quote insert: %w", err)
	}
	defer stmt.Close()

	for _, q := range quotes {
		if _, err := stmt.ExecContext(ctx, q.Symbol, q.Close, q.Volume, q.TickTime); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert quote: %w", err)
		}
	}
	return tx.Commit()
}

// SaveState upserts a named state snapshot (serialized JSON).
func (d *Database) SaveState(ctx context.Context, name, stateJSON string) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO strategy_states (name, state_data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			state_data = excluded.state_data,
			updated_at = CURRENT_TIMESTAMP
	`, name, stateJSON)
	if err != nil {
		return fmt.Errorf("save state %s: %w", name, err)
	}
	return nil
}

// LoadState reads a named state snapshot. Snapshots older than maxAge are
// treated as absent so a long-dead process does not resume stale positions.
func (d *Database) LoadState(ctx context.Context, name string, maxAge time.Duration) (string, error) {
	var data string
	var updatedAt time.Time
	err := d.DB.QueryRowContext(ctx, `
		SELECT state_data, updated_at FROM strategy_states WHERE name = ?
	`, name).Scan(&data, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load state %s: %w", name, err)
	}
	if maxAge > 0 && time.Since(updatedAt) > maxAge {
		return "", ErrNotFound
	}
	return data, nil
}

// UpsertRiskMetrics persists the aggregated daily risk row.
func (d *Database) UpsertRiskMetrics(ctx context.Context, m RiskMetricsRow) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO risk_metrics (date, daily_pnl, daily_trades, halted, halt_reason)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			daily_pnl = excluded.daily_pnl,
			daily_trades = excluded.daily_trades,
			halted = excluded.halted,
			halt_reason = excluded.halt_reason
	`, m.Date, m.DailyPnL, m.DailyTrades, boolToInt(m.Halted), m.HaltReason)
	if err != nil {
		return fmt.Errorf("upsert risk metrics: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
