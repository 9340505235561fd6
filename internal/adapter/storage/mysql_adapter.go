package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pappertech/dispatch-core/internal/core/domain"
)

// MySQLAdapter implements the order repository, the product catalog view, and
// the audit sink against one database.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, customer_id, seller_id, status, total_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.OrderNumber, order.CustomerID, order.SellerID,
		order.Status, order.TotalAmount.String(), order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			VALUES (?, ?, ?, ?)`,
			order.ID, item.ProductID, item.Quantity, item.UnitPrice.String(),
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	for _, entry := range order.StatusHistory {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_status_history (order_id, status, note, created_at)
			VALUES (?, ?, ?, ?)`,
			order.ID, entry.Status, entry.Note, entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert status history: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var (
		o               domain.Order
		deliveryPartner sql.NullString
		total           string
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, order_number, customer_id, seller_id, delivery_partner_id, status, total_amount, created_at, updated_at
		FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.SellerID, &deliveryPartner,
		&o.Status, &total, &o.CreatedAt, &o.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	o.DeliveryPartnerID = deliveryPartner.String
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total amount: %w", err)
	}

	if o.Items, err = m.orderItems(ctx, id); err != nil {
		return nil, err
	}
	if o.StatusHistory, err = m.statusHistory(ctx, id); err != nil {
		return nil, err
	}

	return &o, nil
}

func (m *MySQLAdapter) orderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price
		FROM order_items WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var (
			item  domain.OrderItem
			price string
		)
		if err := rows.Scan(&item.ProductID, &item.Quantity, &price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse unit price: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) statusHistory(ctx context.Context, orderID string) ([]domain.StatusHistoryEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT status, note, created_at
		FROM order_status_history WHERE order_id = ?
		ORDER BY created_at ASC, id ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	var history []domain.StatusHistoryEntry
	for rows.Next() {
		var entry domain.StatusHistoryEntry
		if err := rows.Scan(&entry.Status, &entry.Note, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

// UpdateOrderStatus is the optimistic-lock path: the UPDATE is conditional on
// the order still holding expected, and zero affected rows means someone else
// got there first (or the order does not exist).
func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, id string, expected domain.OrderStatus, entry domain.StatusHistoryEntry, deliveryPartnerID string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var result sql.Result
	if deliveryPartnerID != "" {
		// delivery_partner_id is written exactly once; the IS NULL guard
		// keeps a late retry from ever overwriting the winner.
		result, err = tx.ExecContext(ctx, `
			UPDATE orders
			SET status = ?, delivery_partner_id = ?, updated_at = ?
			WHERE id = ? AND status = ? AND delivery_partner_id IS NULL`,
			entry.Status, deliveryPartnerID, entry.CreatedAt, id, expected,
		)
	} else {
		result, err = tx.ExecContext(ctx, `
			UPDATE orders
			SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			entry.Status, entry.CreatedAt, id, expected,
		)
	}
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("check order existence: %w", err)
		}
		return &domain.ConflictError{OrderID: id, Expected: expected}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, status, note, created_at)
		VALUES (?, ?, ?, ?)`,
		id, entry.Status, entry.Note, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	return tx.Commit()
}

// GetProducts resolves catalog snapshots for the given ids. Missing ids are
// absent from the result.
func (m *MySQLAdapter) GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}

	query := `SELECT id, seller_id, name, price FROM products WHERE id IN (?` +
		repeatPlaceholder(len(ids)-1) + `)`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		var (
			p     domain.Product
			price string
		)
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse product price: %w", err)
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

// Record appends one row to the audit log.
func (m *MySQLAdapter) Record(ctx context.Context, rec domain.AuditRecord) error {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	userID := sql.NullString{String: rec.UserID, Valid: rec.UserID != ""}
	entityID := sql.NullString{String: rec.EntityID, Valid: rec.EntityID != ""}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO audit_log (user_id, action, entity, entity_id, metadata, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, rec.Action, rec.Entity, entityID, string(metadata),
		rec.IPAddress, rec.UserAgent, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
