package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pappertech/dispatch-core/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/dispatch?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	ensureSchema(t, db)
	return db
}

func ensureSchema(t *testing.T, db *sql.DB) {
	t.Helper()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR(36) PRIMARY KEY,
			order_number VARCHAR(32) NOT NULL UNIQUE,
			customer_id VARCHAR(36) NOT NULL,
			seller_id VARCHAR(36) NOT NULL,
			delivery_partner_id VARCHAR(36) NULL,
			status VARCHAR(16) NOT NULL,
			total_amount DECIMAL(12,2) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_id VARCHAR(36) NOT NULL,
			product_id VARCHAR(36) NOT NULL,
			quantity INT NOT NULL,
			unit_price DECIMAL(12,2) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_status_history (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_id VARCHAR(36) NOT NULL,
			status VARCHAR(16) NOT NULL,
			note VARCHAR(255) NOT NULL,
			created_at DATETIME(6) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id VARCHAR(36) PRIMARY KEY,
			seller_id VARCHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL,
			price DECIMAL(12,2) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id VARCHAR(36) NULL,
			action VARCHAR(64) NOT NULL,
			entity VARCHAR(64) NOT NULL,
			entity_id VARCHAR(36) NULL,
			metadata JSON NOT NULL,
			ip_address VARCHAR(64) NOT NULL,
			user_agent VARCHAR(255) NOT NULL,
			created_at DATETIME(6) NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
}

func testOrder() domain.Order {
	now := time.Now().Truncate(time.Microsecond)
	return domain.Order{
		ID:          uuid.NewString(),
		OrderNumber: domain.NewOrderNumber(),
		CustomerID:  "cust-1",
		SellerID:    "seller-1",
		Status:      domain.OrderStatusPending,
		TotalAmount: decimal.NewFromInt(280),
		Items: []domain.OrderItem{
			{ProductID: "prod-1", Quantity: 2, UnitPrice: decimal.NewFromInt(120)},
			{ProductID: "prod-2", Quantity: 1, UnitPrice: decimal.NewFromInt(40)},
		},
		StatusHistory: []domain.StatusHistoryEntry{
			{Status: domain.OrderStatusPending, Note: "Order placed", CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGetOrder(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	order := testOrder()

	if err := adapter.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	got, err := adapter.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Status != domain.OrderStatusPending {
		t.Errorf("expected PENDING, got %s", got.Status)
	}
	if !got.TotalAmount.Equal(order.TotalAmount) {
		t.Errorf("expected total %s, got %s", order.TotalAmount, got.TotalAmount)
	}
	if len(got.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(got.Items))
	}
	if len(got.StatusHistory) != 1 {
		t.Errorf("expected history length 1, got %d", len(got.StatusHistory))
	}
	if got.DeliveryPartnerID != "" {
		t.Errorf("expected empty delivery partner, got %q", got.DeliveryPartnerID)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)
	_, err := adapter.GetOrder(context.Background(), uuid.NewString())
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestUpdateOrderStatus_ConditionalUpdate(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	order := testOrder()
	if err := adapter.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	entry := domain.StatusHistoryEntry{
		Status:    domain.OrderStatusAccepted,
		Note:      "Order status changed to ACCEPTED",
		CreatedAt: time.Now().Truncate(time.Microsecond),
	}
	if err := adapter.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusPending, entry, ""); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// Repeating the same conditional update must lose: the order is no
	// longer PENDING.
	err := adapter.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusPending, entry, "")
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	got, err := adapter.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Status != domain.OrderStatusAccepted {
		t.Errorf("expected ACCEPTED, got %s", got.Status)
	}
	if len(got.StatusHistory) != 2 {
		t.Errorf("expected history length 2, got %d", len(got.StatusHistory))
	}
}

func TestUpdateOrderStatus_SetsDeliveryPartnerOnce(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	order := testOrder()
	order.Status = domain.OrderStatusReady
	if err := adapter.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	entry := domain.StatusHistoryEntry{
		Status:    domain.OrderStatusPickedUp,
		Note:      "Order status changed to PICKED_UP",
		CreatedAt: time.Now().Truncate(time.Microsecond),
	}
	if err := adapter.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusReady, entry, "partner-1"); err != nil {
		t.Fatalf("pickup: %v", err)
	}

	err := adapter.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusReady, entry, "partner-2")
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError for losing partner, got %v", err)
	}

	got, _ := adapter.GetOrder(ctx, order.ID)
	if got.DeliveryPartnerID != "partner-1" {
		t.Errorf("delivery partner overwritten: got %q", got.DeliveryPartnerID)
	}
}

func TestUpdateOrderStatus_UnknownOrder(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)
	entry := domain.StatusHistoryEntry{
		Status:    domain.OrderStatusAccepted,
		Note:      "",
		CreatedAt: time.Now(),
	}
	err := adapter.UpdateOrderStatus(context.Background(), uuid.NewString(), domain.OrderStatusPending, entry, "")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestAuditRecord_Insert(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)
	err := adapter.Record(context.Background(), domain.AuditRecord{
		UserID:    "user-1",
		Action:    "LOGIN_BLOCKED",
		Entity:    "SECURITY",
		Metadata:  map[string]any{"score": 100, "severity": "HIGH"},
		IPAddress: "1.2.3.4",
		UserAgent: "Googlebot/2.1",
		CreatedAt: time.Now().Truncate(time.Microsecond),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
}
