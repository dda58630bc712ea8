package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/onecoderchamps/kasir-app/internal/domain"
)

func TestVoidTransactionRestocksRetail(t *testing.T) {
	databaseURL := os.Getenv("KASIR_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set KASIR_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prd-void-it-%d", stamp)
	txID := fmt.Sprintf("tx-void-it-%d", stamp)
	idempotencyKey := fmt.Sprintf("idem-void-it-%d", stamp)
	outletID := "outlet-pusat"

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, txID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, outlet_id, name, price, commission, stock, active, created_at)
		VALUES ($1, $2, 'Produk Void IT', 60000, 6000, 10, true, now())
	`, productID, outletID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	retail := []domain.RetailLine{
		{
			LineID:     "line-1",
			ProductID:  productID,
			Name:       "Produk Void IT",
			Price:      60000,
			Commission: 6000,
			Qty:        2,
			ServedBy:   []string{"Ani"},
		},
	}
	retailJSON, err := json.Marshal(retail)
	if err != nil {
		t.Fatalf("marshal retail: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, outlet_id, invoice_number, date, cart, retail, payment_method,
			subtotal, total, cash_received, change, status,
			idempotency_key, cashier_username, created_at
		)
		VALUES (
			$1, $2, 'INV-VOID-IT', now(), '[]', $3, 'cash',
			120000, 120000, 150000, 30000, 'paid',
			$4, 'kasir', now()
		)
	`, txID, outletID, retailJSON, idempotencyKey); err != nil {
		t.Fatalf("insert transaction: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE products SET stock = stock - 2 WHERE id = $1
	`, productID); err != nil {
		t.Fatalf("decrement stock: %v", err)
	}

	at := time.Now().UTC()
	voided, err := s.VoidTransaction(ctx, txID, "integration test void", at)
	if err != nil {
		t.Fatalf("void transaction: %v", err)
	}
	if voided.Status != domain.TxStatusVoided {
		t.Fatalf("expected transaction status voided, got %s", voided.Status)
	}

	var stock int
	if err := s.db.QueryRowContext(ctx, `
		SELECT stock
		FROM products
		WHERE id = $1
	`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 10 {
		t.Fatalf("expected stock 10 after void restock, got %d", stock)
	}

	if _, err := s.VoidTransaction(ctx, txID, "second void", at); err == nil {
		t.Fatalf("expected error voiding an already voided transaction")
	}
}
