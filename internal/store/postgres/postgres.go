package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/onecoderchamps/kasir-app/internal/domain"
	"github.com/onecoderchamps/kasir-app/internal/store"
	"github.com/onecoderchamps/kasir-app/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS outlets (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	address TEXT NOT NULL DEFAULT '',
	latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
	radius_meters DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS categories (
	id TEXT PRIMARY KEY,
	outlet_id TEXT NOT NULL REFERENCES outlets(id),
	name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (outlet_id, name)
);

CREATE TABLE IF NOT EXISTS services (
	id TEXT PRIMARY KEY,
	outlet_id TEXT NOT NULL REFERENCES outlets(id),
	category_id TEXT REFERENCES categories(id),
	name TEXT NOT NULL,
	price BIGINT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	outlet_id TEXT NOT NULL REFERENCES outlets(id),
	name TEXT NOT NULL,
	price BIGINT NOT NULL,
	commission BIGINT NOT NULL DEFAULT 0,
	stock INTEGER NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS staff (
	id TEXT PRIMARY KEY,
	outlet_id TEXT NOT NULL REFERENCES outlets(id),
	name TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'terapis',
	shift TEXT NOT NULL DEFAULT '',
	photo_url TEXT,
	active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	outlet_id TEXT NOT NULL,
	invoice_number TEXT NOT NULL,
	date TIMESTAMPTZ NOT NULL,
	cart JSONB NOT NULL DEFAULT '[]',
	retail JSONB NOT NULL DEFAULT '[]',
	payment_method TEXT NOT NULL,
	subtotal BIGINT NOT NULL,
	total BIGINT NOT NULL,
	cash_received BIGINT NOT NULL DEFAULT 0,
	change BIGINT NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	void_reason TEXT,
	voided_at TIMESTAMPTZ,
	idempotency_key TEXT NOT NULL UNIQUE,
	cashier_username TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transactions_outlet_date ON transactions (outlet_id, date);

CREATE TABLE IF NOT EXISTS attendance (
	id TEXT PRIMARY KEY,
	outlet_id TEXT NOT NULL,
	staff_id TEXT NOT NULL,
	staff_name TEXT NOT NULL DEFAULT '',
	date TEXT NOT NULL,
	shift TEXT NOT NULL DEFAULT '',
	clock_in TIMESTAMPTZ NOT NULL,
	clock_out TIMESTAMPTZ,
	clock_in_photo_url TEXT,
	clock_out_photo_url TEXT,
	latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
	distance_meters DOUBLE PRECISION NOT NULL DEFAULT 0,
	minutes_late INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	denda BIGINT NOT NULL DEFAULT 0,
	UNIQUE (staff_id, date)
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	outlet_id TEXT NOT NULL,
	actor_username TEXT NOT NULL DEFAULT '',
	actor_role TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	entity_type TEXT NOT NULL DEFAULT '',
	entity_id TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_outlet_created ON audit_logs (outlet_id, created_at);

CREATE TABLE IF NOT EXISTS app_users (
	username TEXT PRIMARY KEY,
	password TEXT NOT NULL,
	role TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateOutlet(ctx context.Context, outlet domain.Outlet) (*domain.Outlet, error) {
	if strings.TrimSpace(outlet.Name) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if outlet.RadiusMeters < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if outlet.ID == "" {
		outlet.ID = xid.New("outlet")
	}
	if outlet.CreatedAt.IsZero() {
		outlet.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outlets (id, name, address, latitude, longitude, radius_meters, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, outlet.ID, outlet.Name, outlet.Address, outlet.Latitude, outlet.Longitude, outlet.RadiusMeters, outlet.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, err
	}

	created := outlet
	return &created, nil
}

func (s *Store) GetOutletByID(ctx context.Context, id string) (*domain.Outlet, error) {
	var outlet domain.Outlet
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, latitude, longitude, radius_meters, created_at
		FROM outlets
		WHERE id = $1
	`, id).Scan(&outlet.ID, &outlet.Name, &outlet.Address, &outlet.Latitude, &outlet.Longitude, &outlet.RadiusMeters, &outlet.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	outlet.CreatedAt = outlet.CreatedAt.UTC()
	return &outlet, nil
}

func (s *Store) ListOutlets(ctx context.Context) ([]domain.Outlet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, latitude, longitude, radius_meters, created_at
		FROM outlets
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	outlets := make([]domain.Outlet, 0, 8)
	for rows.Next() {
		var outlet domain.Outlet
		if err := rows.Scan(&outlet.ID, &outlet.Name, &outlet.Address, &outlet.Latitude, &outlet.Longitude, &outlet.RadiusMeters, &outlet.CreatedAt); err != nil {
			return nil, err
		}
		outlet.CreatedAt = outlet.CreatedAt.UTC()
		outlets = append(outlets, outlet)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return outlets, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.OutletID == "" || strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, outlet_id, name, created_at)
		VALUES ($1,$2,$3,$4)
	`, category.ID, category.OutletID, category.Name, category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, err
	}

	created := category
	return &created, nil
}

func (s *Store) ListCategories(ctx context.Context, outletID string) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, outlet_id, name, created_at
		FROM categories
		WHERE outlet_id = $1
		ORDER BY name ASC
	`, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.ID, &category.OutletID, &category.Name, &category.CreatedAt); err != nil {
			return nil, err
		}
		category.CreatedAt = category.CreatedAt.UTC()
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) CreateService(ctx context.Context, svc domain.Service) (*domain.Service, error) {
	if svc.OutletID == "" || strings.TrimSpace(svc.Name) == "" || svc.Price < 1 {
		return nil, store.ErrInvalidTransaction
	}
	if svc.ID == "" {
		svc.ID = xid.New("svc")
	}
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}
	svc.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (id, outlet_id, category_id, name, price, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, svc.ID, svc.OutletID, nullIfEmpty(svc.CategoryID), svc.Name, svc.Price, svc.Active, svc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, err
	}

	created := svc
	return &created, nil
}

func (s *Store) GetServiceByID(ctx context.Context, id string) (*domain.Service, error) {
	var svc domain.Service
	err := s.db.QueryRowContext(ctx, `
		SELECT id, outlet_id, COALESCE(category_id,''), name, price, active, created_at
		FROM services
		WHERE id = $1
	`, id).Scan(&svc.ID, &svc.OutletID, &svc.CategoryID, &svc.Name, &svc.Price, &svc.Active, &svc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	svc.CreatedAt = svc.CreatedAt.UTC()
	return &svc, nil
}

func (s *Store) UpdateService(ctx context.Context, svc domain.Service) (*domain.Service, error) {
	if svc.ID == "" || strings.TrimSpace(svc.Name) == "" || svc.Price < 1 {
		return nil, store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE services
		SET category_id = $2, name = $3, price = $4, active = $5
		WHERE id = $1
	`, svc.ID, nullIfEmpty(svc.CategoryID), svc.Name, svc.Price, svc.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetServiceByID(ctx, svc.ID)
}

func (s *Store) ListServices(ctx context.Context, outletID string) ([]domain.Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, outlet_id, COALESCE(category_id,''), name, price, active, created_at
		FROM services
		WHERE outlet_id = $1 AND active = true
		ORDER BY name ASC
	`, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := make([]domain.Service, 0, 32)
	for rows.Next() {
		var svc domain.Service
		if err := rows.Scan(&svc.ID, &svc.OutletID, &svc.CategoryID, &svc.Name, &svc.Price, &svc.Active, &svc.CreatedAt); err != nil {
			return nil, err
		}
		svc.CreatedAt = svc.CreatedAt.UTC()
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return services, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.OutletID == "" || strings.TrimSpace(product.Name) == "" || product.Price < 1 {
		return nil, store.ErrInvalidTransaction
	}
	if product.Commission < 0 || product.Stock < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, outlet_id, name, price, commission, stock, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, product.ID, product.OutletID, product.Name, product.Price, product.Commission, product.Stock, product.Active, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, outlet_id, name, price, commission, stock, active, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.OutletID, &product.Name, &product.Price, &product.Commission, &product.Stock, &product.Active, &product.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	product.CreatedAt = product.CreatedAt.UTC()
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || strings.TrimSpace(product.Name) == "" || product.Price < 1 {
		return nil, store.ErrInvalidTransaction
	}
	if product.Commission < 0 || product.Stock < 0 {
		return nil, store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, price = $3, commission = $4, stock = $5, active = $6
		WHERE id = $1
	`, product.ID, product.Name, product.Price, product.Commission, product.Stock, product.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) ListProducts(ctx context.Context, outletID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, outlet_id, name, price, commission, stock, active, created_at
		FROM products
		WHERE outlet_id = $1 AND active = true
		ORDER BY name ASC
	`, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.ID, &product.OutletID, &product.Name, &product.Price, &product.Commission, &product.Stock, &product.Active, &product.CreatedAt); err != nil {
			return nil, err
		}
		product.CreatedAt = product.CreatedAt.UTC()
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) DecrementStock(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
	`, productID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		_, getErr := s.GetProductByID(ctx, productID)
		if getErr != nil {
			return getErr
		}
		return store.ErrInsufficientStock
	}
	return nil
}

func (s *Store) CreateStaff(ctx context.Context, staff domain.Staff) (*domain.Staff, error) {
	if staff.OutletID == "" || strings.TrimSpace(staff.Name) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if staff.ID == "" {
		staff.ID = xid.New("stf")
	}
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = time.Now().UTC()
	}
	staff.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staff (id, outlet_id, name, role, shift, photo_url, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, staff.ID, staff.OutletID, staff.Name, staff.Role, staff.Shift, nullIfEmpty(staff.PhotoURL), staff.Active, staff.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, err
	}

	created := staff
	return &created, nil
}

func (s *Store) GetStaffByID(ctx context.Context, id string) (*domain.Staff, error) {
	var staff domain.Staff
	err := s.db.QueryRowContext(ctx, `
		SELECT id, outlet_id, name, role, shift, COALESCE(photo_url,''), active, created_at
		FROM staff
		WHERE id = $1
	`, id).Scan(&staff.ID, &staff.OutletID, &staff.Name, &staff.Role, &staff.Shift, &staff.PhotoURL, &staff.Active, &staff.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	staff.CreatedAt = staff.CreatedAt.UTC()
	return &staff, nil
}

func (s *Store) UpdateStaff(ctx context.Context, staff domain.Staff) (*domain.Staff, error) {
	if staff.ID == "" || strings.TrimSpace(staff.Name) == "" {
		return nil, store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE staff
		SET name = $2, role = $3, shift = $4, photo_url = $5, active = $6
		WHERE id = $1
	`, staff.ID, staff.Name, staff.Role, staff.Shift, nullIfEmpty(staff.PhotoURL), staff.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetStaffByID(ctx, staff.ID)
}

func (s *Store) ListStaff(ctx context.Context, outletID string) ([]domain.Staff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, outlet_id, name, role, shift, COALESCE(photo_url,''), active, created_at
		FROM staff
		WHERE outlet_id = $1 AND active = true
		ORDER BY name ASC
	`, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]domain.Staff, 0, 16)
	for rows.Next() {
		var staff domain.Staff
		if err := rows.Scan(&staff.ID, &staff.OutletID, &staff.Name, &staff.Role, &staff.Shift, &staff.PhotoURL, &staff.Active, &staff.CreatedAt); err != nil {
			return nil, err
		}
		staff.CreatedAt = staff.CreatedAt.UTC()
		members = append(members, staff)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Store) FindTransactionByIdempotency(ctx context.Context, key string) (*domain.Transaction, error) {
	return s.findTransaction(ctx, "idempotency_key", key)
}

func (s *Store) FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.findTransaction(ctx, "id", id)
}

func (s *Store) findTransaction(ctx context.Context, column string, value string) (*domain.Transaction, error) {
	if column != "id" && column != "idempotency_key" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	query := fmt.Sprintf(`
		SELECT id, outlet_id, invoice_number, date, cart, retail, payment_method,
			subtotal, total, cash_received, change, status, void_reason, voided_at,
			idempotency_key, cashier_username, created_at
		FROM transactions
		WHERE %s = $1
	`, column)

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var cartRaw []byte
	var retailRaw []byte
	var voidReason sql.NullString
	var voidedAt sql.NullTime

	err := row.Scan(
		&tx.ID,
		&tx.OutletID,
		&tx.InvoiceNumber,
		&tx.Date,
		&cartRaw,
		&retailRaw,
		&tx.PaymentMethod,
		&tx.Subtotal,
		&tx.Total,
		&tx.CashReceived,
		&tx.Change,
		&tx.Status,
		&voidReason,
		&voidedAt,
		&tx.IdempotencyKey,
		&tx.CashierUsername,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if voidReason.Valid {
		tx.VoidReason = voidReason.String
	}
	if voidedAt.Valid {
		at := voidedAt.Time.UTC()
		tx.VoidedAt = &at
	}
	tx.Date = tx.Date.UTC()
	tx.CreatedAt = tx.CreatedAt.UTC()
	if len(cartRaw) > 0 {
		if err := json.Unmarshal(cartRaw, &tx.Cart); err != nil {
			return nil, err
		}
	}
	if len(retailRaw) > 0 {
		if err := json.Unmarshal(retailRaw, &tx.Retail); err != nil {
			return nil, err
		}
	}
	return &tx, nil
}

func (s *Store) CreateCheckout(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.IdempotencyKey == "" {
		return nil, store.ErrInvalidTransaction
	}
	if len(tx.Cart) == 0 && len(tx.Retail) == 0 {
		return nil, store.ErrInvalidTransaction
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	for _, line := range tx.Retail {
		if line.Qty < 1 {
			return nil, store.ErrInvalidTransaction
		}
		var stock int
		err := pgTx.QueryRowContext(ctx, `
			SELECT stock
			FROM products
			WHERE id = $1 AND active = true
			FOR UPDATE
		`, line.ProductID).Scan(&stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("product %s unavailable", line.ProductID)
			}
			return nil, err
		}
		if stock < line.Qty {
			return nil, store.ErrInsufficientStock
		}
		_, err = pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $2
			WHERE id = $1
		`, line.ProductID, line.Qty)
		if err != nil {
			return nil, err
		}
	}

	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if tx.Date.IsZero() {
		tx.Date = tx.CreatedAt
	}
	if tx.Status == "" {
		tx.Status = domain.TxStatusPaid
	}

	cartJSON, err := json.Marshal(tx.Cart)
	if err != nil {
		return nil, err
	}
	retailJSON, err := json.Marshal(tx.Retail)
	if err != nil {
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, outlet_id, invoice_number, date, cart, retail, payment_method,
			subtotal, total, cash_received, change, status, void_reason, voided_at,
			idempotency_key, cashier_username, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, tx.ID, tx.OutletID, tx.InvoiceNumber, tx.Date, cartJSON, retailJSON, tx.PaymentMethod,
		tx.Subtotal, tx.Total, tx.CashReceived, tx.Change, tx.Status,
		nullIfEmpty(tx.VoidReason), nullTime(tx.VoidedAt), tx.IdempotencyKey, tx.CashierUsername, tx.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := s.FindTransactionByIdempotency(ctx, tx.IdempotencyKey)
			if lookupErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &tx, nil
}

func (s *Store) VoidTransaction(ctx context.Context, id string, reason string, at time.Time) (*domain.Transaction, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var status string
	var retailRaw []byte
	err = pgTx.QueryRowContext(ctx, `
		SELECT status, retail
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&status, &retailRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status != domain.TxStatusPaid {
		return nil, store.ErrInvalidTransaction
	}

	var retail []domain.RetailLine
	if len(retailRaw) > 0 {
		if err := json.Unmarshal(retailRaw, &retail); err != nil {
			return nil, err
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2, void_reason = $3, voided_at = $4
		WHERE id = $1 AND status = $5
	`, id, domain.TxStatusVoided, reason, at, domain.TxStatusPaid)
	if err != nil {
		return nil, err
	}

	for _, line := range retail {
		_, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock + $2
			WHERE id = $1
		`, line.ProductID, line.Qty)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return s.FindTransactionByID(ctx, id)
}

func (s *Store) ListTransactions(ctx context.Context, outletID string, from time.Time, to time.Time) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, outlet_id, invoice_number, date, cart, retail, payment_method,
			subtotal, total, cash_received, change, status, void_reason, voided_at,
			idempotency_key, cashier_username, created_at
		FROM transactions
		WHERE outlet_id = $1
			AND date >= $2
			AND date < $3
		ORDER BY date ASC
	`, outletID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, 64)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (s *Store) CreateAttendance(ctx context.Context, att domain.Attendance) (*domain.Attendance, error) {
	if att.StaffID == "" || att.Date == "" {
		return nil, store.ErrInvalidTransaction
	}
	if att.ID == "" {
		att.ID = xid.New("att")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (
			id, outlet_id, staff_id, staff_name, date, shift, clock_in, clock_out,
			clock_in_photo_url, clock_out_photo_url, latitude, longitude,
			distance_meters, minutes_late, status, denda
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, att.ID, att.OutletID, att.StaffID, att.StaffName, att.Date, att.Shift, att.ClockIn, nullTime(att.ClockOut),
		nullIfEmpty(att.ClockInPhotoURL), nullIfEmpty(att.ClockOutPhotoURL), att.Latitude, att.Longitude,
		att.DistanceMeters, att.MinutesLate, att.Status, att.Denda)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyClockedIn
		}
		return nil, err
	}

	created := att
	return &created, nil
}

func (s *Store) GetAttendanceForDay(ctx context.Context, staffID string, date string) (*domain.Attendance, error) {
	att, err := scanAttendance(s.db.QueryRowContext(ctx, `
		SELECT id, outlet_id, staff_id, staff_name, date, shift, clock_in, clock_out,
			COALESCE(clock_in_photo_url,''), COALESCE(clock_out_photo_url,''), latitude, longitude,
			distance_meters, minutes_late, status, denda
		FROM attendance
		WHERE staff_id = $1 AND date = $2
	`, staffID, date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return att, nil
}

func (s *Store) SetClockOut(ctx context.Context, attendanceID string, at time.Time, photoURL string) (*domain.Attendance, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE attendance
		SET clock_out = $2, clock_out_photo_url = $3
		WHERE id = $1 AND clock_out IS NULL
	`, attendanceID, at, nullIfEmpty(photoURL))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	att, err := scanAttendance(s.db.QueryRowContext(ctx, `
		SELECT id, outlet_id, staff_id, staff_name, date, shift, clock_in, clock_out,
			COALESCE(clock_in_photo_url,''), COALESCE(clock_out_photo_url,''), latitude, longitude,
			distance_meters, minutes_late, status, denda
		FROM attendance
		WHERE id = $1
	`, attendanceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return att, nil
}

func (s *Store) ListAttendance(ctx context.Context, outletID string, startDate string, endDate string) ([]domain.Attendance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, outlet_id, staff_id, staff_name, date, shift, clock_in, clock_out,
			COALESCE(clock_in_photo_url,''), COALESCE(clock_out_photo_url,''), latitude, longitude,
			distance_meters, minutes_late, status, denda
		FROM attendance
		WHERE outlet_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC, staff_name ASC
	`, outletID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.Attendance, 0, 64)
	for rows.Next() {
		att, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *att)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanAttendance(row rowScanner) (*domain.Attendance, error) {
	var att domain.Attendance
	var clockOut sql.NullTime
	err := row.Scan(
		&att.ID,
		&att.OutletID,
		&att.StaffID,
		&att.StaffName,
		&att.Date,
		&att.Shift,
		&att.ClockIn,
		&clockOut,
		&att.ClockInPhotoURL,
		&att.ClockOutPhotoURL,
		&att.Latitude,
		&att.Longitude,
		&att.DistanceMeters,
		&att.MinutesLate,
		&att.Status,
		&att.Denda,
	)
	if err != nil {
		return nil, err
	}
	att.ClockIn = att.ClockIn.UTC()
	if clockOut.Valid {
		out := clockOut.Time.UTC()
		att.ClockOut = &out
	}
	return &att, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, outlet_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.OutletID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, outletID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, outlet_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE outlet_id = $1
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, outletID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.OutletID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if user.Role == "" {
		user.Role = domain.RoleKasir
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidTransaction
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		WHERE username = $1
	`, username).Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
