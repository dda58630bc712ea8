package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/onecoderchamps/kasir-app/internal/domain"
	"github.com/onecoderchamps/kasir-app/internal/store"
	"github.com/onecoderchamps/kasir-app/internal/xid"
)

type Store struct {
	mu                 sync.RWMutex
	outletsByID        map[string]domain.Outlet
	categoriesByID     map[string]domain.Category
	servicesByID       map[string]domain.Service
	productsByID       map[string]domain.Product
	staffByID          map[string]domain.Staff
	transactionsByID   map[string]*domain.Transaction
	transactionsByIdem map[string]*domain.Transaction
	attendanceByID     map[string]domain.Attendance
	attendanceByDay    map[string]string
	auditLogs          []domain.AuditLog
	usersByUsername    map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_KASIR_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	kasirPwd := envOr("SEED_KASIR_PASSWORD", "kasir123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_KASIR_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_KASIR_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"kasir", kasirPwd, domain.RoleKasir},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	outlet := domain.Outlet{
		ID:           "outlet-pusat",
		Name:         "Salon Pusat",
		Address:      "Jl. Melati No. 12, Jakarta",
		Latitude:     -6.200000,
		Longitude:    106.816666,
		RadiusMeters: 100,
		CreatedAt:    now,
	}

	categories := []domain.Category{
		{ID: "cat-rambut", OutletID: outlet.ID, Name: "Rambut", CreatedAt: now},
		{ID: "cat-perawatan", OutletID: outlet.ID, Name: "Perawatan", CreatedAt: now},
		{ID: "cat-kuku", OutletID: outlet.ID, Name: "Kuku", CreatedAt: now},
	}

	services := []domain.Service{
		{ID: "svc-cuci-blow", OutletID: outlet.ID, CategoryID: "cat-rambut", Name: "Cuci Blow", Price: 40000, Active: true, CreatedAt: now},
		{ID: "svc-potong", OutletID: outlet.ID, CategoryID: "cat-rambut", Name: "Potong Rambut", Price: 55000, Active: true, CreatedAt: now},
		{ID: "svc-creambath", OutletID: outlet.ID, CategoryID: "cat-perawatan", Name: "Creambath", Price: 90000, Active: true, CreatedAt: now},
		{ID: "svc-hairspa", OutletID: outlet.ID, CategoryID: "cat-perawatan", Name: "Hair Spa", Price: 120000, Active: true, CreatedAt: now},
		{ID: "svc-facial", OutletID: outlet.ID, CategoryID: "cat-perawatan", Name: "Facial", Price: 150000, Active: true, CreatedAt: now},
		{ID: "svc-manicure", OutletID: outlet.ID, CategoryID: "cat-kuku", Name: "Manicure", Price: 65000, Active: true, CreatedAt: now},
		{ID: "svc-pedicure", OutletID: outlet.ID, CategoryID: "cat-kuku", Name: "Pedicure", Price: 75000, Active: true, CreatedAt: now},
	}

	products := []domain.Product{
		{ID: "prd-shampoo", OutletID: outlet.ID, Name: "Shampoo Keratin 250ml", Price: 85000, Commission: 8500, Stock: 40, Active: true, CreatedAt: now},
		{ID: "prd-serum", OutletID: outlet.ID, Name: "Serum Vitamin Rambut", Price: 120000, Commission: 15000, Stock: 25, Active: true, CreatedAt: now},
		{ID: "prd-hairmask", OutletID: outlet.ID, Name: "Hair Mask 200gr", Price: 95000, Commission: 10000, Stock: 30, Active: true, CreatedAt: now},
		{ID: "prd-tonic", OutletID: outlet.ID, Name: "Hair Tonic 100ml", Price: 60000, Commission: 6000, Stock: 50, Active: true, CreatedAt: now},
	}

	staff := []domain.Staff{
		{ID: "stf-ani", OutletID: outlet.ID, Name: "Ani", Role: domain.RoleTerapis, Shift: "09.00 - 17.00", Active: true, CreatedAt: now},
		{ID: "stf-budi", OutletID: outlet.ID, Name: "Budi", Role: domain.RoleTerapis, Shift: "10.00 - 18.00", Active: true, CreatedAt: now},
		{ID: "stf-citra", OutletID: outlet.ID, Name: "Citra", Role: domain.RoleTerapis, Shift: "13.00 - 21.00", Active: true, CreatedAt: now},
		{ID: "stf-dewi", OutletID: outlet.ID, Name: "Dewi", Role: domain.RoleKasir, Shift: "09.00 - 17.00", Active: true, CreatedAt: now},
	}

	s := &Store{
		outletsByID:        map[string]domain.Outlet{outlet.ID: outlet},
		categoriesByID:     make(map[string]domain.Category, len(categories)),
		servicesByID:       make(map[string]domain.Service, len(services)),
		productsByID:       make(map[string]domain.Product, len(products)),
		staffByID:          make(map[string]domain.Staff, len(staff)),
		transactionsByID:   make(map[string]*domain.Transaction),
		transactionsByIdem: make(map[string]*domain.Transaction),
		attendanceByID:     make(map[string]domain.Attendance),
		attendanceByDay:    make(map[string]string),
		auditLogs:          make([]domain.AuditLog, 0, 128),
		usersByUsername:    seedUsers(),
	}
	for _, c := range categories {
		s.categoriesByID[c.ID] = c
	}
	for _, svc := range services {
		s.servicesByID[svc.ID] = svc
	}
	for _, p := range products {
		s.productsByID[p.ID] = p
	}
	for _, st := range staff {
		s.staffByID[st.ID] = st
	}
	return s
}

func (s *Store) CreateOutlet(_ context.Context, outlet domain.Outlet) (*domain.Outlet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outlet.Name = strings.TrimSpace(outlet.Name)
	if outlet.Name == "" {
		return nil, store.ErrInvalidTransaction
	}
	if outlet.ID == "" {
		outlet.ID = xid.New("outlet")
	}
	if outlet.CreatedAt.IsZero() {
		outlet.CreatedAt = time.Now().UTC()
	}
	if outlet.RadiusMeters <= 0 {
		outlet.RadiusMeters = 100
	}

	s.outletsByID[outlet.ID] = outlet
	created := outlet
	return &created, nil
}

func (s *Store) GetOutletByID(_ context.Context, id string) (*domain.Outlet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outlet, exists := s.outletsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyOutlet := outlet
	return &copyOutlet, nil
}

func (s *Store) ListOutlets(_ context.Context) ([]domain.Outlet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outlets := make([]domain.Outlet, 0, len(s.outletsByID))
	for _, o := range s.outletsByID {
		outlets = append(outlets, o)
	}
	slices.SortFunc(outlets, func(a, b domain.Outlet) int {
		return cmpString(a.Name, b.Name)
	})
	return outlets, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" || category.OutletID == "" {
		return nil, store.ErrInvalidTransaction
	}
	if _, exists := s.outletsByID[category.OutletID]; !exists {
		return nil, store.ErrNotFound
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}

	s.categoriesByID[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) ListCategories(_ context.Context, outletID string) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categoriesByID))
	for _, c := range s.categoriesByID {
		if outletID != "" && c.OutletID != outletID {
			continue
		}
		categories = append(categories, c)
	}
	slices.SortFunc(categories, func(a, b domain.Category) int {
		return cmpString(a.Name, b.Name)
	})
	return categories, nil
}

func (s *Store) CreateService(_ context.Context, svc domain.Service) (*domain.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc.Name = strings.TrimSpace(svc.Name)
	if svc.Name == "" || svc.OutletID == "" || svc.Price < 1 {
		return nil, store.ErrInvalidTransaction
	}
	if _, exists := s.outletsByID[svc.OutletID]; !exists {
		return nil, store.ErrNotFound
	}
	if svc.CategoryID != "" {
		if _, exists := s.categoriesByID[svc.CategoryID]; !exists {
			return nil, store.ErrNotFound
		}
	}
	if svc.ID == "" {
		svc.ID = xid.New("svc")
	}
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}
	svc.Active = true

	s.servicesByID[svc.ID] = svc
	created := svc
	return &created, nil
}

func (s *Store) GetServiceByID(_ context.Context, id string) (*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, exists := s.servicesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySvc := svc
	return &copySvc, nil
}

func (s *Store) UpdateService(_ context.Context, svc domain.Service) (*domain.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if svc.Name == "" || svc.Price < 1 {
		return nil, store.ErrInvalidTransaction
	}
	if _, exists := s.servicesByID[svc.ID]; !exists {
		return nil, store.ErrNotFound
	}

	s.servicesByID[svc.ID] = svc
	updated := svc
	return &updated, nil
}

func (s *Store) ListServices(_ context.Context, outletID string) ([]domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	services := make([]domain.Service, 0, len(s.servicesByID))
	for _, svc := range s.servicesByID {
		if !svc.Active {
			continue
		}
		if outletID != "" && svc.OutletID != outletID {
			continue
		}
		services = append(services, svc)
	}
	slices.SortFunc(services, func(a, b domain.Service) int {
		if a.CategoryID == b.CategoryID {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.CategoryID, b.CategoryID)
	})
	return services, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || product.OutletID == "" || product.Price < 1 {
		return nil, store.ErrInvalidTransaction
	}
	if product.Commission < 0 || product.Commission > product.Price {
		return nil, store.ErrInvalidTransaction
	}
	if product.Stock < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if _, exists := s.outletsByID[product.OutletID]; !exists {
		return nil, store.ErrNotFound
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.Active = true

	s.productsByID[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Price < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if _, exists := s.productsByID[product.ID]; !exists {
		return nil, store.ErrNotFound
	}

	s.productsByID[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) ListProducts(_ context.Context, outletID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		if !p.Active {
			continue
		}
		if outletID != "" && p.OutletID != outletID {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) DecrementStock(_ context.Context, productID string, qty int) error {
	if qty < 1 {
		return store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.productsByID[productID]
	if !exists {
		return store.ErrNotFound
	}
	if product.Stock < qty {
		return store.ErrInsufficientStock
	}
	product.Stock -= qty
	s.productsByID[productID] = product
	return nil
}

func (s *Store) CreateStaff(_ context.Context, staff domain.Staff) (*domain.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	staff.Name = strings.TrimSpace(staff.Name)
	if staff.Name == "" || staff.OutletID == "" {
		return nil, store.ErrInvalidTransaction
	}
	if _, exists := s.outletsByID[staff.OutletID]; !exists {
		return nil, store.ErrNotFound
	}
	if staff.ID == "" {
		staff.ID = xid.New("stf")
	}
	if staff.Role == "" {
		staff.Role = domain.RoleTerapis
	}
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = time.Now().UTC()
	}
	staff.Active = true

	s.staffByID[staff.ID] = staff
	created := staff
	return &created, nil
}

func (s *Store) GetStaffByID(_ context.Context, id string) (*domain.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	staff, exists := s.staffByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyStaff := staff
	return &copyStaff, nil
}

func (s *Store) UpdateStaff(_ context.Context, staff domain.Staff) (*domain.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if staff.Name == "" {
		return nil, store.ErrInvalidTransaction
	}
	if _, exists := s.staffByID[staff.ID]; !exists {
		return nil, store.ErrNotFound
	}

	s.staffByID[staff.ID] = staff
	updated := staff
	return &updated, nil
}

func (s *Store) ListStaff(_ context.Context, outletID string) ([]domain.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Staff, 0, len(s.staffByID))
	for _, staff := range s.staffByID {
		if !staff.Active {
			continue
		}
		if outletID != "" && staff.OutletID != outletID {
			continue
		}
		result = append(result, staff)
	}
	slices.SortFunc(result, func(a, b domain.Staff) int {
		return cmpString(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) FindTransactionByIdempotency(_ context.Context, key string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) FindTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) CreateCheckout(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.IdempotencyKey == "" {
		return nil, store.ErrInvalidTransaction
	}
	if existing, ok := s.transactionsByIdem[tx.IdempotencyKey]; ok {
		return cloneTransaction(existing), nil
	}
	if len(tx.Cart) == 0 && len(tx.Retail) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	if _, ok := s.outletsByID[tx.OutletID]; !ok {
		return nil, store.ErrNotFound
	}

	// Stock is verified and decremented atomically under the write lock.
	for _, line := range tx.Retail {
		product, exists := s.productsByID[line.ProductID]
		if !exists || !product.Active {
			return nil, store.ErrNotFound
		}
		if product.Stock < line.Qty {
			return nil, store.ErrInsufficientStock
		}
	}
	for _, line := range tx.Retail {
		product := s.productsByID[line.ProductID]
		product.Stock -= line.Qty
		s.productsByID[line.ProductID] = product
	}

	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if tx.Status == "" {
		tx.Status = domain.TxStatusPaid
	}

	txCopy := cloneTransaction(&tx)
	s.transactionsByID[tx.ID] = txCopy
	s.transactionsByIdem[tx.IdempotencyKey] = txCopy

	return cloneTransaction(txCopy), nil
}

func (s *Store) VoidTransaction(_ context.Context, id string, reason string, at time.Time) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if tx.Status != domain.TxStatusPaid {
		return nil, store.ErrInvalidTransaction
	}

	// Voiding returns retail stock to the shelf.
	for _, line := range tx.Retail {
		product, exists := s.productsByID[line.ProductID]
		if !exists {
			continue
		}
		product.Stock += line.Qty
		s.productsByID[line.ProductID] = product
	}

	tx.Status = domain.TxStatusVoided
	tx.VoidReason = reason
	tx.VoidedAt = &at

	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, outletID string, from time.Time, to time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 64)
	for _, tx := range s.transactionsByID {
		if outletID != "" && tx.OutletID != outletID {
			continue
		}
		if tx.Date.Before(from) || !tx.Date.Before(to) {
			continue
		}
		result = append(result, *cloneTransaction(tx))
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		if a.Date.Equal(b.Date) {
			return cmpString(a.ID, b.ID)
		}
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) CreateAttendance(_ context.Context, att domain.Attendance) (*domain.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if att.StaffID == "" || att.Date == "" {
		return nil, store.ErrInvalidTransaction
	}
	key := attendanceDayKey(att.StaffID, att.Date)
	if _, exists := s.attendanceByDay[key]; exists {
		return nil, store.ErrAlreadyClockedIn
	}
	if att.ID == "" {
		att.ID = xid.New("att")
	}

	s.attendanceByID[att.ID] = att
	s.attendanceByDay[key] = att.ID
	created := att
	return &created, nil
}

func (s *Store) GetAttendanceForDay(_ context.Context, staffID string, date string) (*domain.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.attendanceByDay[attendanceDayKey(staffID, date)]
	if !exists {
		return nil, store.ErrNotFound
	}
	att := s.attendanceByID[id]
	copyAtt := att
	return &copyAtt, nil
}

func (s *Store) SetClockOut(_ context.Context, attendanceID string, at time.Time, photoURL string) (*domain.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	att, exists := s.attendanceByID[attendanceID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if att.ClockOut != nil {
		return nil, store.ErrInvalidTransaction
	}
	att.ClockOut = &at
	att.ClockOutPhotoURL = photoURL
	s.attendanceByID[attendanceID] = att
	updated := att
	return &updated, nil
}

func (s *Store) ListAttendance(_ context.Context, outletID string, startDate string, endDate string) ([]domain.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Attendance, 0, 64)
	for _, att := range s.attendanceByID {
		if outletID != "" && att.OutletID != outletID {
			continue
		}
		if att.Date < startDate || att.Date > endDate {
			continue
		}
		result = append(result, att)
	}
	slices.SortFunc(result, func(a, b domain.Attendance) int {
		if a.Date == b.Date {
			return cmpString(a.StaffName, b.StaffName)
		}
		return cmpString(a.Date, b.Date)
	})
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, outletID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if outletID != "" && entry.OutletID != outletID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidTransaction
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleKasir
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func attendanceDayKey(staffID string, date string) string {
	return staffID + "::" + date
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Cart = make([]domain.CartLine, len(src.Cart))
	for i, line := range src.Cart {
		line.ServedBy = slices.Clone(line.ServedBy)
		dup.Cart[i] = line
	}
	dup.Retail = make([]domain.RetailLine, len(src.Retail))
	for i, line := range src.Retail {
		line.ServedBy = slices.Clone(line.ServedBy)
		dup.Retail[i] = line
	}
	return &dup
}
