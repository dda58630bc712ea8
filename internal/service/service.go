package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/onecoderchamps/kasir-app/internal/attendance"
	"github.com/onecoderchamps/kasir-app/internal/cache"
	"github.com/onecoderchamps/kasir-app/internal/domain"
	"github.com/onecoderchamps/kasir-app/internal/report"
	"github.com/onecoderchamps/kasir-app/internal/store"
	"github.com/onecoderchamps/kasir-app/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo            store.Repository
	reportCache     cache.ReportCache
	loc             *time.Location
	defaultOutletID string
	geofenceRadius  float64
	reportCacheTTL  time.Duration
}

func New(repo store.Repository, reportCache cache.ReportCache, loc *time.Location, defaultOutletID string, geofenceRadius float64, reportCacheTTL time.Duration) *Service {
	if defaultOutletID == "" {
		defaultOutletID = "outlet-pusat"
	}
	if loc == nil {
		loc = time.UTC
	}
	if reportCache == nil {
		reportCache = cache.NoopReportCache{}
	}
	if geofenceRadius <= 0 {
		geofenceRadius = 100
	}
	if reportCacheTTL <= 0 {
		reportCacheTTL = time.Minute
	}

	return &Service{
		repo:            repo,
		reportCache:     reportCache,
		loc:             loc,
		defaultOutletID: defaultOutletID,
		geofenceRadius:  geofenceRadius,
		reportCacheTTL:  reportCacheTTL,
	}
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) ListOutlets(ctx context.Context) ([]domain.Outlet, error) {
	return s.repo.ListOutlets(ctx)
}

func (s *Service) CreateOutlet(ctx context.Context, req domain.OutletCreateRequest) (domain.Outlet, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Outlet{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Outlet{}, store.ErrInvalidTransaction
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		return domain.Outlet{}, store.ErrInvalidTransaction
	}
	if req.RadiusMeters <= 0 {
		req.RadiusMeters = s.geofenceRadius
	}

	created, err := s.repo.CreateOutlet(ctx, domain.Outlet{
		ID:           xid.New("outlet"),
		Name:         req.Name,
		Address:      strings.TrimSpace(req.Address),
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		RadiusMeters: req.RadiusMeters,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.Outlet{}, err
	}

	s.logAudit(ctx, created.ID, "outlet_create", "outlet", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) ListCategories(ctx context.Context, outletID string) ([]domain.Category, error) {
	if outletID == "" {
		outletID = s.defaultOutletID
	}
	return s.repo.ListCategories(ctx, outletID)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Category{}, fmt.Errorf("admin role required")
	}

	if req.OutletID == "" {
		req.OutletID = s.defaultOutletID
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Category{}, store.ErrInvalidTransaction
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{
		ID:        xid.New("cat"),
		OutletID:  req.OutletID,
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Category{}, err
	}

	s.logAudit(ctx, req.OutletID, "category_create", "category", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) ListServices(ctx context.Context, outletID string) ([]domain.Service, error) {
	if outletID == "" {
		outletID = s.defaultOutletID
	}
	return s.repo.ListServices(ctx, outletID)
}

func (s *Service) CreateService(ctx context.Context, req domain.ServiceCreateRequest) (domain.Service, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Service{}, fmt.Errorf("admin role required")
	}

	if req.OutletID == "" {
		req.OutletID = s.defaultOutletID
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Price < 1 {
		return domain.Service{}, store.ErrInvalidTransaction
	}

	created, err := s.repo.CreateService(ctx, domain.Service{
		ID:         xid.New("svc"),
		OutletID:   req.OutletID,
		CategoryID: strings.TrimSpace(req.CategoryID),
		Name:       req.Name,
		Price:      req.Price,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return domain.Service{}, err
	}

	s.logAudit(ctx, req.OutletID, "service_create", "service", created.ID, fmt.Sprintf("name=%s,price=%d", created.Name, created.Price))
	return *created, nil
}

func (s *Service) UpdateService(ctx context.Context, id string, req domain.ServiceUpdateRequest) (domain.Service, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Service{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetServiceByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Service{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Service{}, store.ErrInvalidTransaction
		}
		updated.Name = name
	}
	if req.CategoryID != nil {
		updated.CategoryID = strings.TrimSpace(*req.CategoryID)
	}
	if req.Price != nil {
		if *req.Price < 1 {
			return domain.Service{}, store.ErrInvalidTransaction
		}
		updated.Price = *req.Price
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateService(ctx, updated)
	if err != nil {
		return domain.Service{}, err
	}

	s.logAudit(ctx, saved.OutletID, "service_update", "service", saved.ID, fmt.Sprintf("active=%t,price=%d", saved.Active, saved.Price))
	return *saved, nil
}

func (s *Service) ListProducts(ctx context.Context, outletID string) ([]domain.Product, error) {
	if outletID == "" {
		outletID = s.defaultOutletID
	}
	return s.repo.ListProducts(ctx, outletID)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	if req.OutletID == "" {
		req.OutletID = s.defaultOutletID
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Price < 1 || req.InitialStock < 0 {
		return domain.Product{}, store.ErrInvalidTransaction
	}
	if req.Commission < 0 || req.Commission > req.Price {
		return domain.Product{}, store.ErrInvalidTransaction
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:         xid.New("prd"),
		OutletID:   req.OutletID,
		Name:       req.Name,
		Price:      req.Price,
		Commission: req.Commission,
		Stock:      req.InitialStock,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, req.OutletID, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.Price, created.Stock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetProductByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.Name = name
	}
	if req.Price != nil {
		if *req.Price < 1 {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.Price = *req.Price
	}
	if req.Commission != nil {
		if *req.Commission < 0 {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.Commission = *req.Commission
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.Stock = *req.Stock
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, saved.OutletID, "product_update", "product", saved.ID, fmt.Sprintf("active=%t,price=%d,stock=%d", saved.Active, saved.Price, saved.Stock))
	return *saved, nil
}

func (s *Service) ListStaff(ctx context.Context, outletID string) ([]domain.Staff, error) {
	if outletID == "" {
		outletID = s.defaultOutletID
	}
	return s.repo.ListStaff(ctx, outletID)
}

func (s *Service) CreateStaff(ctx context.Context, req domain.StaffCreateRequest) (domain.Staff, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Staff{}, fmt.Errorf("admin role required")
	}

	if req.OutletID == "" {
		req.OutletID = s.defaultOutletID
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Staff{}, store.ErrInvalidTransaction
	}
	req.Shift = strings.TrimSpace(req.Shift)
	if req.Shift != "" {
		if _, err := attendance.ParseShiftStart(req.Shift, time.Now(), s.loc); err != nil {
			return domain.Staff{}, fmt.Errorf("%w: unparseable shift", store.ErrInvalidTransaction)
		}
	}

	created, err := s.repo.CreateStaff(ctx, domain.Staff{
		ID:        xid.New("stf"),
		OutletID:  req.OutletID,
		Name:      req.Name,
		Role:      strings.TrimSpace(req.Role),
		Shift:     req.Shift,
		PhotoURL:  strings.TrimSpace(req.PhotoURL),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Staff{}, err
	}

	s.logAudit(ctx, req.OutletID, "staff_create", "staff", created.ID, fmt.Sprintf("name=%s,shift=%s", created.Name, created.Shift))
	return *created, nil
}

func (s *Service) UpdateStaff(ctx context.Context, id string, req domain.StaffUpdateRequest) (domain.Staff, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Staff{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetStaffByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Staff{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Staff{}, store.ErrInvalidTransaction
		}
		updated.Name = name
	}
	if req.Role != nil {
		updated.Role = strings.TrimSpace(*req.Role)
	}
	if req.Shift != nil {
		shift := strings.TrimSpace(*req.Shift)
		if shift != "" {
			if _, err := attendance.ParseShiftStart(shift, time.Now(), s.loc); err != nil {
				return domain.Staff{}, fmt.Errorf("%w: unparseable shift", store.ErrInvalidTransaction)
			}
		}
		updated.Shift = shift
	}
	if req.PhotoURL != nil {
		updated.PhotoURL = strings.TrimSpace(*req.PhotoURL)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateStaff(ctx, updated)
	if err != nil {
		return domain.Staff{}, err
	}

	s.logAudit(ctx, saved.OutletID, "staff_update", "staff", saved.ID, fmt.Sprintf("active=%t,shift=%s", saved.Active, saved.Shift))
	return *saved, nil
}

func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if req.OutletID == "" {
		req.OutletID = s.defaultOutletID
	}
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if req.PaymentMethod == "" {
		req.PaymentMethod = "cash"
	}
	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return domain.CheckoutResponse{}, store.ErrInvalidTransaction
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = xid.New("idem")
	}
	if len(req.Cart) == 0 && len(req.Retail) == 0 {
		return domain.CheckoutResponse{}, store.ErrInvalidTransaction
	}

	if existing, err := s.repo.FindTransactionByIdempotency(ctx, req.IdempotencyKey); err == nil {
		return toCheckoutResponse(existing, true), nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.CheckoutResponse{}, err
	}

	subtotal := int64(0)
	cartLines := make([]domain.CartLine, 0, len(req.Cart))
	for _, line := range req.Cart {
		if line.Qty < 1 {
			return domain.CheckoutResponse{}, store.ErrInvalidTransaction
		}
		svc, err := s.repo.GetServiceByID(ctx, line.ServiceID)
		if err != nil {
			return domain.CheckoutResponse{}, err
		}
		if !svc.Active {
			return domain.CheckoutResponse{}, store.ErrInvalidTransaction
		}
		cartLines = append(cartLines, domain.CartLine{
			LineID:     xid.New("line"),
			ServiceID:  svc.ID,
			Name:       svc.Name,
			Price:      svc.Price,
			Qty:        line.Qty,
			CategoryID: svc.CategoryID,
			ServedBy:   domain.ParseServedBy(line.ServedBy),
		})
		subtotal += svc.Price * int64(line.Qty)
	}

	retailLines := make([]domain.RetailLine, 0, len(req.Retail))
	for _, line := range req.Retail {
		if line.Qty < 1 {
			return domain.CheckoutResponse{}, store.ErrInvalidTransaction
		}
		product, err := s.repo.GetProductByID(ctx, line.ProductID)
		if err != nil {
			return domain.CheckoutResponse{}, err
		}
		if !product.Active {
			return domain.CheckoutResponse{}, store.ErrInvalidTransaction
		}
		retailLines = append(retailLines, domain.RetailLine{
			LineID:     xid.New("line"),
			ProductID:  product.ID,
			Name:       product.Name,
			Price:      product.Price,
			Commission: product.Commission,
			Qty:        line.Qty,
			ServedBy:   domain.ParseServedBy(line.ServedBy),
		})
		subtotal += product.Price * int64(line.Qty)
	}

	total := subtotal
	change := int64(0)
	if req.PaymentMethod == "cash" {
		if req.CashReceived < total {
			return domain.CheckoutResponse{}, store.ErrInvalidTransaction
		}
		change = req.CashReceived - total
	} else {
		req.CashReceived = total
	}

	actor, _ := ActorFromContext(ctx)
	now := time.Now().UTC()
	tx := domain.Transaction{
		ID:              xid.New("tx"),
		OutletID:        req.OutletID,
		InvoiceNumber:   xid.Invoice(now.In(s.loc)),
		Date:            now,
		Cart:            cartLines,
		Retail:          retailLines,
		PaymentMethod:   req.PaymentMethod,
		Subtotal:        subtotal,
		Total:           total,
		CashReceived:    req.CashReceived,
		Change:          change,
		Status:          domain.TxStatusPaid,
		IdempotencyKey:  req.IdempotencyKey,
		CashierUsername: actor.Username,
		CreatedAt:       now,
	}

	created, err := s.repo.CreateCheckout(ctx, tx)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	s.logAudit(ctx, req.OutletID, "checkout", "transaction", created.ID,
		fmt.Sprintf("invoice=%s,total=%d,payment=%s,lines=%d", created.InvoiceNumber, created.Total, created.PaymentMethod, len(created.Cart)+len(created.Retail)))

	return toCheckoutResponse(created, false), nil
}

func (s *Service) VoidTransaction(ctx context.Context, req domain.VoidTransactionRequest) (domain.VoidTransactionResponse, error) {
	if req.TransactionID == "" {
		return domain.VoidTransactionResponse{}, store.ErrInvalidTransaction
	}
	if req.Reason == "" {
		req.Reason = "unspecified"
	}

	voidedAt := time.Now().UTC()
	tx, err := s.repo.VoidTransaction(ctx, req.TransactionID, req.Reason, voidedAt)
	if err != nil {
		return domain.VoidTransactionResponse{}, err
	}

	s.logAudit(ctx, tx.OutletID, "void_transaction", "transaction", tx.ID, req.Reason)

	return domain.VoidTransactionResponse{
		TransactionID: tx.ID,
		Status:        tx.Status,
		VoidedAt:      voidedAt.Format(time.RFC3339),
	}, nil
}

func (s *Service) SyncOffline(ctx context.Context, req domain.OfflineSyncRequest) (domain.OfflineSyncResponse, error) {
	resp := domain.OfflineSyncResponse{
		EnvelopeID: req.EnvelopeID,
		Statuses:   make([]domain.OfflineSyncStatus, 0, len(req.Transactions)),
	}

	for _, tx := range req.Transactions {
		checkoutReq := tx.Checkout
		if checkoutReq.OutletID == "" {
			checkoutReq.OutletID = req.OutletID
		}
		if checkoutReq.IdempotencyKey == "" {
			checkoutReq.IdempotencyKey = tx.ClientTransactionID
		}

		checkoutResp, err := s.Checkout(ctx, checkoutReq)
		status := domain.OfflineSyncStatus{
			ClientTransactionID: tx.ClientTransactionID,
		}
		if err != nil {
			status.Status = domain.SyncStatusRejected
			status.Reason = err.Error()
			resp.Statuses = append(resp.Statuses, status)
			continue
		}

		if checkoutResp.Duplicate {
			status.Status = domain.SyncStatusDuplicate
		} else {
			status.Status = domain.SyncStatusApplied
		}
		status.TransactionID = checkoutResp.TransactionID
		resp.Statuses = append(resp.Statuses, status)
	}

	return resp, nil
}

func (s *Service) ClockIn(ctx context.Context, req domain.ClockInRequest) (domain.AttendanceResponse, error) {
	if req.OutletID == "" {
		req.OutletID = s.defaultOutletID
	}
	if req.StaffID == "" {
		return domain.AttendanceResponse{}, store.ErrInvalidTransaction
	}

	staff, err := s.repo.GetStaffByID(ctx, req.StaffID)
	if err != nil {
		return domain.AttendanceResponse{}, err
	}
	if !staff.Active {
		return domain.AttendanceResponse{}, store.ErrInvalidTransaction
	}
	outlet, err := s.repo.GetOutletByID(ctx, req.OutletID)
	if err != nil {
		return domain.AttendanceResponse{}, err
	}

	distance := haversineMeters(outlet.Latitude, outlet.Longitude, req.Latitude, req.Longitude)
	radius := outlet.RadiusMeters
	if radius <= 0 {
		radius = s.geofenceRadius
	}
	if distance > radius {
		return domain.AttendanceResponse{}, fmt.Errorf("%w: %.0fm outside attendance radius", store.ErrInvalidTransaction, distance-radius)
	}

	now := time.Now().In(s.loc)
	minutesLate, denda, err := attendance.LatePenalty(staff.Shift, now, s.loc)
	if err != nil {
		return domain.AttendanceResponse{}, fmt.Errorf("%w: staff has no usable shift", store.ErrInvalidTransaction)
	}
	status := domain.AttendanceStatusHadir
	if minutesLate > 0 {
		status = domain.AttendanceStatusTelat
	}

	att := domain.Attendance{
		ID:              xid.New("att"),
		OutletID:        req.OutletID,
		StaffID:         staff.ID,
		StaffName:       staff.Name,
		Date:            report.DayKey(now, s.loc),
		Shift:           staff.Shift,
		ClockIn:         now.UTC(),
		ClockInPhotoURL: strings.TrimSpace(req.PhotoURL),
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		DistanceMeters:  distance,
		MinutesLate:     minutesLate,
		Status:          status,
		Denda:           denda,
	}

	created, err := s.repo.CreateAttendance(ctx, att)
	if err != nil {
		return domain.AttendanceResponse{}, err
	}

	s.logAudit(ctx, req.OutletID, "clock_in", "attendance", created.ID,
		fmt.Sprintf("staff=%s,late=%d,denda=%d,distance=%.0f", staff.Name, minutesLate, denda, distance))

	return domain.AttendanceResponse{Attendance: *created}, nil
}

func (s *Service) ClockOut(ctx context.Context, req domain.ClockOutRequest) (domain.AttendanceResponse, error) {
	if req.StaffID == "" {
		return domain.AttendanceResponse{}, store.ErrInvalidTransaction
	}

	now := time.Now().In(s.loc)
	att, err := s.repo.GetAttendanceForDay(ctx, req.StaffID, report.DayKey(now, s.loc))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.AttendanceResponse{}, store.ErrNotClockedIn
		}
		return domain.AttendanceResponse{}, err
	}

	updated, err := s.repo.SetClockOut(ctx, att.ID, now.UTC(), strings.TrimSpace(req.PhotoURL))
	if err != nil {
		return domain.AttendanceResponse{}, err
	}

	s.logAudit(ctx, updated.OutletID, "clock_out", "attendance", updated.ID, fmt.Sprintf("staff=%s", updated.StaffName))

	return domain.AttendanceResponse{Attendance: *updated}, nil
}

// ListAttendance returns the raw attendance records for an inclusive day
// range, ordered by date then staff name.
func (s *Service) ListAttendance(ctx context.Context, outletID string, startDate string, endDate string) ([]domain.Attendance, error) {
	if outletID == "" {
		outletID = s.defaultOutletID
	}
	if _, _, err := s.rangeBounds(startDate, endDate); err != nil {
		return nil, err
	}
	return s.repo.ListAttendance(ctx, outletID, startDate, endDate)
}

// ReportKind selects which sold lines feed a revenue pivot.
type ReportKind string

const (
	ReportOmset  ReportKind = "omset"
	ReportRetail ReportKind = "retail"
)

// RevenuePivot builds the date-by-staff pivot for [startDate, endDate].
// Voided transactions never contribute. An optional filter narrows omset
// pivots to one category and retail pivots to one product. Results are
// cached briefly since dashboards poll these endpoints.
func (s *Service) RevenuePivot(ctx context.Context, kind ReportKind, outletID string, filter string, startDate string, endDate string) (report.Table, error) {
	if outletID == "" {
		outletID = s.defaultOutletID
	}
	if kind != ReportOmset && kind != ReportRetail {
		return report.Table{}, store.ErrInvalidTransaction
	}
	filter = strings.TrimSpace(filter)

	cacheKey := fmt.Sprintf("report:%s:%s:%s:%s:%s", kind, outletID, filter, startDate, endDate)
	if cached, hit, err := s.reportCache.Get(ctx, cacheKey); err != nil {
		log.Printf("[service] WARN: report cache get %s: %v", cacheKey, err)
	} else if hit {
		return *cached, nil
	}

	from, to, err := s.rangeBounds(startDate, endDate)
	if err != nil {
		return report.Table{}, err
	}

	var records []report.Record
	if !from.IsZero() {
		txs, err := s.repo.ListTransactions(ctx, outletID, from, to)
		if err != nil {
			return report.Table{}, err
		}
		for _, tx := range txs {
			if tx.Status == domain.TxStatusVoided {
				continue
			}
			switch kind {
			case ReportOmset:
				if filter != "" {
					kept := make([]domain.CartLine, 0, len(tx.Cart))
					for _, line := range tx.Cart {
						if line.CategoryID == filter {
							kept = append(kept, line)
						}
					}
					tx.Cart = kept
				}
				records = append(records, report.CartRecords(tx, s.loc)...)
			case ReportRetail:
				if filter != "" {
					kept := make([]domain.RetailLine, 0, len(tx.Retail))
					for _, line := range tx.Retail {
						if line.ProductID == filter {
							kept = append(kept, line)
						}
					}
					tx.Retail = kept
				}
				records = append(records, report.RetailRecords(tx, s.loc)...)
			}
		}
	}

	table, err := report.BuildPivot(records, startDate, endDate, s.loc)
	if err != nil {
		return report.Table{}, err
	}

	if err := s.reportCache.Set(ctx, cacheKey, &table, s.reportCacheTTL); err != nil {
		log.Printf("[service] WARN: report cache set %s: %v", cacheKey, err)
	}
	return table, nil
}

// rangeBounds converts an inclusive day range into [from, to) instants in
// the service location. An inverted range returns zero times and no error
// so the pivot still renders its Total row.
func (s *Service) rangeBounds(startDate string, endDate string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(report.DateLayout, startDate, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, store.ErrInvalidTransaction
	}
	end, err := time.ParseInLocation(report.DateLayout, endDate, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, store.ErrInvalidTransaction
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, nil
	}
	return start, end.AddDate(0, 0, 1), nil
}

func (s *Service) AttendanceMatrix(ctx context.Context, outletID string, startDate string, endDate string) (domain.AttendanceReport, error) {
	if outletID == "" {
		outletID = s.defaultOutletID
	}
	dates, err := report.DateRange(startDate, endDate, s.loc)
	if err != nil {
		return domain.AttendanceReport{}, store.ErrInvalidTransaction
	}

	records, err := s.repo.ListAttendance(ctx, outletID, startDate, endDate)
	if err != nil {
		return domain.AttendanceReport{}, err
	}

	rowIndex := map[string]int{}
	rows := make([]domain.AttendanceReportRow, 0, 16)
	for _, att := range records {
		idx, seen := rowIndex[att.StaffID]
		if !seen {
			idx = len(rows)
			rowIndex[att.StaffID] = idx
			rows = append(rows, domain.AttendanceReportRow{
				StaffID:   att.StaffID,
				StaffName: att.StaffName,
				Days:      make(map[string]domain.AttendanceReportCell, len(dates)),
			})
		}
		rows[idx].Days[att.Date] = domain.AttendanceReportCell{Status: att.Status, Denda: att.Denda}
		rows[idx].TotalDenda += att.Denda
	}

	return domain.AttendanceReport{
		OutletID:  outletID,
		StartDate: startDate,
		EndDate:   endDate,
		Dates:     dates,
		Rows:      rows,
	}, nil
}

func (s *Service) DailySummary(ctx context.Context, outletID string, date string) (domain.DailySummary, error) {
	if outletID == "" {
		outletID = s.defaultOutletID
	}
	if strings.TrimSpace(date) == "" {
		date = report.DayKey(time.Now(), s.loc)
	}

	from, to, err := s.rangeBounds(date, date)
	if err != nil {
		return domain.DailySummary{}, err
	}

	txs, err := s.repo.ListTransactions(ctx, outletID, from, to)
	if err != nil {
		return domain.DailySummary{}, err
	}

	summary := domain.DailySummary{OutletID: outletID, Date: date}
	byPayment := map[string]*domain.DailySummaryPayment{}
	for _, tx := range txs {
		if tx.Status == domain.TxStatusVoided {
			continue
		}
		summary.Transactions++
		summary.GrossSales += tx.Total

		entry := byPayment[tx.PaymentMethod]
		if entry == nil {
			entry = &domain.DailySummaryPayment{PaymentMethod: tx.PaymentMethod}
			byPayment[tx.PaymentMethod] = entry
		}
		entry.Transactions++
		entry.Total += tx.Total
	}

	methods := make([]string, 0, len(byPayment))
	for method := range byPayment {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	for _, method := range methods {
		summary.ByPayment = append(summary.ByPayment, *byPayment[method])
	}

	return summary, nil
}

// ListTransactions returns an outlet's transactions for an inclusive day
// range, voided ones included so the history view can show them.
func (s *Service) ListTransactions(ctx context.Context, outletID string, startDate string, endDate string) ([]domain.Transaction, error) {
	if outletID == "" {
		outletID = s.defaultOutletID
	}
	from, to, err := s.rangeBounds(startDate, endDate)
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		return []domain.Transaction{}, nil
	}
	return s.repo.ListTransactions(ctx, outletID, from, to)
}

func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Transaction{}, store.ErrInvalidTransaction
	}
	tx, err := s.repo.FindTransactionByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	return *tx, nil
}

func (s *Service) BuildReceipt(ctx context.Context, transactionID string) (domain.ReceiptResponse, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return domain.ReceiptResponse{}, store.ErrInvalidTransaction
	}
	tx, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}

	lines := []string{
		"OneCoder Salon",
		"========================",
		"Invoice: " + tx.InvoiceNumber,
		"Outlet : " + tx.OutletID,
		"Kasir  : " + tx.CashierUsername,
		"Tanggal: " + tx.Date.In(s.loc).Format("2006-01-02 15:04:05"),
		"------------------------",
	}
	for _, line := range tx.Cart {
		lines = append(lines, fmt.Sprintf("%s x%d", line.Name, line.Qty))
		lines = append(lines, fmt.Sprintf("  oleh %s", domain.JoinServedBy(line.ServedBy)))
		lines = append(lines, fmt.Sprintf("  %d", line.Price*int64(line.Qty)))
	}
	for _, line := range tx.Retail {
		lines = append(lines, fmt.Sprintf("%s x%d", line.Name, line.Qty))
		lines = append(lines, fmt.Sprintf("  %d", line.Price*int64(line.Qty)))
	}
	lines = append(lines,
		"------------------------",
		fmt.Sprintf("Subtotal : %d", tx.Subtotal),
		fmt.Sprintf("Total    : %d", tx.Total),
		fmt.Sprintf("Bayar    : %d", tx.CashReceived),
		fmt.Sprintf("Kembali  : %d", tx.Change),
		"========================",
		"Terima kasih",
		"",
	)

	escpos := []byte{0x1b, 0x40}
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, []byte{0x1d, 0x56, 0x41, 0x10}...)

	return domain.ReceiptResponse{
		TransactionID: tx.ID,
		EscposBase64:  base64.StdEncoding.EncodeToString(escpos),
		PreviewText:   strings.Join(lines, "\n"),
		FileName:      fmt.Sprintf("receipt-%s.bin", tx.ID),
	}, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, outletID string, date string, limit int) ([]domain.AuditLog, error) {
	if outletID == "" {
		outletID = s.defaultOutletID
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.ParseInLocation(report.DateLayout, date, s.loc)
		if err != nil {
			return nil, store.ErrInvalidTransaction
		}
		from = parsed
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, outletID, from, to, limit)
}

func toCheckoutResponse(tx *domain.Transaction, duplicate bool) domain.CheckoutResponse {
	return domain.CheckoutResponse{
		TransactionID: tx.ID,
		InvoiceNumber: tx.InvoiceNumber,
		Status:        tx.Status,
		PaymentMethod: tx.PaymentMethod,
		Subtotal:      tx.Subtotal,
		Total:         tx.Total,
		CashReceived:  tx.CashReceived,
		Change:        tx.Change,
		LineCount:     len(tx.Cart) + len(tx.Retail),
		Duplicate:     duplicate,
		CreatedAt:     tx.CreatedAt,
	}
}

func (s *Service) logAudit(ctx context.Context, outletID string, action string, entityType string, entityID string, detail string) {
	if outletID == "" {
		outletID = s.defaultOutletID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		OutletID:      outletID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

const earthRadiusMeters = 6371000

// haversineMeters is the great-circle distance between two coordinates.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case "cash", "card", "qris", "ewallet":
		return true
	default:
		return false
	}
}
