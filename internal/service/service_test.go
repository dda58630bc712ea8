package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/onecoderchamps/kasir-app/internal/cache"
	"github.com/onecoderchamps/kasir-app/internal/domain"
	"github.com/onecoderchamps/kasir-app/internal/report"
	"github.com/onecoderchamps/kasir-app/internal/store"
	"github.com/onecoderchamps/kasir-app/internal/store/memory"
)

var jakarta = time.FixedZone("WIB", 7*3600)

func newTestService() *Service {
	repo := memory.NewSeeded()
	return New(repo, cache.NoopReportCache{}, jakarta, "outlet-pusat", 100, time.Minute)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func kasirCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "dewi", Role: domain.RoleKasir})
}

func TestCheckoutCashComputesChange(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Checkout(kasirCtx(), domain.CheckoutRequest{
		OutletID:       "outlet-pusat",
		IdempotencyKey: "idem-cash",
		PaymentMethod:  "cash",
		CashReceived:   100000,
		Cart: []domain.CheckoutCartLine{
			{ServiceID: "svc-creambath", Qty: 1, ServedBy: "Ani, Budi"},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.Total != 90000 {
		t.Fatalf("total = %d, want 90000", resp.Total)
	}
	if resp.Change != 10000 {
		t.Fatalf("change = %d, want 10000", resp.Change)
	}
	if resp.InvoiceNumber == "" {
		t.Fatalf("expected invoice number to be assigned")
	}
}

func TestCheckoutInsufficientCashRejected(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(kasirCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-short",
		PaymentMethod:  "cash",
		CashReceived:   10000,
		Cart: []domain.CheckoutCartLine{
			{ServiceID: "svc-creambath", Qty: 1, ServedBy: "Ani"},
		},
	})
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("err = %v, want ErrInvalidTransaction", err)
	}
}

func TestCheckoutIdempotentReplay(t *testing.T) {
	svc := newTestService()
	req := domain.CheckoutRequest{
		IdempotencyKey: "idem-replay",
		PaymentMethod:  "cash",
		CashReceived:   200000,
		Cart: []domain.CheckoutCartLine{
			{ServiceID: "svc-facial", Qty: 1, ServedBy: "Citra"},
		},
	}

	first, err := svc.Checkout(kasirCtx(), req)
	if err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}
	second, err := svc.Checkout(kasirCtx(), req)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("expected replay to be flagged duplicate")
	}
	if second.TransactionID != first.TransactionID {
		t.Fatalf("replay returned different transaction: %s vs %s", second.TransactionID, first.TransactionID)
	}
}

func TestCheckoutRetailDecrementsStock(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(kasirCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-retail",
		PaymentMethod:  "qris",
		Retail: []domain.CheckoutRetailLine{
			{ProductID: "prd-serum", Qty: 2, ServedBy: "Ani"},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	products, err := svc.ListProducts(context.Background(), "outlet-pusat")
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	for _, p := range products {
		if p.ID == "prd-serum" && p.Stock != 23 {
			t.Fatalf("serum stock = %d, want 23", p.Stock)
		}
	}
}

func TestCheckoutRetailInsufficientStock(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(kasirCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-oversell",
		PaymentMethod:  "cash",
		CashReceived:   100000000,
		Retail: []domain.CheckoutRetailLine{
			{ProductID: "prd-serum", Qty: 999, ServedBy: "Ani"},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
}

func TestVoidTransactionRestocks(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Checkout(kasirCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-void",
		PaymentMethod:  "cash",
		CashReceived:   500000,
		Retail: []domain.CheckoutRetailLine{
			{ProductID: "prd-tonic", Qty: 3, ServedBy: "Budi"},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	voided, err := svc.VoidTransaction(adminCtx(), domain.VoidTransactionRequest{
		TransactionID: resp.TransactionID,
		Reason:        "input error",
	})
	if err != nil {
		t.Fatalf("void failed: %v", err)
	}
	if voided.Status != domain.TxStatusVoided {
		t.Fatalf("status = %s, want voided", voided.Status)
	}

	// Second void must be rejected.
	if _, err := svc.VoidTransaction(adminCtx(), domain.VoidTransactionRequest{TransactionID: resp.TransactionID}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("double void err = %v, want ErrInvalidTransaction", err)
	}

	products, err := svc.ListProducts(context.Background(), "outlet-pusat")
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	for _, p := range products {
		if p.ID == "prd-tonic" && p.Stock != 50 {
			t.Fatalf("tonic stock after void = %d, want 50", p.Stock)
		}
	}
}

func TestSyncOfflineStatuses(t *testing.T) {
	svc := newTestService()

	// Pre-apply one checkout so the first replayed entry is a duplicate.
	if _, err := svc.Checkout(kasirCtx(), domain.CheckoutRequest{
		IdempotencyKey: "client-tx-1",
		PaymentMethod:  "cash",
		CashReceived:   100000,
		Cart:           []domain.CheckoutCartLine{{ServiceID: "svc-potong", Qty: 1, ServedBy: "Ani"}},
	}); err != nil {
		t.Fatalf("seed checkout failed: %v", err)
	}

	resp, err := svc.SyncOffline(kasirCtx(), domain.OfflineSyncRequest{
		OutletID:   "outlet-pusat",
		EnvelopeID: "env-1",
		Transactions: []domain.OfflineTransaction{
			{ClientTransactionID: "client-tx-1", Checkout: domain.CheckoutRequest{
				PaymentMethod: "cash", CashReceived: 100000,
				Cart: []domain.CheckoutCartLine{{ServiceID: "svc-potong", Qty: 1, ServedBy: "Ani"}},
			}},
			{ClientTransactionID: "client-tx-2", Checkout: domain.CheckoutRequest{
				PaymentMethod: "cash", CashReceived: 100000,
				Cart: []domain.CheckoutCartLine{{ServiceID: "svc-cuci-blow", Qty: 1, ServedBy: "Budi"}},
			}},
			{ClientTransactionID: "client-tx-3", Checkout: domain.CheckoutRequest{
				PaymentMethod: "cash", CashReceived: 1,
				Cart: []domain.CheckoutCartLine{{ServiceID: "svc-facial", Qty: 1, ServedBy: "Citra"}},
			}},
		},
	})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if len(resp.Statuses) != 3 {
		t.Fatalf("got %d statuses, want 3", len(resp.Statuses))
	}
	if resp.Statuses[0].Status != domain.SyncStatusDuplicate {
		t.Fatalf("first status = %s, want duplicate", resp.Statuses[0].Status)
	}
	if resp.Statuses[1].Status != domain.SyncStatusApplied {
		t.Fatalf("second status = %s, want applied", resp.Statuses[1].Status)
	}
	if resp.Statuses[2].Status != domain.SyncStatusRejected {
		t.Fatalf("third status = %s, want rejected", resp.Statuses[2].Status)
	}
}

func TestClockInInsideGeofence(t *testing.T) {
	svc := newTestService()

	resp, err := svc.ClockIn(kasirCtx(), domain.ClockInRequest{
		OutletID:  "outlet-pusat",
		StaffID:   "stf-ani",
		Latitude:  -6.200100,
		Longitude: 106.816700,
		PhotoURL:  "https://cdn.example.com/selfie.jpg",
	})
	if err != nil {
		t.Fatalf("clock in failed: %v", err)
	}
	att := resp.Attendance
	if att.StaffName != "Ani" {
		t.Fatalf("staff name = %q, want Ani", att.StaffName)
	}
	if att.Status != domain.AttendanceStatusHadir && att.Status != domain.AttendanceStatusTelat {
		t.Fatalf("unexpected status %q", att.Status)
	}
	if att.Date == "" {
		t.Fatalf("expected attendance date to be set")
	}

	// Same staff cannot clock in twice on one day.
	_, err = svc.ClockIn(kasirCtx(), domain.ClockInRequest{
		OutletID: "outlet-pusat", StaffID: "stf-ani",
		Latitude: -6.200100, Longitude: 106.816700,
	})
	if !errors.Is(err, store.ErrAlreadyClockedIn) {
		t.Fatalf("second clock in err = %v, want ErrAlreadyClockedIn", err)
	}
}

func TestClockInOutsideGeofenceRejected(t *testing.T) {
	svc := newTestService()

	// Roughly 5km away from the outlet.
	_, err := svc.ClockIn(kasirCtx(), domain.ClockInRequest{
		OutletID:  "outlet-pusat",
		StaffID:   "stf-budi",
		Latitude:  -6.245,
		Longitude: 106.816666,
	})
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("err = %v, want ErrInvalidTransaction", err)
	}
}

func TestClockOutRequiresClockIn(t *testing.T) {
	svc := newTestService()

	_, err := svc.ClockOut(kasirCtx(), domain.ClockOutRequest{
		OutletID: "outlet-pusat",
		StaffID:  "stf-citra",
	})
	if !errors.Is(err, store.ErrNotClockedIn) {
		t.Fatalf("err = %v, want ErrNotClockedIn", err)
	}
}

func TestRevenuePivotOmset(t *testing.T) {
	svc := newTestService()

	if _, err := svc.Checkout(kasirCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-pivot",
		PaymentMethod:  "cash",
		CashReceived:   500000,
		Cart: []domain.CheckoutCartLine{
			{ServiceID: "svc-creambath", Qty: 1, ServedBy: "Ani, Budi"},
		},
	}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	today := report.DayKey(time.Now(), jakarta)
	table, err := svc.RevenuePivot(context.Background(), ReportOmset, "outlet-pusat", "", today, today)
	if err != nil {
		t.Fatalf("pivot failed: %v", err)
	}
	if len(table.Staff) != 2 {
		t.Fatalf("staff = %v, want two columns", table.Staff)
	}
	grand := table.Rows[len(table.Rows)-1]
	if grand.Date != report.TotalRowDate {
		t.Fatalf("last row = %q, want Total", grand.Date)
	}
	if grand.Total.Revenue != 90000 {
		t.Fatalf("grand revenue = %v, want 90000", grand.Total.Revenue)
	}
	if grand.Cells["Ani"].Revenue != 45000 {
		t.Fatalf("Ani share = %v, want 45000", grand.Cells["Ani"].Revenue)
	}
}

func TestRevenuePivotExcludesVoided(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Checkout(kasirCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-pivot-void",
		PaymentMethod:  "cash",
		CashReceived:   500000,
		Cart: []domain.CheckoutCartLine{
			{ServiceID: "svc-facial", Qty: 1, ServedBy: "Citra"},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if _, err := svc.VoidTransaction(adminCtx(), domain.VoidTransactionRequest{TransactionID: resp.TransactionID, Reason: "test"}); err != nil {
		t.Fatalf("void failed: %v", err)
	}

	today := report.DayKey(time.Now(), jakarta)
	table, err := svc.RevenuePivot(context.Background(), ReportOmset, "outlet-pusat", "", today, today)
	if err != nil {
		t.Fatalf("pivot failed: %v", err)
	}
	if len(table.Staff) != 0 {
		t.Fatalf("voided transaction leaked into pivot: %v", table.Staff)
	}
}

func TestRevenuePivotRetailCommission(t *testing.T) {
	svc := newTestService()

	if _, err := svc.Checkout(kasirCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-retail-pivot",
		PaymentMethod:  "card",
		Retail: []domain.CheckoutRetailLine{
			{ProductID: "prd-serum", Qty: 1, ServedBy: "Ani, Budi"},
		},
	}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	today := report.DayKey(time.Now(), jakarta)
	table, err := svc.RevenuePivot(context.Background(), ReportRetail, "outlet-pusat", "", today, today)
	if err != nil {
		t.Fatalf("pivot failed: %v", err)
	}
	grand := table.Rows[len(table.Rows)-1]
	if grand.Cells["Ani"].Commission != 7500 {
		t.Fatalf("Ani commission = %v, want 7500", grand.Cells["Ani"].Commission)
	}
	if grand.Total.Revenue != 120000 {
		t.Fatalf("grand revenue = %v, want 120000", grand.Total.Revenue)
	}
}

func TestRevenuePivotCategoryFilter(t *testing.T) {
	svc := newTestService()

	if _, err := svc.Checkout(kasirCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-filter-pivot",
		PaymentMethod:  "cash",
		CashReceived:   500000,
		Cart: []domain.CheckoutCartLine{
			{ServiceID: "svc-creambath", Qty: 1, ServedBy: "Ani"},
			{ServiceID: "svc-potong", Qty: 1, ServedBy: "Budi"},
		},
	}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	today := report.DayKey(time.Now(), jakarta)
	table, err := svc.RevenuePivot(context.Background(), ReportOmset, "outlet-pusat", "cat-rambut", today, today)
	if err != nil {
		t.Fatalf("pivot failed: %v", err)
	}
	if len(table.Staff) != 1 || table.Staff[0] != "Budi" {
		t.Fatalf("staff = %v, want only Budi", table.Staff)
	}
	grand := table.Rows[len(table.Rows)-1]
	if grand.Total.Revenue != 55000 {
		t.Fatalf("grand revenue = %v, want 55000", grand.Total.Revenue)
	}
}

func TestRevenuePivotInvertedRange(t *testing.T) {
	svc := newTestService()

	table, err := svc.RevenuePivot(context.Background(), ReportOmset, "outlet-pusat", "", "2026-03-12", "2026-03-10")
	if err != nil {
		t.Fatalf("pivot failed: %v", err)
	}
	if len(table.Rows) != 1 || table.Rows[0].Date != report.TotalRowDate {
		t.Fatalf("inverted range should produce only the Total row, got %+v", table.Rows)
	}
}

func TestDailySummaryGroupsByPayment(t *testing.T) {
	svc := newTestService()

	for i, method := range []string{"cash", "cash", "qris"} {
		req := domain.CheckoutRequest{
			IdempotencyKey: "idem-sum-" + string(rune('a'+i)),
			PaymentMethod:  method,
			CashReceived:   500000,
			Cart:           []domain.CheckoutCartLine{{ServiceID: "svc-potong", Qty: 1, ServedBy: "Ani"}},
		}
		if _, err := svc.Checkout(kasirCtx(), req); err != nil {
			t.Fatalf("checkout %d failed: %v", i, err)
		}
	}

	summary, err := svc.DailySummary(context.Background(), "outlet-pusat", "")
	if err != nil {
		t.Fatalf("daily summary failed: %v", err)
	}
	if summary.Transactions != 3 {
		t.Fatalf("transactions = %d, want 3", summary.Transactions)
	}
	if summary.GrossSales != 165000 {
		t.Fatalf("gross sales = %d, want 165000", summary.GrossSales)
	}
	if len(summary.ByPayment) != 2 {
		t.Fatalf("payment groups = %d, want 2", len(summary.ByPayment))
	}
	if summary.ByPayment[0].PaymentMethod != "cash" || summary.ByPayment[0].Transactions != 2 {
		t.Fatalf("unexpected cash group: %+v", summary.ByPayment[0])
	}
}

func TestAttendanceMatrix(t *testing.T) {
	svc := newTestService()

	if _, err := svc.ClockIn(kasirCtx(), domain.ClockInRequest{
		OutletID: "outlet-pusat", StaffID: "stf-ani",
		Latitude: -6.200100, Longitude: 106.816700,
	}); err != nil {
		t.Fatalf("clock in failed: %v", err)
	}

	today := report.DayKey(time.Now(), jakarta)
	matrix, err := svc.AttendanceMatrix(context.Background(), "outlet-pusat", today, today)
	if err != nil {
		t.Fatalf("matrix failed: %v", err)
	}
	if len(matrix.Dates) != 1 || matrix.Dates[0] != today {
		t.Fatalf("dates = %v, want [%s]", matrix.Dates, today)
	}
	if len(matrix.Rows) != 1 || matrix.Rows[0].StaffName != "Ani" {
		t.Fatalf("unexpected rows: %+v", matrix.Rows)
	}
	if _, ok := matrix.Rows[0].Days[today]; !ok {
		t.Fatalf("expected cell for %s", today)
	}
}

func TestCatalogMutationsRequireAdmin(t *testing.T) {
	svc := newTestService()

	if _, err := svc.CreateService(kasirCtx(), domain.ServiceCreateRequest{Name: "Smoothing", Price: 250000}); err == nil {
		t.Fatalf("expected non-admin service create to fail")
	}
	if _, err := svc.CreateProduct(kasirCtx(), domain.ProductCreateRequest{Name: "Vitamin", Price: 50000}); err == nil {
		t.Fatalf("expected non-admin product create to fail")
	}
	if _, err := svc.CreateStaff(kasirCtx(), domain.StaffCreateRequest{Name: "Eka"}); err == nil {
		t.Fatalf("expected non-admin staff create to fail")
	}
}

func TestCreateStaffValidatesShift(t *testing.T) {
	svc := newTestService()

	if _, err := svc.CreateStaff(adminCtx(), domain.StaffCreateRequest{Name: "Eka", Shift: "pagi"}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("err = %v, want ErrInvalidTransaction for bad shift", err)
	}
	created, err := svc.CreateStaff(adminCtx(), domain.StaffCreateRequest{Name: "Eka", Shift: "11.00 - 19.00"})
	if err != nil {
		t.Fatalf("staff create failed: %v", err)
	}
	if created.Shift != "11.00 - 19.00" {
		t.Fatalf("shift = %q", created.Shift)
	}
}

func TestBuildReceiptIncludesServers(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Checkout(kasirCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-receipt",
		PaymentMethod:  "cash",
		CashReceived:   100000,
		Cart: []domain.CheckoutCartLine{
			{ServiceID: "svc-creambath", Qty: 1, ServedBy: "Ani, Budi"},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	receipt, err := svc.BuildReceipt(context.Background(), resp.TransactionID)
	if err != nil {
		t.Fatalf("receipt failed: %v", err)
	}
	if receipt.EscposBase64 == "" {
		t.Fatalf("expected escpos payload")
	}
	if !strings.Contains(receipt.PreviewText, "Ani, Budi") {
		t.Fatalf("preview missing server names:\n%s", receipt.PreviewText)
	}
	if !strings.Contains(receipt.PreviewText, resp.InvoiceNumber) {
		t.Fatalf("preview missing invoice number")
	}
}
