package domain

import (
	"strings"
	"time"
)

// Outlet is a physical salon location. Most records are scoped to one outlet,
// and its coordinates anchor the attendance geofence.
type Outlet struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	RadiusMeters float64   `json:"radius_meters"`
	CreatedAt    time.Time `json:"created_at"`
}

type OutletCreateRequest struct {
	Name         string  `json:"name"`
	Address      string  `json:"address"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

type Category struct {
	ID        string    `json:"id"`
	OutletID  string    `json:"outlet_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryCreateRequest struct {
	OutletID string `json:"outlet_id"`
	Name     string `json:"name"`
}

// Service is a salon treatment sold at checkout.
type Service struct {
	ID         string    `json:"id"`
	OutletID   string    `json:"outlet_id"`
	CategoryID string    `json:"category_id"`
	Name       string    `json:"name"`
	Price      int64     `json:"price"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type ServiceCreateRequest struct {
	OutletID   string `json:"outlet_id"`
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
}

type ServiceUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	CategoryID *string `json:"category_id,omitempty"`
	Price      *int64  `json:"price,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

// Product is a retail item with a per-unit commission paid to the staff who
// sell it.
type Product struct {
	ID         string    `json:"id"`
	OutletID   string    `json:"outlet_id"`
	Name       string    `json:"name"`
	Price      int64     `json:"price"`
	Commission int64     `json:"commission"`
	Stock      int       `json:"stock"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	OutletID     string `json:"outlet_id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	Commission   int64  `json:"commission"`
	InitialStock int    `json:"initial_stock"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Price      *int64  `json:"price,omitempty"`
	Commission *int64  `json:"commission,omitempty"`
	Stock      *int    `json:"stock,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

// Staff covers both therapists and cashiers. Shift is the work period string
// selected at clock-in, e.g. "09.00 - 17.00".
type Staff struct {
	ID        string    `json:"id"`
	OutletID  string    `json:"outlet_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Shift     string    `json:"shift"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type StaffCreateRequest struct {
	OutletID string `json:"outlet_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Shift    string `json:"shift"`
	PhotoURL string `json:"photo_url"`
}

type StaffUpdateRequest struct {
	Name     *string `json:"name,omitempty"`
	Role     *string `json:"role,omitempty"`
	Shift    *string `json:"shift,omitempty"`
	PhotoURL *string `json:"photo_url,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}

// CartLine is one service sold on a transaction. Price is the full amount
// charged for the line; ServedBy lists every staff member credited with it,
// parsed from the terminal's comma-separated string via ParseServedBy.
type CartLine struct {
	LineID     string   `json:"line_id"`
	ServiceID  string   `json:"service_id"`
	Name       string   `json:"name"`
	Price      int64    `json:"price"`
	Qty        int      `json:"qty"`
	CategoryID string   `json:"category_id"`
	ServedBy   []string `json:"served_by"`
}

// RetailLine is one retail product sold on a transaction. Commission is the
// full commission amount on the line, split across ServedBy in reports.
type RetailLine struct {
	LineID     string   `json:"line_id"`
	ProductID  string   `json:"product_id"`
	Name       string   `json:"name"`
	Price      int64    `json:"price"`
	Commission int64    `json:"commission"`
	Qty        int      `json:"qty"`
	ServedBy   []string `json:"served_by"`
}

type Transaction struct {
	ID              string       `json:"id"`
	OutletID        string       `json:"outlet_id"`
	InvoiceNumber   string       `json:"invoice_number"`
	Date            time.Time    `json:"date"`
	Cart            []CartLine   `json:"cart"`
	Retail          []RetailLine `json:"retail,omitempty"`
	PaymentMethod   string       `json:"payment_method"`
	Subtotal        int64        `json:"subtotal"`
	Total           int64        `json:"total"`
	CashReceived    int64        `json:"cash_received"`
	Change          int64        `json:"change"`
	Status          string       `json:"status"`
	VoidReason      string       `json:"void_reason,omitempty"`
	VoidedAt        *time.Time   `json:"voided_at,omitempty"`
	IdempotencyKey  string       `json:"idempotency_key"`
	CashierUsername string       `json:"cashier_username"`
	CreatedAt       time.Time    `json:"created_at"`
}

// CheckoutCartLine is the wire form of a cart line. ServedBy arrives as the
// comma-separated string the terminals send.
type CheckoutCartLine struct {
	ServiceID string `json:"service_id"`
	Qty       int    `json:"qty"`
	ServedBy  string `json:"served_by"`
}

type CheckoutRetailLine struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	ServedBy  string `json:"served_by"`
}

type CheckoutRequest struct {
	OutletID       string               `json:"outlet_id"`
	IdempotencyKey string               `json:"idempotency_key"`
	PaymentMethod  string               `json:"payment_method"`
	CashReceived   int64                `json:"cash_received"`
	Cart           []CheckoutCartLine   `json:"cart"`
	Retail         []CheckoutRetailLine `json:"retail,omitempty"`
}

type CheckoutResponse struct {
	TransactionID string    `json:"transaction_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Status        string    `json:"status"`
	PaymentMethod string    `json:"payment_method"`
	Subtotal      int64     `json:"subtotal"`
	Total         int64     `json:"total"`
	CashReceived  int64     `json:"cash_received"`
	Change        int64     `json:"change"`
	LineCount     int       `json:"line_count"`
	Duplicate     bool      `json:"duplicate"`
	CreatedAt     time.Time `json:"created_at"`
}

type VoidTransactionRequest struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
	ManagerPIN    string `json:"manager_pin"`
}

type VoidTransactionResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	VoidedAt      string `json:"voided_at"`
}

// OfflineTransaction is one checkout staged in a terminal's local buffer
// while the network was down.
type OfflineTransaction struct {
	ClientTransactionID string          `json:"client_transaction_id"`
	Checkout            CheckoutRequest `json:"checkout"`
}

type OfflineSyncRequest struct {
	OutletID     string               `json:"outlet_id"`
	EnvelopeID   string               `json:"envelope_id"`
	Transactions []OfflineTransaction `json:"transactions"`
}

type OfflineSyncStatus struct {
	ClientTransactionID string `json:"client_transaction_id"`
	Status              string `json:"status"`
	Reason              string `json:"reason,omitempty"`
	TransactionID       string `json:"transaction_id,omitempty"`
}

type OfflineSyncResponse struct {
	EnvelopeID string              `json:"envelope_id"`
	Statuses   []OfflineSyncStatus `json:"statuses"`
}

// Attendance is one staff member's record for one calendar day in the outlet
// timezone. Denda is the late-arrival penalty written back at clock-in.
type Attendance struct {
	ID               string     `json:"id"`
	OutletID         string     `json:"outlet_id"`
	StaffID          string     `json:"staff_id"`
	StaffName        string     `json:"staff_name"`
	Date             string     `json:"date"`
	Shift            string     `json:"shift"`
	ClockIn          time.Time  `json:"clock_in"`
	ClockOut         *time.Time `json:"clock_out,omitempty"`
	ClockInPhotoURL  string     `json:"clock_in_photo_url,omitempty"`
	ClockOutPhotoURL string     `json:"clock_out_photo_url,omitempty"`
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	DistanceMeters   float64    `json:"distance_meters"`
	MinutesLate      int        `json:"minutes_late"`
	Status           string     `json:"status"`
	Denda            int64      `json:"denda"`
}

type ClockInRequest struct {
	OutletID  string  `json:"outlet_id"`
	StaffID   string  `json:"staff_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	PhotoURL  string  `json:"photo_url"`
}

type ClockOutRequest struct {
	OutletID string `json:"outlet_id"`
	StaffID  string `json:"staff_id"`
	PhotoURL string `json:"photo_url"`
}

type AttendanceResponse struct {
	Attendance Attendance `json:"attendance"`
}

// AttendanceReportCell is one (date, staff) cell of the attendance matrix.
type AttendanceReportCell struct {
	Status string `json:"status"`
	Denda  int64  `json:"denda"`
}

type AttendanceReportRow struct {
	StaffID    string                          `json:"staff_id"`
	StaffName  string                          `json:"staff_name"`
	Days       map[string]AttendanceReportCell `json:"days"`
	TotalDenda int64                           `json:"total_denda"`
}

type AttendanceReport struct {
	OutletID  string                `json:"outlet_id"`
	StartDate string                `json:"start_date"`
	EndDate   string                `json:"end_date"`
	Dates     []string              `json:"dates"`
	Rows      []AttendanceReportRow `json:"rows"`
}

type DailySummaryPayment struct {
	PaymentMethod string `json:"payment_method"`
	Transactions  int64  `json:"transactions"`
	Total         int64  `json:"total"`
}

type DailySummary struct {
	OutletID     string                `json:"outlet_id"`
	Date         string                `json:"date"`
	Transactions int64                 `json:"transactions"`
	GrossSales   int64                 `json:"gross_sales"`
	ByPayment    []DailySummaryPayment `json:"by_payment"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	OutletID      string    `json:"outlet_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type ReceiptRequest struct {
	TransactionID string `json:"transaction_id"`
}

type ReceiptResponse struct {
	TransactionID string `json:"transaction_id"`
	EscposBase64  string `json:"escpos_base64"`
	PreviewText   string `json:"preview_text"`
	FileName      string `json:"file_name"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type User struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is the persistence model for auth credentials. Password holds
// the bcrypt hash.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	TxStatusPaid   = "paid"
	TxStatusVoided = "voided"
)

const (
	AttendanceStatusHadir = "hadir"
	AttendanceStatusTelat = "telat"
)

const (
	RoleAdmin   = "admin"
	RoleKasir   = "kasir"
	RoleTerapis = "terapis"
)

const (
	SyncStatusApplied   = "applied"
	SyncStatusDuplicate = "duplicate"
	SyncStatusRejected  = "rejected"
)

// ParseServedBy splits the comma-separated staff list carried on a sold line
// and trims each token. An empty input yields a single empty name, so a line
// always has at least one server and revenue splits never divide by zero.
// Duplicates are kept: a name listed twice earns two shares.
func ParseServedBy(raw string) []string {
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		names = append(names, strings.TrimSpace(part))
	}
	return names
}

// JoinServedBy is the inverse of ParseServedBy for display and receipts.
func JoinServedBy(names []string) string {
	return strings.Join(names, ", ")
}
