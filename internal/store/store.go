package store

import (
	"context"
	"errors"
	"time"

	"github.com/onecoderchamps/kasir-app/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrAlreadyClockedIn   = errors.New("already clocked in today")
	ErrNotClockedIn       = errors.New("not clocked in today")
)

type Repository interface {
	CreateOutlet(ctx context.Context, outlet domain.Outlet) (*domain.Outlet, error)
	GetOutletByID(ctx context.Context, id string) (*domain.Outlet, error)
	ListOutlets(ctx context.Context) ([]domain.Outlet, error)

	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	ListCategories(ctx context.Context, outletID string) ([]domain.Category, error)

	CreateService(ctx context.Context, svc domain.Service) (*domain.Service, error)
	GetServiceByID(ctx context.Context, id string) (*domain.Service, error)
	UpdateService(ctx context.Context, svc domain.Service) (*domain.Service, error)
	ListServices(ctx context.Context, outletID string) ([]domain.Service, error)

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	ListProducts(ctx context.Context, outletID string) ([]domain.Product, error)
	DecrementStock(ctx context.Context, productID string, qty int) error

	CreateStaff(ctx context.Context, staff domain.Staff) (*domain.Staff, error)
	GetStaffByID(ctx context.Context, id string) (*domain.Staff, error)
	UpdateStaff(ctx context.Context, staff domain.Staff) (*domain.Staff, error)
	ListStaff(ctx context.Context, outletID string) ([]domain.Staff, error)

	FindTransactionByIdempotency(ctx context.Context, key string) (*domain.Transaction, error)
	FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error)
	CreateCheckout(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	VoidTransaction(ctx context.Context, id string, reason string, at time.Time) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, outletID string, from time.Time, to time.Time) ([]domain.Transaction, error)

	CreateAttendance(ctx context.Context, att domain.Attendance) (*domain.Attendance, error)
	GetAttendanceForDay(ctx context.Context, staffID string, date string) (*domain.Attendance, error)
	SetClockOut(ctx context.Context, attendanceID string, at time.Time, photoURL string) (*domain.Attendance, error)
	ListAttendance(ctx context.Context, outletID string, startDate string, endDate string) ([]domain.Attendance, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, outletID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
