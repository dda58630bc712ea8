// Package report builds the date-by-staff revenue pivot used by the omset
// and retail commission reports. All functions are pure; callers pass the
// location used for calendar-day bucketing.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/onecoderchamps/kasir-app/internal/domain"
)

// TotalRowDate labels the synthetic summary row appended to every pivot.
const TotalRowDate = "Total"

// DateLayout is the calendar-day key format used throughout reporting.
const DateLayout = "2006-01-02"

// Record is one staff member's share of one sold line. Revenue and Commission
// are exact fractional shares; they are summed before any display rounding.
type Record struct {
	Date       string
	StaffName  string
	Revenue    float64
	Commission float64
}

// DayKey buckets a timestamp into its calendar day in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// CartRecords expands a transaction's service lines into per-staff shares.
// Each line's price is divided evenly across its servers; service lines carry
// no commission.
func CartRecords(tx domain.Transaction, loc *time.Location) []Record {
	day := DayKey(tx.Date, loc)
	var out []Record
	for _, line := range tx.Cart {
		out = append(out, splitLine(day, line.ServedBy, line.Price, 0)...)
	}
	return out
}

// RetailRecords expands a transaction's retail lines the same way, splitting
// both the price and the commission across the servers.
func RetailRecords(tx domain.Transaction, loc *time.Location) []Record {
	day := DayKey(tx.Date, loc)
	var out []Record
	for _, line := range tx.Retail {
		out = append(out, splitLine(day, line.ServedBy, line.Price, line.Commission)...)
	}
	return out
}

// AllRecords expands both cart and retail lines.
func AllRecords(tx domain.Transaction, loc *time.Location) []Record {
	return append(CartRecords(tx, loc), RetailRecords(tx, loc)...)
}

func splitLine(day string, servedBy []string, price, commission int64) []Record {
	servers := servedBy
	if len(servers) == 0 {
		servers = []string{""}
	}
	n := float64(len(servers))
	out := make([]Record, 0, len(servers))
	for _, name := range servers {
		out = append(out, Record{
			Date:       day,
			StaffName:  name,
			Revenue:    float64(price) / n,
			Commission: float64(commission) / n,
		})
	}
	return out
}

// Cell is one (date, staff) aggregate in a pivot table.
type Cell struct {
	Revenue    float64 `json:"revenue"`
	Commission float64 `json:"commission"`
}

// Row is one date row of the pivot. Cells is keyed by staff name and holds an
// entry for every name in the table's Staff list, zero-valued when the staff
// member earned nothing that day.
type Row struct {
	Date  string          `json:"date"`
	Cells map[string]Cell `json:"cells"`
	Total Cell            `json:"total"`
}

// Table is the assembled pivot: one row per day in the requested range, in
// order, plus a trailing Total row summing every column.
type Table struct {
	Staff []string `json:"staff"`
	Rows  []Row    `json:"rows"`
}

// DateRange expands [start, end] into consecutive day keys, inclusive. Start
// and end use DateLayout. An inverted range yields no days.
func DateRange(start, end string, loc *time.Location) ([]string, error) {
	s, err := time.ParseInLocation(DateLayout, start, loc)
	if err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", start, err)
	}
	e, err := time.ParseInLocation(DateLayout, end, loc)
	if err != nil {
		return nil, fmt.Errorf("parse end date %q: %w", end, err)
	}
	var days []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days, nil
}

// BuildPivot aggregates records into a Table covering [start, end]. Records
// dated outside the range contribute nothing, not even a staff column. Staff
// names are sorted lexicographically; every row carries a cell for every
// name. The final row is the Total row.
func BuildPivot(records []Record, start, end string, loc *time.Location) (Table, error) {
	days, err := DateRange(start, end, loc)
	if err != nil {
		return Table{}, err
	}

	inRange := make(map[string]bool, len(days))
	for _, d := range days {
		inRange[d] = true
	}

	byDay := make(map[string]map[string]Cell)
	nameSet := make(map[string]bool)
	for _, rec := range records {
		if !inRange[rec.Date] {
			continue
		}
		cells := byDay[rec.Date]
		if cells == nil {
			cells = make(map[string]Cell)
			byDay[rec.Date] = cells
		}
		cell := cells[rec.StaffName]
		cell.Revenue += rec.Revenue
		cell.Commission += rec.Commission
		cells[rec.StaffName] = cell
		nameSet[rec.StaffName] = true
	}

	staff := make([]string, 0, len(nameSet))
	for name := range nameSet {
		staff = append(staff, name)
	}
	sort.Strings(staff)

	rows := make([]Row, 0, len(days)+1)
	grand := Row{Date: TotalRowDate, Cells: make(map[string]Cell, len(staff))}
	for _, name := range staff {
		grand.Cells[name] = Cell{}
	}
	for _, day := range days {
		row := Row{Date: day, Cells: make(map[string]Cell, len(staff))}
		for _, name := range staff {
			cell := byDay[day][name]
			row.Cells[name] = cell
			row.Total.Revenue += cell.Revenue
			row.Total.Commission += cell.Commission

			g := grand.Cells[name]
			g.Revenue += cell.Revenue
			g.Commission += cell.Commission
			grand.Cells[name] = g
		}
		grand.Total.Revenue += row.Total.Revenue
		grand.Total.Commission += row.Total.Commission
		rows = append(rows, row)
	}
	rows = append(rows, grand)

	return Table{Staff: staff, Rows: rows}, nil
}
