// Package export renders a branch snapshot as CSV or as an XLSX workbook.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/sukino/stockledger"
	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/purchase"
)

// Scope selects which tables an export contains.
type Scope string

const (
	ScopeAll         Scope = "all"
	ScopePurchase    Scope = "purchase"
	ScopeConsumption Scope = "consumption"
)

// ParseScope maps a query value to a Scope. Empty means ScopeAll.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeAll:
		return ScopeAll, nil
	case ScopePurchase:
		return ScopePurchase, nil
	case ScopeConsumption:
		return ScopeConsumption, nil
	}
	return "", fmt.Errorf("export: unknown type %q", s)
}

func (s Scope) purchases() bool    { return s == ScopeAll || s == ScopePurchase }
func (s Scope) consumptions() bool { return s == ScopeAll || s == ScopeConsumption }

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a query value to a Format. Empty means FormatCSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("export: unknown format %q", s)
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename is the download name for an export taken at t.
func Filename(f Format, s Scope, t time.Time) string {
	return fmt.Sprintf("inventory_export_%s_%s.%s", s, t.UTC().Format("2006-01-02-15-04-05"), f)
}

// Column headers.
var (
	purchaseHeader    = []string{"Date", "Item", "Vendor", "BillNo", "BillAmount", "Qty", "Expiry", "OldStock", "TotalStock", "Branch"}
	consumptionHeader = []string{"Date", "Item", "LastConsumed", "TotalConsumed", "Balance", "Branch"}
)

const dateLayout = "2006-01-02 15:04:05"

// Options controls rendering.
type Options struct {
	Scope Scope
	// Location renders row dates. Nil means UTC.
	Location *time.Location
}

func (o Options) loc() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func (o Options) scope() Scope {
	if o.Scope == "" {
		return ScopeAll
	}
	return o.Scope
}

// Write renders snap in format f.
func Write(w io.Writer, f Format, snap *stockledger.Snapshot, opts Options) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, snap, opts)
	case FormatCSV:
		return WriteCSV(w, snap, opts)
	}
	return fmt.Errorf("export: unknown format %q", f)
}

// WriteCSV writes PURCHASES and CONSUMPTIONS sections, each a title row, a
// header row, and one row per aggregate.
func WriteCSV(w io.Writer, snap *stockledger.Snapshot, opts Options) error {
	cw := csv.NewWriter(w)
	loc := opts.loc()

	if opts.scope().purchases() {
		_ = cw.Write([]string{"PURCHASES"})
		_ = cw.Write(purchaseHeader)
		for _, p := range snap.Purchases {
			_ = cw.Write(purchaseRow(p, loc))
		}
		_ = cw.Write(nil)
	}
	if opts.scope().consumptions() {
		_ = cw.Write([]string{"CONSUMPTIONS"})
		_ = cw.Write(consumptionHeader)
		for _, c := range snap.Consumptions {
			_ = cw.Write(consumptionRow(c, loc))
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: write csv: %w", err)
	}
	return nil
}

func purchaseRow(p *purchase.Aggregate, loc *time.Location) []string {
	return []string{
		formatDate(p.UpdatedAt, loc), p.Description, p.Vendor, p.BillNo,
		p.BillAmount.String(), p.Qty.String(), p.ExpiryDate,
		p.PreviousTotal.String(), p.NewTotal.String(), p.Branch,
	}
}

func consumptionRow(c *consumption.Aggregate, loc *time.Location) []string {
	return []string{
		formatDate(c.UpdatedAt, loc), c.Description,
		c.Qty.String(), c.TotalConsumed.String(), c.Balance.String(), c.Branch,
	}
}

func formatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(dateLayout)
}

// Sheet names.
const (
	SheetPurchases    = "Purchases"
	SheetConsumptions = "Consumptions"
)

// WriteXLSX writes a workbook with one sheet per selected table. Quantities
// are numeric cells.
func WriteXLSX(w io.Writer, snap *stockledger.Snapshot, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	loc := opts.loc()
	var sheets []string

	if opts.scope().purchases() {
		rows := make([][]any, 0, len(snap.Purchases))
		for _, p := range snap.Purchases {
			rows = append(rows, []any{
				formatDate(p.UpdatedAt, loc), p.Description, p.Vendor, p.BillNo,
				num(p.BillAmount), num(p.Qty), p.ExpiryDate,
				num(p.PreviousTotal), num(p.NewTotal), p.Branch,
			})
		}
		if err := fillSheet(f, SheetPurchases, purchaseHeader, rows); err != nil {
			return err
		}
		sheets = append(sheets, SheetPurchases)
	}
	if opts.scope().consumptions() {
		rows := make([][]any, 0, len(snap.Consumptions))
		for _, c := range snap.Consumptions {
			rows = append(rows, []any{
				formatDate(c.UpdatedAt, loc), c.Description,
				num(c.Qty), num(c.TotalConsumed), num(c.Balance), c.Branch,
			})
		}
		if err := fillSheet(f, SheetConsumptions, consumptionHeader, rows); err != nil {
			return err
		}
		sheets = append(sheets, SheetConsumptions)
	}

	// NewFile starts with Sheet1; drop it once the real sheets exist.
	if idx, err := f.GetSheetIndex(sheets[0]); err == nil {
		f.SetActiveSheet(idx)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("export: xlsx: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write xlsx: %w", err)
	}
	return nil
}

func fillSheet(f *excelize.File, name string, header []string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("export: xlsx sheet %s: %w", name, err)
	}
	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &head); err != nil {
		return fmt.Errorf("export: xlsx header %s: %w", name, err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &r); err != nil {
			return fmt.Errorf("export: xlsx row %s: %w", cell, err)
		}
	}
	return nil
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
