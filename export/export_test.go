package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sukino/stockledger"
	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/purchase"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func snapshot() *stockledger.Snapshot {
	at := time.Date(2025, 6, 10, 3, 30, 0, 0, time.UTC)
	p := &purchase.Aggregate{
		ID: id.NewPurchaseID(), Branch: "Cochin", Description: "Rice, Basmati",
		Vendor: "Metro", BillNo: "B-1", BillAmount: decimal.RequireFromString("1450.50"),
		Qty: decimal.NewFromInt(5), UnitOfMeasure: "kg", ExpiryDate: "2025-12-01",
		PreviousTotal: decimal.NewFromInt(10), NewTotal: decimal.NewFromInt(15),
	}
	p.UpdatedAt = at
	c := &consumption.Aggregate{
		ID: id.NewConsumptionID(), Branch: "Cochin", Description: "Rice, Basmati",
		Qty: decimal.NewFromInt(2), TotalConsumed: decimal.NewFromInt(6), Balance: decimal.NewFromInt(9),
	}
	c.UpdatedAt = at
	return &stockledger.Snapshot{
		Branch:       "Cochin",
		Purchases:    []*purchase.Aggregate{p},
		Consumptions: []*consumption.Aggregate{c},
	}
}

func readCSV(t *testing.T, b []byte) [][]string {
	t.Helper()
	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, snapshot(), Options{Location: ist}))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"PURCHASES"}, rows[0])
	assert.Equal(t, purchaseHeader, rows[1])
	assert.Equal(t, []string{
		"2025-06-10 09:00:00", "Rice, Basmati", "Metro", "B-1", "1450.5", "5",
		"2025-12-01", "10", "15", "Cochin",
	}, rows[2])
	assert.Equal(t, []string{"CONSUMPTIONS"}, rows[3])
	assert.Equal(t, consumptionHeader, rows[4])
	assert.Equal(t, []string{"2025-06-10 09:00:00", "Rice, Basmati", "2", "6", "9", "Cochin"}, rows[5])
}

func TestWriteCSVScope(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, snapshot(), Options{Scope: ScopeConsumption}))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"CONSUMPTIONS"}, rows[0])
	assert.Equal(t, "2025-06-10 03:30:00", rows[2][0])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, snapshot(), Options{Location: ist}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetPurchases, SheetConsumptions}, f.GetSheetList())

	rows, err := f.GetRows(SheetPurchases)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, purchaseHeader, rows[0])
	assert.Equal(t, "Rice, Basmati", rows[1][1])
	assert.Equal(t, "15", rows[1][8])

	rows, err = f.GetRows(SheetConsumptions)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "9", rows[1][4])
}

func TestWriteXLSXSingleSheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, snapshot(), Options{Scope: ScopePurchase}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetPurchases}, f.GetSheetList())
}

func TestParse(t *testing.T) {
	s, err := ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeAll, s)
	s, err = ParseScope(" Purchase ")
	require.NoError(t, err)
	assert.Equal(t, ScopePurchase, s)
	_, err = ParseScope("stock")
	assert.Error(t, err)

	f, err := ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	at := time.Date(2025, 6, 10, 3, 30, 5, 0, time.UTC)
	assert.Equal(t, "inventory_export_all_2025-06-10-03-30-05.csv", Filename(FormatCSV, ScopeAll, at))
	assert.Equal(t, FormatXLSX.ContentType(), "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}
