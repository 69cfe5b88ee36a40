package observability

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sukino/stockledger"
	"github.com/sukino/stockledger/access"
	"github.com/sukino/stockledger/plugin"
	"github.com/sukino/stockledger/store/memory"
	"github.com/sukino/stockledger/types"
)

func TestMetricsThroughLedger(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsExtension(NewPrometheusFactory(reg))

	ctx := context.Background()
	l := stockledger.New(memory.New(), stockledger.WithPlugin(m))
	require.NoError(t, l.Start(ctx))
	defer l.Stop()

	ctx = access.WithPrincipal(ctx, access.Principal{Name: "Asha", Role: access.RoleAdmin})
	_, err := l.RecordPurchase(ctx, stockledger.PurchaseInput{
		Branch: "Cochin", Description: "Oil", Vendor: "Metro",
		BillNo: "B-2", BillAmount: "300", Qty: "4", UnitOfMeasure: "l",
	})
	require.NoError(t, err)
	_, err = l.RecordConsumption(ctx, stockledger.ConsumptionInput{Branch: "Cochin", Description: "oil", Qty: "1.5"})
	require.NoError(t, err)
	_, err = l.RecordConsumption(ctx, stockledger.ConsumptionInput{Branch: "Cochin", Description: "oil", Qty: "10"})
	require.Error(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, 1.0, counterValue(t, mfs, "stockledger_purchase_recorded_total"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "stockledger_consumption_recorded_total"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "stockledger_consumption_rejected_total"))

	h := family(t, mfs, "stockledger_consumption_qty").GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(1), h.GetSampleCount())
	assert.Equal(t, 1.5, h.GetSampleSum())
}

func TestMergeSummaryCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsExtension(NewPrometheusFactory(reg))

	err := m.OnDuplicatesMerged(context.Background(), plugin.MergeSummary{
		Branch: "Cochin", Kind: types.KindPurchase, GroupsMerged: 2, RowsMoved: 5, GroupsFailed: 1,
	})
	require.NoError(t, err)
	require.NoError(t, m.OnWriteConflict(context.Background(), types.KindPurchase, "Cochin", "oil", 1))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Equal(t, 2.0, counterValue(t, mfs, "stockledger_merge_groups_total"))
	assert.Equal(t, 5.0, counterValue(t, mfs, "stockledger_merge_rows_moved_total"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "stockledger_merge_failures_total"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "stockledger_write_conflicts_total"))
}

func TestFactoriesShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewPrometheusFactory(reg).Counter("stockledger.store.errors")
	b := NewPrometheusFactory(reg).Counter("stockledger.store.errors")
	a.Inc()
	b.Inc()

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Equal(t, 2.0, counterValue(t, mfs, "stockledger_store_errors_total"))
}

func family(t *testing.T, mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	require.FailNow(t, fmt.Sprintf("metric %q not found", name))
	return nil
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name string) float64 {
	t.Helper()
	return family(t, mfs, name).GetMetric()[0].GetCounter().GetValue()
}
