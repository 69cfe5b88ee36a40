package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sukino/stockledger/store"
	"github.com/sukino/stockledger/store/postgres"
	"github.com/sukino/stockledger/store/storetest"
)

// Runs only when STOCKLEDGER_TEST_POSTGRES_DSN points at a scratch database.
func TestConformance(t *testing.T) {
	dsn := os.Getenv("STOCKLEDGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STOCKLEDGER_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := postgres.Open(dsn, postgres.Config{MaxOpenConns: 5, Tracing: true})
		require.NoError(t, err)
		require.NoError(t, s.Migrate(context.Background()))
		for _, table := range []string{
			"stockledger_purchases",
			"stockledger_consumptions",
			"stockledger_purchase_history",
			"stockledger_consumption_history",
		} {
			require.NoError(t, s.DB().Exec("DELETE FROM "+table).Error)
		}
		return s
	})
}
