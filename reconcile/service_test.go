package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/receive-engine/lock"
	"github.com/warp/receive-engine/reconcile"
	"github.com/warp/receive-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	svc   *reconcile.Service
	store *sqlite.Store
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &fixture{
		svc:   reconcile.NewService(store, lock.NewLocal(), zaptest.NewLogger(t)),
		store: store,
		ctx:   context.Background(),
	}
}

var (
	jan1  = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	jan15 = time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	price = decimal.RequireFromString("3.50")
)

// line is one shipment item; the PO line of the same {po, sku} is seeded
// with the same quantity.
type line struct {
	po  string
	sku string
	qty int64
}

func (f *fixture) shipment(t *testing.T, logisticNum string, lines ...line) *reconcile.Shipment {
	t.Helper()
	sh := &reconcile.Shipment{LogisticNum: logisticNum, SentDate: &jan1, CreatedAt: jan1}
	for _, l := range lines {
		sh.Items = append(sh.Items, reconcile.ShipmentItem{PONum: l.po, SKU: l.sku, Quantity: l.qty, UnitPrice: price})
		require.NoError(t, f.store.UpsertPOItem(f.ctx, &reconcile.POItem{PONum: l.po, SKU: l.sku, Quantity: l.qty, UnitPrice: price}))
	}
	require.NoError(t, f.store.CreateShipment(f.ctx, sh))
	return sh
}

type received struct {
	sku string
	qty int64
}

func (f *fixture) receive(t *testing.T, logisticNum string, lines ...received) []reconcile.Receive {
	t.Helper()
	sub := reconcile.ReceiveSubmission{LogisticNum: logisticNum, Operator: "warehouse"}
	for _, l := range lines {
		sub.Items = append(sub.Items, reconcile.ReceiveLine{SKU: l.sku, ReceiveQuantity: l.qty, UnitPrice: price, ReceiveDate: jan1})
	}
	out, err := f.svc.SubmitReceive(f.ctx, sub)
	require.NoError(t, err)
	return out
}

func (f *fixture) shipmentQty(t *testing.T, logisticNum, sku string) int64 {
	t.Helper()
	it, err := f.store.ShipmentItem(f.ctx, logisticNum, sku)
	require.NoError(t, err)
	require.NotNil(t, it)
	return it.Quantity
}

func (f *fixture) poQty(t *testing.T, poNum, sku string) int64 {
	t.Helper()
	it, err := f.store.POItem(f.ctx, poNum, sku)
	require.NoError(t, err)
	require.NotNil(t, it)
	return it.Quantity
}

func (f *fixture) diff(t *testing.T, id int64) *reconcile.ReceiveDiff {
	t.Helper()
	d, err := f.store.Diff(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, d)
	return d
}

func code(v int) *int { return &v }

func shortage(po string, c int) map[string]reconcile.POMethod {
	return map[string]reconcile.POMethod{po: {Positive: code(c)}}
}

func overage(po string, c int) map[string]reconcile.POMethod {
	return map[string]reconcile.POMethod{po: {Negative: code(c)}}
}
