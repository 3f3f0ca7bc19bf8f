package reconcile_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/receive-engine/fifo"
	"github.com/warp/receive-engine/reconcile"
)

// =============================================================================
// DIFF DETECTION
// =============================================================================

func TestSubmitReceive_ShortageCreatesPositiveDiff(t *testing.T) {
	// GIVEN: SHIP-1 sent 200 of A
	// WHEN: 180 are received
	// THEN: one receive (sent 200, received 180) and one pending diff of +20

	f := newFixture(t)
	f.shipment(t, "SHIP-1", line{"PO-1", "A", 200})

	out := f.receive(t, "SHIP-1", received{"A", 180})

	require.Len(t, out, 1)
	assert.Equal(t, int64(200), out[0].SentQuantity)
	assert.Equal(t, int64(180), out[0].ReceiveQuantity)
	assert.Equal(t, "PO-1", out[0].PONum)
	assert.Equal(t, "warehouse", out[0].Operator)

	diffs, err := f.svc.DiffsByReceive(f.ctx, out[0].ID)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, int64(20), diffs[0].DiffQuantity)
	assert.True(t, diffs[0].IsShortage())
	assert.Equal(t, reconcile.DiffPending, diffs[0].Status)
}

func TestSubmitReceive_OverageCreatesNegativeDiff(t *testing.T) {
	f := newFixture(t)
	f.shipment(t, "SHIP-1", line{"PO-1", "A", 100})

	out := f.receive(t, "SHIP-1", received{"A", 120})

	require.NotNil(t, out[0].Diff)
	assert.Equal(t, int64(-20), out[0].Diff.DiffQuantity)
	assert.True(t, out[0].Diff.IsOverage())
}

func TestSubmitReceive_ExactMatchCreatesNoDiff(t *testing.T) {
	f := newFixture(t)
	f.shipment(t, "SHIP-1", line{"PO-1", "A", 200})

	out := f.receive(t, "SHIP-1", received{"A", 200})

	assert.Nil(t, out[0].Diff)
	diffs, err := f.svc.DiffsByReceive(f.ctx, out[0].ID)
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestSubmitReceive_SKUsEvaluatedIndependently(t *testing.T) {
	// GIVEN: A and B on the same shipment
	// WHEN: A is received exactly and B short
	// THEN: only B has a diff

	f := newFixture(t)
	f.shipment(t, "SHIP-1", line{"PO-1", "A", 100}, line{"PO-1", "B", 50})

	f.receive(t, "SHIP-1", received{"A", 100}, received{"B", 45})

	pending, err := f.svc.PendingDiffs(f.ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "B", pending[0].SKU)
	assert.Equal(t, int64(5), pending[0].DiffQuantity)
}

func TestSubmitReceive_MissingShipmentItemRollsBackEverything(t *testing.T) {
	// GIVEN: SHIP-1 only ships A
	// WHEN: a submission carries A and an unknown Z
	// THEN: NotFound, and neither the A receive nor its ledger rows exist

	f := newFixture(t)
	sh := f.shipment(t, "SHIP-1", line{"PO-1", "A", 200})

	_, err := f.svc.SubmitReceive(f.ctx, reconcile.ReceiveSubmission{
		LogisticNum: "SHIP-1",
		Items: []reconcile.ReceiveLine{
			{SKU: "A", ReceiveQuantity: 180, UnitPrice: price, ReceiveDate: jan1},
			{SKU: "Z", ReceiveQuantity: 1, UnitPrice: price, ReceiveDate: jan1},
		},
	})
	require.Error(t, err)
	assert.True(t, reconcile.IsNotFound(err))

	receives, err := f.svc.ReceivesByShipment(f.ctx, sh.ID)
	require.NoError(t, err)
	assert.Empty(t, receives)

	txs, err := f.store.Transactions(f.ctx, "")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestSubmitReceive_Validation(t *testing.T) {
	f := newFixture(t)
	f.shipment(t, "SHIP-1", line{"PO-1", "A", 200})

	ok := reconcile.ReceiveLine{SKU: "A", ReceiveQuantity: 1, UnitPrice: price, ReceiveDate: jan1}
	negative := ok
	negative.ReceiveQuantity = -1
	noDate := ok
	noDate.ReceiveDate = time.Time{}

	cases := map[string]reconcile.ReceiveSubmission{
		"no logistic num": {Items: []reconcile.ReceiveLine{ok}},
		"no items":        {LogisticNum: "SHIP-1"},
		"negative qty":    {LogisticNum: "SHIP-1", Items: []reconcile.ReceiveLine{negative}},
		"duplicate sku":   {LogisticNum: "SHIP-1", Items: []reconcile.ReceiveLine{ok, ok}},
		"missing date":    {LogisticNum: "SHIP-1", Items: []reconcile.ReceiveLine{noDate}},
	}
	for name, sub := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SubmitReceive(f.ctx, sub)
			require.Error(t, err)
			assert.True(t, reconcile.IsValidation(err), err.Error())
		})
	}
}

// =============================================================================
// LEDGER
// =============================================================================

func TestSubmitReceive_WritesLinkedLedgerRows(t *testing.T) {
	f := newFixture(t)
	f.shipment(t, "SHIP-1", line{"PO-1", "A", 200}, line{"PO-1", "B", 10})

	f.receive(t, "SHIP-1", received{"A", 180}, received{"B", 0})

	txs, err := f.store.Transactions(f.ctx, "")
	require.NoError(t, err)
	require.Len(t, txs, 1, "zero-quantity lines are not posted")
	assert.Equal(t, fifo.ReceiveRefKey("SHIP-1", "A"), txs[0].RefKey)
	assert.Equal(t, fifo.TranTypePurchase, txs[0].TranType)
	assert.Contains(t, txs[0].Note, "SHIP-1")

	layers, err := f.svc.FifoLayers(f.ctx, "A")
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, int64(180), layers[0].QtyIn)
	assert.Equal(t, int64(180), layers[0].QtyRemaining)
	assert.True(t, layers[0].UnitCost.Equal(price))
	assert.True(t, layers[0].LandedCost.Equal(price))
	require.NotNil(t, layers[0].Transaction)
	assert.Equal(t, layers[0].InTranID, layers[0].Transaction.ID)
	require.NotNil(t, layers[0].LandedPrice)
	assert.Equal(t, "PO-1", layers[0].LandedPrice.PONum)

	prices, err := f.store.LandedPrices(f.ctx, "A")
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.True(t, prices[0].BasePriceUSD.Equal(prices[0].LandedPriceUSD))

	assert.NoError(t, f.svc.VerifyLedger(f.ctx, ""))
}

func TestSubmitReceive_ResubmissionIsConflict(t *testing.T) {
	// GIVEN: a receive of A on SHIP-1 has been recorded
	// WHEN: the identical payload is submitted again
	// THEN: Conflict, and still one receive, one pending diff and one ledger
	//       transaction

	f := newFixture(t)
	sh := f.shipment(t, "SHIP-1", line{"PO-1", "A", 200}, line{"PO-1", "B", 50})

	first := f.receive(t, "SHIP-1", received{"A", 180})

	_, err := f.svc.SubmitReceive(f.ctx, reconcile.ReceiveSubmission{
		LogisticNum: "SHIP-1",
		Items: []reconcile.ReceiveLine{
			{SKU: "B", ReceiveQuantity: 50, UnitPrice: price, ReceiveDate: jan1},
			{SKU: "A", ReceiveQuantity: 180, UnitPrice: price, ReceiveDate: jan1},
		},
	})
	require.Error(t, err)
	assert.True(t, reconcile.IsConflict(err))

	receives, err := f.svc.ReceivesByShipment(f.ctx, sh.ID)
	require.NoError(t, err)
	require.Len(t, receives, 1, "B must roll back with the rejected line")
	assert.Equal(t, first[0].ID, receives[0].ID)

	pending, err := f.svc.PendingDiffs(f.ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	txs, err := f.store.Transactions(f.ctx, "")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

// =============================================================================
// READS
// =============================================================================

func TestReads_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ReceivesByShipment(f.ctx, 42)
	assert.True(t, reconcile.IsNotFound(err))

	_, err = f.svc.DiffsByReceive(f.ctx, 42)
	assert.True(t, reconcile.IsNotFound(err))
}
