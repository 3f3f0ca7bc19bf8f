package reconcile_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/receive-engine/reconcile"
)

// =============================================================================
// RESOLVE
// =============================================================================

func TestResolveDiff_KeepsQuantityAndWritesNoEvent(t *testing.T) {
	f := newFixture(t)
	f.shipment(t, "SHIP-1", line{"PO-1", "A", 200})
	out := f.receive(t, "SHIP-1", received{"A", 180})
	id := out[0].Diff.ID

	d, err := f.svc.ResolveDiff(f.ctx, id, "counted twice, accepted")
	require.NoError(t, err)
	assert.Equal(t, reconcile.DiffResolved, d.Status)
	assert.Equal(t, int64(20), d.DiffQuantity)
	assert.Equal(t, "counted twice, accepted", d.ResolutionNote)

	assert.Equal(t, int64(200), f.shipmentQty(t, "SHIP-1", "A"))

	events, err := f.svc.History(f.ctx, "SHIP-1")
	require.NoError(t, err)
	assert.Empty(t, events)

	pending, err := f.svc.PendingDiffs(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestResolveDiff_TwiceIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.shipment(t, "SHIP-1", line{"PO-1", "A", 200})
	out := f.receive(t, "SHIP-1", received{"A", 180})

	_, err := f.svc.ResolveDiff(f.ctx, out[0].Diff.ID, "ok")
	require.NoError(t, err)

	_, err = f.svc.ResolveDiff(f.ctx, out[0].Diff.ID, "again")
	assert.True(t, reconcile.IsNotFound(err))

	_, err = f.svc.ResolveDiff(f.ctx, 9999, "missing")
	assert.True(t, reconcile.IsNotFound(err))
}

func TestResolveDiff_ManualResolutionStillDerivesPending(t *testing.T) {
	// A manual acknowledgement keeps diffQuantity, so the aggregate stays
	// pending until a correction zeroes it.
	f := newFixture(t)
	f.shipment(t, "SHIP-1", line{"PO-1", "A", 200})
	out := f.receive(t, "SHIP-1", received{"A", 180})

	_, err := f.svc.ResolveDiff(f.ctx, out[0].Diff.ID, "ok")
	require.NoError(t, err)

	detail, err := f.svc.AbnormalDetail(f.ctx, "SHIP-1")
	require.NoError(t, err)
	assert.Equal(t, reconcile.AbnormalPending, detail.Status)
}

// =============================================================================
// DELETE
// =============================================================================

func TestDeleteAbnormal_RejectedWhilePending(t *testing.T) {
	// GIVEN: SHIP-1 with one pending diff
	// WHEN: deleting it
	// THEN: validation error, the note is untouched and no event exists

	f := newFixture(t)
	f.shipment(t, "SHIP-1", line{"PO-1", "A", 200})
	out := f.receive(t, "SHIP-1", received{"A", 180})

	_, err := f.svc.DeleteAbnormal(f.ctx, "SHIP-1", nil, "alice")
	require.Error(t, err)
	assert.True(t, reconcile.IsValidation(err))

	d := f.diff(t, out[0].Diff.ID)
	assert.Empty(t, d.ResolutionNote)
	assert.Nil(t, d.DeletedAt)

	events, err := f.svc.History(f.ctx, "SHIP-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDeleteAbnormal_NoDiffsIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.DeleteAbnormal(f.ctx, "SHIP-404", nil, "alice")
	assert.True(t, reconcile.IsNotFound(err))
}

func TestDeleteAbnormal_MarksDiffsAndCannotRepeat(t *testing.T) {
	f := newFixture(t)
	f.shipment(t, "SHIP-1", line{"PO-1", "A", 200})
	out := f.receive(t, "SHIP-1", received{"A", 180})

	_, err := f.svc.ProcessAbnormal(f.ctx, reconcile.ProcessRequest{
		LogisticNum: "SHIP-1", Note: "fix", POMethods: shortage("PO-1", 1),
	})
	require.NoError(t, err)

	res, err := f.svc.DeleteAbnormal(f.ctx, "SHIP-1", nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeletedCount)

	d := f.diff(t, out[0].Diff.ID)
	assert.True(t, strings.HasPrefix(d.ResolutionNote, reconcile.DeletedMarker))
	assert.Contains(t, d.ResolutionNote, "fix #M1")
	assert.NotNil(t, d.DeletedAt)
	assert.True(t, d.IsDeleted())

	_, err = f.svc.DeleteAbnormal(f.ctx, "SHIP-1", nil, "alice")
	assert.True(t, reconcile.IsValidation(err))
}

// =============================================================================
// HISTORY ORDERING
// =============================================================================

func TestHistory_ProcessThenDelete(t *testing.T) {
	// GIVEN: SHIP-1 processed with M1 and then deleted
	// WHEN: reading the history
	// THEN: two events, seq 1 (PROCESS_M1) then seq 2 (DELETED)

	f := newFixture(t)
	f.shipment(t, "SHIP-1", line{"PO-1", "A", 200})
	f.receive(t, "SHIP-1", received{"A", 180})

	_, err := f.svc.ProcessAbnormal(f.ctx, reconcile.ProcessRequest{
		LogisticNum: "SHIP-1", POMethods: shortage("PO-1", 1),
	})
	require.NoError(t, err)
	_, err = f.svc.DeleteAbnormal(f.ctx, "SHIP-1", nil, "bob")
	require.NoError(t, err)

	events, err := f.svc.History(f.ctx, "SHIP-1")
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, 1, events[0].EventSeq)
	assert.Equal(t, reconcile.EventProcessM1, events[0].EventType)
	assert.Equal(t, reconcile.DiffPending, events[0].Changes.Before.Status)
	assert.Equal(t, reconcile.DiffResolved, events[0].Changes.After.Status)

	assert.Equal(t, 2, events[1].EventSeq)
	assert.Equal(t, reconcile.EventDeleted, events[1].EventType)
	assert.Equal(t, "bob", events[1].Operator)
	require.Len(t, events[1].Changes.After.Diffs, 1)
	assert.True(t, reconcile.HasDeletedMarker(events[1].Changes.After.Diffs[0].ResolutionNote))
}

func TestHistory_EmptyIsNotAnError(t *testing.T) {
	f := newFixture(t)
	events, err := f.svc.History(f.ctx, "SHIP-404")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

// =============================================================================
// STATUS DERIVATION
// =============================================================================

func TestDeriveStatus(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name   string
		diffs  []reconcile.ReceiveDiff
		want   reconcile.AbnormalStatus
		wantOK bool
	}{
		{"no diffs", nil, "", false},
		{"open shortage", []reconcile.ReceiveDiff{{DiffQuantity: 20}}, reconcile.AbnormalPending, true},
		{"all zeroed", []reconcile.ReceiveDiff{{DiffQuantity: 0}, {DiffQuantity: 0}}, reconcile.AbnormalResolved, true},
		{"opposite signs do not cancel", []reconcile.ReceiveDiff{{DiffQuantity: 5}, {DiffQuantity: -5}}, reconcile.AbnormalPending, true},
		{"deleted column", []reconcile.ReceiveDiff{{DiffQuantity: 20, DeletedAt: &now}}, reconcile.AbnormalDeleted, true},
		{"legacy marker", []reconcile.ReceiveDiff{{ResolutionNote: reconcile.DeletedMarker + " old"}}, reconcile.AbnormalDeleted, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := reconcile.DeriveStatus(tc.diffs)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestListAbnormal_StatusFollowsLifecycle(t *testing.T) {
	// GIVEN: SHIP-1 fully corrected, SHIP-2 still short, SHIP-3 exact
	// THEN: resolved lists SHIP-1, pending lists SHIP-2, SHIP-3 never appears
	// AND: after deleting SHIP-1 it is only listed as deleted

	f := newFixture(t)
	f.shipment(t, "SHIP-1", line{"PO-1", "A", 200})
	f.shipment(t, "SHIP-2", line{"PO-2", "A", 10})
	f.shipment(t, "SHIP-3", line{"PO-3", "A", 10})
	f.receive(t, "SHIP-1", received{"A", 180})
	f.receive(t, "SHIP-2", received{"A", 9})
	f.receive(t, "SHIP-3", received{"A", 10})

	_, err := f.svc.ProcessAbnormal(f.ctx, reconcile.ProcessRequest{
		LogisticNum: "SHIP-1", POMethods: shortage("PO-1", 2),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"SHIP-1"}, f.listed(t, "resolved"))
	assert.Equal(t, []string{"SHIP-2"}, f.listed(t, "pending"))
	assert.Equal(t, []string{"SHIP-1", "SHIP-2"}, f.listed(t, ""))

	_, err = f.svc.DeleteAbnormal(f.ctx, "SHIP-1", nil, "alice")
	require.NoError(t, err)

	assert.Empty(t, f.listed(t, "resolved"))
	assert.Equal(t, []string{"SHIP-2"}, f.listed(t, "pending"))
	assert.Equal(t, []string{"SHIP-1"}, f.listed(t, "deleted"))
}

func TestListAbnormal_BadStatusFilter(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListAbnormal(f.ctx, "archived")
	assert.True(t, reconcile.IsValidation(err))
}

func (f *fixture) listed(t *testing.T, status string) []string {
	t.Helper()
	list, err := f.svc.ListAbnormal(f.ctx, status)
	require.NoError(t, err)
	out := []string{}
	for _, s := range list {
		out = append(out, s.LogisticNum)
	}
	return out
}

func TestAbnormalDetail_Summary(t *testing.T) {
	f := newFixture(t)
	f.shipment(t, "SHIP-1", line{"PO-1", "A", 200}, line{"PO-1", "B", 10}, line{"PO-1", "C", 5})
	f.receive(t, "SHIP-1", received{"A", 180}, received{"B", 15}, received{"C", 5})

	detail, err := f.svc.AbnormalDetail(f.ctx, "SHIP-1")
	require.NoError(t, err)
	assert.Len(t, detail.Items, 2)
	assert.Equal(t, reconcile.AbnormalPending, detail.Status)
	assert.Equal(t, reconcile.DetailSummary{
		TotalSKUs:     2,
		TotalDiff:     15,
		OverReceived:  5,
		UnderReceived: 20,
	}, detail.Summary)

	list, err := f.svc.ListAbnormal(f.ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].SKUCount)
}

func TestAbnormalDetail_NoDiffsIsEmpty(t *testing.T) {
	f := newFixture(t)
	detail, err := f.svc.AbnormalDetail(f.ctx, "SHIP-404")
	require.NoError(t, err)
	assert.Empty(t, detail.Items)
	assert.NotNil(t, detail.Items)
	assert.Equal(t, reconcile.DetailSummary{}, detail.Summary)
}

// =============================================================================
// END TO END
// =============================================================================

func TestScenario_ShortageCorrectedWithM2(t *testing.T) {
	f := newFixture(t)
	f.shipment(t, "SHIP-1", line{"PO-1", "A", 200})

	out := f.receive(t, "SHIP-1", received{"A", 180})
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Diff)
	assert.Equal(t, int64(20), out[0].Diff.DiffQuantity)

	res, err := f.svc.ProcessAbnormal(f.ctx, reconcile.ProcessRequest{
		LogisticNum: "SHIP-1",
		POMethods:   shortage("PO-1", 2),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ProcessedCount)

	assert.Equal(t, int64(180), f.shipmentQty(t, "SHIP-1", "A"))
	assert.Equal(t, int64(180), f.poQty(t, "PO-1", "A"))

	events, err := f.svc.History(f.ctx, "SHIP-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, reconcile.EventProcessM2, events[0].EventType)
	assert.Equal(t, 1, events[0].EventSeq)

	assert.Contains(t, f.listed(t, "resolved"), "SHIP-1")
	assert.NoError(t, f.svc.VerifyLedger(f.ctx, ""))
}
