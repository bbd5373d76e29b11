package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel_sync/internal/adapters/channel"
	"hotel_sync/internal/adapters/pms"
	"hotel_sync/internal/app"
	"hotel_sync/internal/domain"
)

func seedInventory(f *fixture) {
	f.pms.avail = []pms.Availability{
		{Date: "2024-06-02", RoomTypeID: "rt2", Availability: 1, Status: "available"},
		{Date: "2024-06-02", RoomTypeID: "rt1", Availability: 3, Status: "available"},
		{Date: "2024-06-01", RoomTypeID: "rt1", Availability: 4, Status: "available"},
		{Date: "2024-06-01", RoomTypeID: "rt2", Availability: 0, Status: "unavailable"},
	}
}

func TestSyncInventory_GroupsPerChannelRoom(t *testing.T) {
	f := newFixture(t)
	seedInventory(f)
	ctx := context.Background()
	require.NoError(t, f.maps.SetMapping(ctx, "P1", domain.KindRoomType, map[string]string{"rt1": "R-B", "rt2": "R-A"}))

	res, err := f.engine.SyncInventory(ctx, "P1", mustRange(t, "2024-06-01", "2024-06-02"))
	require.NoError(t, err)
	assert.True(t, res.OK())

	require.Len(t, f.cm.availPushes, 2)
	assert.Equal(t, "R-A", f.cm.availPushes[0].Room)
	assert.Equal(t, "R-B", f.cm.availPushes[1].Room)
	assert.Equal(t, []channel.Availability{
		{Date: "2024-06-01", RoomID: "R-B", Allotment: 4, Status: "available"},
		{Date: "2024-06-02", RoomID: "R-B", Allotment: 3, Status: "available"},
	}, f.cm.availPushes[1].Batch)

	// one fetch plus one push per room
	entries := f.store.AuditEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "/properties/mc-1/availability?end_date=2024-06-02&start_date=2024-06-01", entries[0].Endpoint)
	assert.Equal(t, "/properties/yp-1/rooms/R-A/availability", entries[1].Endpoint)
	for _, e := range entries {
		assert.False(t, e.Failed())
		assert.Equal(t, 200, e.StatusCode)
		assert.Equal(t, "P1", e.PropertyID)
	}
}

func TestSyncInventory_Idempotent(t *testing.T) {
	f := newFixture(t)
	seedInventory(f)
	ctx := context.Background()
	r := mustRange(t, "2024-06-01", "2024-06-02")

	_, err := f.engine.SyncInventory(ctx, "P1", r)
	require.NoError(t, err)
	first := append([]availPush(nil), f.cm.availPushes...)
	f.cm.availPushes = nil

	// same data in a different order
	f.pms.avail[0], f.pms.avail[3] = f.pms.avail[3], f.pms.avail[0]
	_, err = f.engine.SyncInventory(ctx, "P1", r)
	require.NoError(t, err)
	assert.Equal(t, first, f.cm.availPushes)
}

func TestSyncInventory_PropertyNotFoundMakesNoCalls(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.SyncInventory(context.Background(), "missing", mustRange(t, "2024-06-01", "2024-06-02"))
	require.Error(t, err)
	assert.Equal(t, domain.CodeNotFound, res.Code)
	assert.Equal(t, "error", res.Status)
	assert.Zero(t, f.pms.calls)
	assert.Empty(t, f.store.AuditEntries())
}

func TestSyncInventory_UnlinkedPropertyIsIncomplete(t *testing.T) {
	f := newFixture(t)
	f.store.PutProperty(domain.Property{ID: "P2", PMSPropertyID: "mc-2"})
	_, err := f.engine.SyncInventory(context.Background(), "P2", mustRange(t, "2024-06-01", "2024-06-02"))
	assert.Equal(t, domain.CodeIncompleteSetup, domain.Classify(err))
}

func TestSyncInventory_FetchFailureAbortsAndIsAudited(t *testing.T) {
	f := newFixture(t)
	f.pms.fetchErr = domain.Upstream(pms.Service, 503, `{"error":"down"}`, nil)

	res, err := f.engine.SyncInventory(context.Background(), "P1", mustRange(t, "2024-06-01", "2024-06-02"))
	require.Error(t, err)
	assert.Equal(t, domain.CodeUpstream, res.Code)
	assert.Empty(t, f.cm.availPushes)

	entries := f.store.AuditEntries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Failed())
	assert.Equal(t, 503, entries[0].StatusCode)
	assert.JSONEq(t, `{"error":"down"}`, string(entries[0].ResponseBody))
}

func TestSyncInventory_PushFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	seedInventory(f)
	f.cm.pushErr = domain.Upstream(channel.Service, 0, "", errors.New("dial tcp: timeout"))

	_, err := f.engine.SyncInventory(context.Background(), "P1", mustRange(t, "2024-06-01", "2024-06-02"))
	require.Error(t, err)
	assert.Equal(t, domain.CodeUpstream, domain.Classify(err))

	entries := f.store.AuditEntries()
	require.Len(t, entries, 2) // fetch ok, first push failed, nothing after
	assert.True(t, entries[1].Failed())
	assert.Equal(t, 500, entries[1].StatusCode)
}

func TestSyncInventory_BadRecordIsValidation(t *testing.T) {
	f := newFixture(t)
	f.pms.avail = []pms.Availability{{Date: "June 1", RoomTypeID: "rt1"}}
	_, err := f.engine.SyncInventory(context.Background(), "P1", mustRange(t, "2024-06-01", "2024-06-02"))
	assert.Equal(t, domain.CodeValidation, domain.Classify(err))
	assert.Empty(t, f.cm.availPushes)
}

func TestSyncRates_GroupsPerRoomAndPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.maps.SetMapping(ctx, "P1", domain.KindRoomType, map[string]string{"rt1": "R1"}))
	require.NoError(t, f.maps.SetMapping(ctx, "P1", domain.KindRatePlan, map[string]string{"rp1": "RP1", "rp2": "RP2"}))
	f.pms.plans = []pms.RatePlan{{ID: "rp2", RoomTypeID: "rt1"}}
	f.pms.rates = []pms.Rate{
		{Date: "2024-06-02", RatePlanID: "rp1", RoomTypeID: "rt1", Rate: 110, Currency: "EUR"},
		{Date: "2024-06-01", RatePlanID: "rp2", Rate: 90, Currency: "EUR"}, // room from plan
		{Date: "2024-06-01", RatePlanID: "rp1", RoomTypeID: "rt1", Rate: 100, Currency: "EUR"},
	}

	res, err := f.engine.SyncRates(ctx, "P1", mustRange(t, "2024-06-01", "2024-06-02"))
	require.NoError(t, err)
	sum := res.Data.(app.RateSummary)
	assert.Equal(t, 3, sum.Records)

	require.Len(t, f.cm.ratePushes, 2)
	assert.Equal(t, "RP1", f.cm.ratePushes[0].Plan)
	assert.Equal(t, []float64{100, 110}, []float64{f.cm.ratePushes[0].Batch[0].Price, f.cm.ratePushes[0].Batch[1].Price})
	assert.Equal(t, "R1", f.cm.ratePushes[1].Room)
	assert.Equal(t, "RP2", f.cm.ratePushes[1].Plan)

	// rates fetch, rate plans fetch, two pushes
	assert.Len(t, f.store.AuditEntries(), 4)
}

func TestInitialSync_RequiresCompleteSetup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.engine.InitialSync(ctx, "P1", mustRange(t, "2024-06-01", "2024-06-02"))
	require.Error(t, err)
	assert.Equal(t, domain.CodeIncompleteSetup, res.Code)
	assert.Contains(t, res.Message, "credentials")
	assert.Equal(t, 400, domain.HTTPStatus(err))
	assert.Zero(t, f.pms.calls)

	require.NoError(t, f.setup.SetCredentials(ctx, "P1", "vault://p1"))
	require.NoError(t, f.setup.SetMapping(ctx, "P1", domain.KindRoomType, map[string]string{"rt1": "R1"}))
	require.NoError(t, f.setup.SetMapping(ctx, "P1", domain.KindRatePlan, map[string]string{"rp1": "RP1"}))
	seedInventory(f)
	f.pms.rates = []pms.Rate{{Date: "2024-06-01", RatePlanID: "rp1", RoomTypeID: "rt1", Rate: 100}}

	res, err = f.engine.InitialSync(ctx, "P1", mustRange(t, "2024-06-01", "2024-06-02"))
	require.NoError(t, err)
	assert.True(t, res.OK())

	st, err := f.setup.Status(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, st.IsFullyConfigured)
	require.Len(t, st.Steps, 4)
	assert.True(t, st.Steps[3].Completed)
}

func TestSetupStatus_Fresh(t *testing.T) {
	f := newFixture(t)
	st, err := f.setup.Status(context.Background(), "P1")
	require.NoError(t, err)
	assert.False(t, st.IsConfigured)
	assert.False(t, st.IsFullyConfigured)
	for _, s := range st.Steps {
		assert.False(t, s.Completed, s.ID)
	}

	_, err = f.setup.Status(context.Background(), "nope")
	assert.Equal(t, domain.CodeNotFound, domain.Classify(err))
}

func TestAuditSinkFailureDoesNotFailSync(t *testing.T) {
	f := newFixture(t, withSink(failingSink{}))
	seedInventory(f)

	res, err := f.engine.SyncInventory(context.Background(), "P1", mustRange(t, "2024-06-01", "2024-06-02"))
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Len(t, f.cm.availPushes, 2)
}

func TestSamePropertyOperationsAreSerialised(t *testing.T) {
	f := newFixture(t)
	seedInventory(f)
	f.cm.pushDelay = 20 * time.Millisecond
	r := mustRange(t, "2024-06-01", "2024-06-02")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.SyncInventory(context.Background(), "P1", r)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, f.cm.maxInFlight)
	assert.Len(t, f.cm.availPushes, 8)
}

func TestLockWaitHonoursContext(t *testing.T) {
	f := newFixture(t)
	seedInventory(f)
	f.cm.pushDelay = 200 * time.Millisecond
	r := mustRange(t, "2024-06-01", "2024-06-02")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.engine.SyncInventory(context.Background(), "P1", r)
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.engine.SyncInventory(ctx, "P1", r)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	<-done
}

func TestCatalog_RoomTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pms.rooms = []pms.RoomType{{ID: "rt1", Name: "Double", DefaultRate: 100, Status: "active"}}
	f.cm.rooms = []channel.Room{{ID: "R1", Name: "Double room"}}
	require.NoError(t, f.maps.SetMapping(ctx, "P1", domain.KindRoomType, map[string]string{"rt1": "R1"}))

	cat, err := f.catalog.RoomTypes(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, cat.PMS, 1)
	assert.Equal(t, "R1", cat.PMS[0].ID)
	assert.Equal(t, f.cm.rooms, cat.Channel)
	assert.Equal(t, domain.MappingSet{"rt1": "R1"}, cat.Mapping)
	assert.Len(t, f.store.AuditEntries(), 2)
}
