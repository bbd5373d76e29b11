package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hotel_sync/internal/adapters/channel"
	"hotel_sync/internal/adapters/pms"
	"hotel_sync/internal/app"
	"hotel_sync/internal/domain"
	"hotel_sync/internal/storage/memory"
)

// ---- fakes ----

type fakePMS struct {
	mu        sync.Mutex
	rooms     []pms.RoomType
	plans     []pms.RatePlan
	avail     []pms.Availability
	rates     []pms.Rate
	bookings  map[string]pms.Booking
	fetchErr  error
	created   []pms.BookingInput
	updated   []pms.BookingInput
	cancelled []string
	updateErr error
	cancelErr error
	calls     int32
}

func (f *fakePMS) RoomTypes(ctx context.Context, propertyID string) ([]pms.RoomType, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.rooms, f.fetchErr
}

func (f *fakePMS) RatePlans(ctx context.Context, propertyID string) ([]pms.RatePlan, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.plans, f.fetchErr
}

func (f *fakePMS) Availability(ctx context.Context, propertyID string, from, to domain.Date) ([]pms.Availability, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.avail, nil
}

func (f *fakePMS) Rates(ctx context.Context, propertyID string, from, to domain.Date) ([]pms.Rate, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.rates, nil
}

func (f *fakePMS) Booking(ctx context.Context, propertyID, bookingID string) (pms.Booking, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fetchErr != nil {
		return pms.Booking{}, f.fetchErr
	}
	b, ok := f.bookings[bookingID]
	if !ok {
		return pms.Booking{}, domain.Upstream(pms.Service, 404, `{"error":"not found"}`, nil)
	}
	return b, nil
}

func (f *fakePMS) CreateBooking(ctx context.Context, propertyID string, in pms.BookingInput) (pms.Booking, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	return pms.Booking{
		ID:           fmt.Sprintf("B-%d", len(f.created)),
		RoomTypeID:   in.RoomTypeID,
		CheckInDate:  in.CheckInDate,
		CheckOutDate: in.CheckOutDate,
		Status:       in.Status,
	}, nil
}

func (f *fakePMS) UpdateBooking(ctx context.Context, propertyID, bookingID string, in pms.BookingInput) (pms.Booking, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.updateErr != nil {
		return pms.Booking{}, f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, in)
	return pms.Booking{
		ID: bookingID, RoomTypeID: in.RoomTypeID,
		CheckInDate: in.CheckInDate, CheckOutDate: in.CheckOutDate, Status: in.Status,
	}, nil
}

func (f *fakePMS) CancelBooking(ctx context.Context, propertyID, bookingID string) error {
	atomic.AddInt32(&f.calls, 1)
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, bookingID)
	return nil
}

type availPush struct {
	Room  string
	Batch []channel.Availability
}

type ratePush struct {
	Room, Plan string
	Batch      []channel.Rate
}

type fakeChannel struct {
	mu           sync.Mutex
	rooms        []channel.Room
	plans        []channel.RatePlan
	reservations map[string]channel.Reservation
	availPushes  []availPush
	ratePushes   []ratePush
	created      []channel.Reservation
	updated      []channel.Reservation
	cancelled    []string
	echoCheckIn  string // overrides the check-in date echoed by UpdateReservation
	pushErr      error
	createErr    error
	cancelErr    error
	pushDelay    time.Duration
	inFlight     int32
	maxInFlight  int32
	calls        int32
}

func (f *fakeChannel) Rooms(ctx context.Context, propertyID string) ([]channel.Room, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.rooms, nil
}

func (f *fakeChannel) RatePlans(ctx context.Context, propertyID string) ([]channel.RatePlan, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.plans, nil
}

func (f *fakeChannel) Reservation(ctx context.Context, reservationID string) (channel.Reservation, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[reservationID]
	if !ok {
		return channel.Reservation{}, domain.Upstream(channel.Service, 404, "", nil)
	}
	return r, nil
}

func (f *fakeChannel) CreateReservation(ctx context.Context, propertyID string, r channel.Reservation) (channel.Reservation, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.createErr != nil {
		return channel.Reservation{}, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, r)
	r.ID = fmt.Sprintf("Y-%d", len(f.created))
	f.reservations[r.ID] = r
	return r, nil
}

func (f *fakeChannel) UpdateReservation(ctx context.Context, reservationID string, r channel.Reservation) (channel.Reservation, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, r)
	if f.echoCheckIn != "" {
		r.CheckIn = f.echoCheckIn
	}
	f.reservations[reservationID] = r
	return r, nil
}

func (f *fakeChannel) CancelReservation(ctx context.Context, reservationID string) error {
	atomic.AddInt32(&f.calls, 1)
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, reservationID)
	if r, ok := f.reservations[reservationID]; ok {
		r.Status = channel.StatusCancelled
		f.reservations[reservationID] = r
	}
	return nil
}

func (f *fakeChannel) UpdateAvailability(ctx context.Context, propertyID, roomID string, batch []channel.Availability) error {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		m := atomic.LoadInt32(&f.maxInFlight)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxInFlight, m, n) {
			break
		}
	}
	if f.pushDelay > 0 {
		time.Sleep(f.pushDelay)
	}
	if f.pushErr != nil {
		return f.pushErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.availPushes = append(f.availPushes, availPush{Room: roomID, Batch: batch})
	return nil
}

func (f *fakeChannel) UpdateRates(ctx context.Context, propertyID, roomID, ratePlanID string, batch []channel.Rate) error {
	atomic.AddInt32(&f.calls, 1)
	if f.pushErr != nil {
		return f.pushErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ratePushes = append(f.ratePushes, ratePush{Room: roomID, Plan: ratePlanID, Batch: batch})
	return nil
}

// flakyReservations fails the first failCreates calls to Create. With
// commitOnFail the row is stored before the error is reported.
type flakyReservations struct {
	*memory.Store
	failCreates  int
	commitOnFail bool
	creates      int
}

func (f *flakyReservations) Create(ctx context.Context, r domain.Reservation) error {
	f.creates++
	if f.failCreates > 0 {
		f.failCreates--
		if f.commitOnFail {
			_ = f.Store.Create(ctx, r)
		}
		return errors.New("connection reset by peer")
	}
	return f.Store.Create(ctx, r)
}

type failingSink struct{}

func (failingSink) Append(ctx context.Context, e domain.AuditEntry) error {
	return errors.New("audit table unavailable")
}

// ---- fixture ----

type fixture struct {
	store   *memory.Store
	res     domain.ReservationRepository
	pms     *fakePMS
	cm      *fakeChannel
	maps    *app.MappingStore
	audit   *app.Auditor
	engine  *app.Engine
	catalog *app.CatalogService
	setup   *app.SetupService
}

type fixtureOpt func(*fixture, *app.Deps)

func withReservations(r domain.ReservationRepository) fixtureOpt {
	return func(f *fixture, d *app.Deps) { f.res = r; d.Reservations = r }
}

func withSink(s domain.AuditSink) fixtureOpt {
	return func(f *fixture, d *app.Deps) {
		f.audit = app.NewAuditor(s, f.store)
		d.Audit = f.audit
	}
}

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		pms:   &fakePMS{bookings: map[string]pms.Booking{}},
		cm:    &fakeChannel{reservations: map[string]channel.Reservation{}},
	}
	f.store.PutProperty(domain.Property{
		ID: "P1", Name: "Hotel One", PMSPropertyID: "mc-1", ChannelPropertyID: "yp-1", Active: true,
	})
	f.res = f.store
	f.maps = app.NewMappingStore(f.store, f.store, nil, time.Minute)
	f.audit = app.NewAuditor(f.store, f.store)

	d := app.Deps{
		Properties:         f.store,
		Reservations:       f.store,
		Mappings:           f.maps,
		Audit:              f.audit,
		PMS:                f.pms,
		Channel:            f.cm,
		Retry:              app.RetryPolicy{Attempts: 2},
		ChannelOnlySources: []string{"ai_agent"},
		Now:                func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	for _, o := range opts {
		o(f, &d)
	}
	f.engine = app.NewEngine(d)
	f.catalog = app.NewCatalogService(f.store, f.maps, f.audit, f.pms, f.cm)
	f.setup = app.NewSetupService(f.store, f.store, f.maps)
	return f
}

func mustRange(t *testing.T, from, to string) domain.DateRange {
	t.Helper()
	r, err := domain.NewDateRange(from, to)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	return r
}
