package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel_sync/internal/adapters/channel"
	"hotel_sync/internal/adapters/pms"
	"hotel_sync/internal/app"
	"hotel_sync/internal/domain"
)

func sampleBooking() pms.Booking {
	return pms.Booking{
		ID: "b-77", PropertyID: "mc-1", RoomTypeID: "rt1", RatePlanID: "rp1",
		CheckInDate: "2024-07-10", CheckOutDate: "2024-07-12",
		Guest:   pms.Guest{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com"},
		Adults:  2,
		Status:  pms.StatusConfirmed,
		Payment: pms.Payment{TotalAmount: 240, Currency: "USD"},
	}
}

func TestPushBooking_PersistsBothIDs(t *testing.T) {
	f := newFixture(t)
	f.pms.bookings["b-77"] = sampleBooking()
	ctx := context.Background()
	require.NoError(t, f.maps.SetMapping(ctx, "P1", domain.KindRoomType, map[string]string{"rt1": "R1"}))

	res, err := f.engine.PushBooking(ctx, "P1", "b-77")
	require.NoError(t, err)
	row := res.Data.(domain.Reservation)
	assert.Equal(t, "b-77", row.PMSBookingID)
	assert.Equal(t, "Y-1", row.ChannelReservationID)
	assert.Equal(t, domain.StatusConfirmed, row.Status)
	assert.Equal(t, "rt1", row.RoomTypeID)
	assert.Equal(t, domain.Date("2024-07-10"), row.CheckIn)

	require.Len(t, f.cm.created, 1)
	assert.Equal(t, "R1", f.cm.created[0].RoomID)
	assert.Equal(t, "yp-1", f.cm.created[0].PropertyID)
	assert.Equal(t, "Grace Hopper", f.cm.created[0].GuestName)
	assert.Len(t, f.store.Reservations(), 1)
	assert.Len(t, f.store.AuditEntries(), 2)
}

func TestPushBooking_SecondPushIsNoop(t *testing.T) {
	f := newFixture(t)
	f.pms.bookings["b-77"] = sampleBooking()
	ctx := context.Background()

	_, err := f.engine.PushBooking(ctx, "P1", "b-77")
	require.NoError(t, err)
	res, err := f.engine.PushBooking(ctx, "P1", "b-77")
	require.NoError(t, err)
	assert.Equal(t, "booking already synchronized", res.Message)
	assert.Len(t, f.cm.created, 1)
	assert.Len(t, f.store.Reservations(), 1)
}

func TestPushBooking_FetchFailureCreatesNothing(t *testing.T) {
	f := newFixture(t)
	f.pms.fetchErr = domain.Upstream(pms.Service, 502, "bad gateway", nil)

	res, err := f.engine.PushBooking(context.Background(), "P1", "b-77")
	require.Error(t, err)
	assert.Equal(t, domain.CodeUpstream, res.Code)
	assert.Empty(t, f.store.Reservations())
	assert.Empty(t, f.cm.created)

	entries := f.store.AuditEntries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Failed())
	assert.Equal(t, 502, entries[0].StatusCode)
	assert.JSONEq(t, `"bad gateway"`, string(entries[0].ResponseBody))
}

func TestPushBooking_PersistFailsOnceThenSucceeds(t *testing.T) {
	for _, commit := range []bool{false, true} {
		name := "write lost"
		if commit {
			name = "write committed despite error"
		}
		t.Run(name, func(t *testing.T) {
			var flaky *flakyReservations
			f := newFixture(t, func(f *fixture, d *app.Deps) {
				flaky = &flakyReservations{Store: f.store, failCreates: 1, commitOnFail: commit}
				withReservations(flaky)(f, d)
			})
			f.pms.bookings["b-77"] = sampleBooking()

			res, err := f.engine.PushBooking(context.Background(), "P1", "b-77")
			require.NoError(t, err)
			assert.True(t, res.OK())

			rows := f.store.Reservations()
			require.Len(t, rows, 1)
			assert.Equal(t, "b-77", rows[0].PMSBookingID)
			assert.Equal(t, "Y-1", rows[0].ChannelReservationID)
			assert.Len(t, f.cm.created, 1)
			if commit {
				assert.Equal(t, 1, flaky.creates)
			} else {
				assert.Equal(t, 2, flaky.creates)
			}
		})
	}
}

func TestPushBooking_PersistExhaustedIsConsistencyRisk(t *testing.T) {
	f := newFixture(t, func(f *fixture, d *app.Deps) {
		withReservations(&flakyReservations{Store: f.store, failCreates: 5})(f, d)
	})
	f.pms.bookings["b-77"] = sampleBooking()

	res, err := f.engine.PushBooking(context.Background(), "P1", "b-77")
	require.Error(t, err)
	assert.Equal(t, domain.CodeConsistencyRisk, res.Code)
	assert.Contains(t, res.Message, "b-77")
	assert.Contains(t, res.Message, "Y-1")
	assert.Equal(t, 500, domain.HTTPStatus(err))
	assert.Empty(t, f.store.Reservations())
}

func TestImportReservation_CreatesPMSBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.maps.SetMapping(ctx, "P1", domain.KindRoomType, map[string]string{"rt1": "R1"}))
	f.cm.reservations["Y-9"] = channel.Reservation{
		ID: "Y-9", PropertyID: "yp-1", RoomID: "R1", CheckIn: "2024-08-01", CheckOut: "2024-08-05",
		GuestName: "Alan Mathison Turing", GuestEmail: "alan@example.com", Adults: 1,
		TotalPrice: 480, Currency: "GBP", Status: channel.StatusConfirmed, Source: "booking.com",
		GuestDetails: &channel.GuestDetails{Phone: "+44 2"},
	}

	res, err := f.engine.ImportReservation(ctx, "yp-1", "Y-9")
	require.NoError(t, err)
	row := res.Data.(domain.Reservation)
	assert.Equal(t, "P1", row.PropertyID)
	assert.Equal(t, "B-1", row.PMSBookingID)
	assert.Equal(t, "Y-9", row.ChannelReservationID)
	assert.Equal(t, "booking.com", row.Source)

	require.Len(t, f.pms.created, 1)
	in := f.pms.created[0]
	assert.Equal(t, "rt1", in.RoomTypeID)
	assert.Equal(t, "mc-1", in.PropertyID)
	assert.Equal(t, "Alan", in.Guest.FirstName)
	assert.Equal(t, "Mathison Turing", in.Guest.LastName)
	assert.Equal(t, "+44 2", in.Guest.Phone)
	assert.Equal(t, 480.0, in.Payment.TotalAmount)
}

func TestImportReservation_UnknownChannelProperty(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.ImportReservation(context.Background(), "yp-404", "Y-1")
	require.Error(t, err)
	assert.Equal(t, domain.CodeNotFound, res.Code)
	assert.Zero(t, f.cm.calls)
}

func TestSubmitReservation_ChannelOnlySource(t *testing.T) {
	f := newFixture(t)
	req := app.BookingRequest{
		RoomTypeID: "rt1", CheckIn: "2024-09-01", CheckOut: "2024-09-02",
		GuestName: "Voice Guest", GuestEmail: "guest@example.com",
		Adults: 1, TotalPrice: 99, Currency: "EUR", Source: "ai_agent",
	}

	res, err := f.engine.SubmitReservation(context.Background(), "P1", req)
	require.NoError(t, err)
	row := res.Data.(domain.Reservation)
	assert.Empty(t, row.PMSBookingID)
	assert.Equal(t, "Y-1", row.ChannelReservationID)
	assert.Equal(t, domain.StatusConfirmed, row.Status)
	assert.Empty(t, f.pms.created)

	req.Source = "walk_in"
	res, err = f.engine.SubmitReservation(context.Background(), "P1", req)
	require.Error(t, err)
	assert.Equal(t, domain.CodeValidation, res.Code)
	assert.Len(t, f.cm.created, 1)
}

func TestCancelReservation_BothSides(t *testing.T) {
	f := newFixture(t)
	f.pms.bookings["b-77"] = sampleBooking()
	ctx := context.Background()
	pushed, err := f.engine.PushBooking(ctx, "P1", "b-77")
	require.NoError(t, err)
	id := pushed.Data.(domain.Reservation).ID

	res, err := f.engine.CancelReservation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, res.Data.(domain.Reservation).Status)
	assert.Equal(t, []string{"Y-1"}, f.cm.cancelled)
	assert.Equal(t, []string{"b-77"}, f.pms.cancelled)

	got, err := f.engine.Reservation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)

	// cancelled is terminal
	res, err = f.engine.CancelReservation(ctx, id)
	require.Error(t, err)
	assert.Equal(t, domain.CodeValidation, res.Code)
}

func TestCancelReservation_UpstreamFailureKeepsStatus(t *testing.T) {
	f := newFixture(t)
	f.pms.bookings["b-77"] = sampleBooking()
	ctx := context.Background()
	pushed, err := f.engine.PushBooking(ctx, "P1", "b-77")
	require.NoError(t, err)
	id := pushed.Data.(domain.Reservation).ID

	f.cm.cancelErr = domain.Upstream(channel.Service, 409, `{"error":"already checked in"}`, nil)
	_, err = f.engine.CancelReservation(ctx, id)
	require.Error(t, err)
	assert.Equal(t, 409, domain.UpstreamStatus(err))
	assert.Empty(t, f.pms.cancelled)

	got, err := f.engine.Reservation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
}

func TestCancelReservation_Missing(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.CancelReservation(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, domain.CodeNotFound, res.Code)
}

func TestReservations_ListNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.pms.bookings["b-77"] = sampleBooking()
	ctx := context.Background()
	_, err := f.engine.PushBooking(ctx, "P1", "b-77")
	require.NoError(t, err)

	rows, err := f.engine.Reservations(ctx, "P1", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = f.engine.Reservations(ctx, "nope", 10)
	assert.Equal(t, domain.CodeNotFound, domain.Classify(err))
}

func TestImportReservation_ChannelOnlyRowIsNotImported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	submitted, err := f.engine.SubmitReservation(ctx, "P1", app.BookingRequest{
		RoomTypeID: "rt1", CheckIn: "2024-09-01", CheckOut: "2024-09-02",
		GuestName: "Voice Guest", GuestEmail: "guest@example.com",
		Adults: 1, TotalPrice: 99, Currency: "EUR", Source: "ai_agent",
	})
	require.NoError(t, err)
	row := submitted.Data.(domain.Reservation)

	for i := 0; i < 2; i++ {
		res, err := f.engine.ImportReservation(ctx, "yp-1", row.ChannelReservationID)
		require.NoError(t, err)
		assert.Equal(t, row.ID, res.Data.(domain.Reservation).ID)
	}
	assert.Empty(t, f.pms.created)
	assert.Len(t, f.store.Reservations(), 1)
}

func TestImportReservation_ChannelOnlySourceRecordedWithoutPMS(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.maps.SetMapping(ctx, "P1", domain.KindRoomType, map[string]string{"rt1": "R1"}))
	f.cm.reservations["Y-20"] = channel.Reservation{
		PropertyID: "yp-1", RoomID: "R1", CheckIn: "2024-08-01", CheckOut: "2024-08-02",
		GuestName: "Phone Caller", Adults: 1, TotalPrice: 70, Currency: "EUR",
		Status: channel.StatusConfirmed, Source: "ai_agent",
	}

	res, err := f.engine.ImportReservation(ctx, "yp-1", "Y-20")
	require.NoError(t, err)
	row := res.Data.(domain.Reservation)
	assert.Equal(t, "Y-20", row.ChannelReservationID)
	assert.Empty(t, row.PMSBookingID)
	assert.Equal(t, "rt1", row.RoomTypeID)
	assert.Equal(t, "ai_agent", row.Source)
	assert.Empty(t, f.pms.created)
}

func TestImportReservation_HalfLinkedRowFailsBeforeUpstreamWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, domain.Reservation{
		ID: "r-half", PropertyID: "P1", RoomTypeID: "rt1", CheckIn: "2024-08-01", CheckOut: "2024-08-02",
		Status: domain.StatusConfirmed, Source: "booking.com", ChannelReservationID: "Y-5",
	}))

	res, err := f.engine.ImportReservation(ctx, "yp-1", "Y-5")
	require.Error(t, err)
	assert.Equal(t, domain.CodeConsistencyRisk, res.Code)
	assert.Contains(t, res.Message, "r-half")
	assert.Empty(t, f.pms.created)
	assert.Zero(t, f.cm.calls)
}

func pendingPush(t *testing.T, f *fixture) domain.Reservation {
	t.Helper()
	b := sampleBooking()
	b.Status = pms.StatusNoShow
	f.pms.bookings["b-77"] = b
	res, err := f.engine.PushBooking(context.Background(), "P1", "b-77")
	require.NoError(t, err)
	row := res.Data.(domain.Reservation)
	require.Equal(t, domain.StatusPending, row.Status)
	return row
}

func TestConfirmReservation_UpdatesBothSides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.maps.SetMapping(ctx, "P1", domain.KindRoomType, map[string]string{"rt1": "R1"}))
	row := pendingPush(t, f)

	res, err := f.engine.ConfirmReservation(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, res.Data.(domain.Reservation).Status)

	require.Len(t, f.cm.updated, 1)
	assert.Equal(t, channel.StatusConfirmed, f.cm.updated[0].Status)
	assert.Equal(t, "R1", f.cm.updated[0].RoomID)
	assert.Equal(t, "2024-07-10", f.cm.updated[0].CheckIn)
	require.Len(t, f.pms.updated, 1)
	assert.Equal(t, pms.StatusConfirmed, f.pms.updated[0].Status)
	assert.Equal(t, "Grace", f.pms.updated[0].Guest.FirstName)
	assert.Equal(t, "2024-07-12", f.pms.updated[0].CheckOutDate)

	got, err := f.engine.Reservation(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)

	res, err = f.engine.ConfirmReservation(ctx, row.ID)
	require.Error(t, err)
	assert.Equal(t, domain.CodeValidation, res.Code)
	assert.Len(t, f.cm.updated, 1)
}

func TestConfirmReservation_ChangedDatesAreConsistencyRisk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	row := pendingPush(t, f)
	f.cm.echoCheckIn = "2024-07-11"

	res, err := f.engine.ConfirmReservation(ctx, row.ID)
	require.Error(t, err)
	assert.Equal(t, domain.CodeConsistencyRisk, res.Code)
	assert.Empty(t, f.pms.updated)

	got, err := f.engine.Reservation(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, domain.Date("2024-07-10"), got.CheckIn)
}

func TestConfirmReservation_PMSFailureAfterChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	row := pendingPush(t, f)
	f.pms.updateErr = domain.Upstream(pms.Service, 500, "boom", nil)

	res, err := f.engine.ConfirmReservation(ctx, row.ID)
	require.Error(t, err)
	assert.Equal(t, domain.CodeConsistencyRisk, res.Code)
	got, _ := f.engine.Reservation(ctx, row.ID)
	assert.Equal(t, domain.StatusPending, got.Status)

	_, err = f.engine.ConfirmReservation(ctx, "nope")
	assert.Equal(t, domain.CodeNotFound, domain.Classify(err))
}

func TestCancelReservation_RetryAfterPMSFailureSkipsChannel(t *testing.T) {
	f := newFixture(t)
	f.pms.bookings["b-77"] = sampleBooking()
	ctx := context.Background()
	pushed, err := f.engine.PushBooking(ctx, "P1", "b-77")
	require.NoError(t, err)
	id := pushed.Data.(domain.Reservation).ID

	f.pms.cancelErr = domain.Upstream(pms.Service, 503, "", nil)
	res, err := f.engine.CancelReservation(ctx, id)
	require.Error(t, err)
	assert.Equal(t, domain.CodeConsistencyRisk, res.Code)
	assert.Equal(t, []string{"Y-1"}, f.cm.cancelled)

	f.pms.cancelErr = nil
	res, err = f.engine.CancelReservation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, res.Data.(domain.Reservation).Status)
	assert.Equal(t, []string{"Y-1"}, f.cm.cancelled, "channel side is not cancelled twice")
	assert.Equal(t, []string{"b-77"}, f.pms.cancelled)
}
