package app

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotel_sync/internal/adapters/channel"
	"hotel_sync/internal/adapters/observability"
	"hotel_sync/internal/adapters/pms"
	"hotel_sync/internal/domain"
)

// Result is the structured outcome of every public engine operation.
type Result struct {
	Status  string      `json:"status"` // success | error
	Message string      `json:"message"`
	Code    domain.Code `json:"code,omitempty"`
	Data    any         `json:"data,omitempty"`
}

func (r Result) OK() bool { return r.Status == "success" }

type Deps struct {
	Properties   domain.PropertyRepository
	Reservations domain.ReservationRepository
	Mappings     *MappingStore
	Audit        *Auditor
	PMS          PMS
	Channel      Channel
	Retry        RetryPolicy
	// ChannelOnlySources are booking sources that never get a PMS booking.
	ChannelOnlySources []string
	Now                func() time.Time
	NewID              func() string
}

type Engine struct {
	props       domain.PropertyRepository
	res         domain.ReservationRepository
	maps        *MappingStore
	audit       *Auditor
	pms         PMS
	cm          Channel
	retry       RetryPolicy
	channelOnly map[string]bool
	now         func() time.Time
	newID       func() string
	locks       *propertyLocks
}

func NewEngine(d Deps) *Engine {
	e := &Engine{
		props:       d.Properties,
		res:         d.Reservations,
		maps:        d.Mappings,
		audit:       d.Audit,
		pms:         d.PMS,
		cm:          d.Channel,
		retry:       d.Retry,
		channelOnly: map[string]bool{},
		now:         d.Now,
		newID:       d.NewID,
		locks:       newPropertyLocks(),
	}
	for _, s := range d.ChannelOnlySources {
		e.channelOnly[s] = true
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.retry.Attempts <= 0 {
		e.retry = DefaultRetryPolicy
	}
	return e
}

/********** operation plumbing **********/

// run executes op under the property lock and turns its outcome into a Result.
func (e *Engine) run(ctx context.Context, op, propertyID string, fn func(ctx context.Context) (string, any, error)) (Result, error) {
	start := time.Now()
	msg, data, err := e.locked(ctx, propertyID, fn)
	e.finish(op, propertyID, start, err)
	if err != nil {
		return failed(err), err
	}
	return Result{Status: "success", Message: msg, Data: data}, nil
}

func (e *Engine) locked(ctx context.Context, propertyID string, fn func(ctx context.Context) (string, any, error)) (string, any, error) {
	release, err := e.locks.acquire(ctx, propertyID)
	if err != nil {
		return "", nil, fmt.Errorf("wait for property %s: %w", propertyID, err)
	}
	defer release()
	return fn(ctx)
}

func (e *Engine) finish(op, propertyID string, start time.Time, err error) {
	took := time.Since(start)
	outcome := "ok"
	var ev *zerolog.Event
	switch code := domain.Classify(err); code {
	case "":
		ev = log.Info()
	case domain.CodeNotFound, domain.CodeValidation, domain.CodeIncompleteSetup:
		outcome = string(code)
		ev = log.Warn().Err(err)
	default:
		outcome = string(code)
		ev = log.Error().Err(err)
	}
	observability.ObserveSync(op, outcome, took)
	ev.Str("op", op).Str("property", propertyID).Dur("took", took).Msg("sync operation")
}

func failed(err error) Result {
	return Result{Status: "error", Message: err.Error(), Code: domain.Classify(err)}
}

// property loads a property and checks it is linked on both sides.
func (e *Engine) property(ctx context.Context, id string) (domain.Property, error) {
	p, err := e.props.GetByID(ctx, id)
	if err != nil {
		return domain.Property{}, propertyErr(id, err)
	}
	if p.PMSPropertyID == "" || p.ChannelPropertyID == "" {
		return domain.Property{}, domain.IncompleteSetup("property %s is not linked to both systems", id)
	}
	return p, nil
}

func rangeEndpoint(path string, r domain.DateRange) string {
	q := url.Values{"start_date": {r.From.String()}, "end_date": {r.To.String()}}
	return path + "?" + q.Encode()
}

/********** inventory **********/

type InventoryGroup struct {
	RoomID string                 `json:"roomId"`
	Dates  int                    `json:"dates"`
	Batch  []channel.Availability `json:"-"`
}

type InventorySummary struct {
	From    domain.Date      `json:"startDate"`
	To      domain.Date      `json:"endDate"`
	Records int              `json:"records"`
	Groups  []InventoryGroup `json:"groups"`
}

// SyncInventory pushes PMS availability for r to the channel manager, one
// batch per channel room.
func (e *Engine) SyncInventory(ctx context.Context, propertyID string, r domain.DateRange) (Result, error) {
	return e.run(ctx, "inventory", propertyID, func(ctx context.Context) (string, any, error) {
		p, err := e.property(ctx, propertyID)
		if err != nil {
			return "", nil, err
		}
		sum, err := e.syncInventory(ctx, p, r)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("synced %d availability records in %d room batches", sum.Records, len(sum.Groups)), sum, nil
	})
}

func (e *Engine) syncInventory(ctx context.Context, p domain.Property, r domain.DateRange) (InventorySummary, error) {
	src, err := audited(ctx, e.audit, call{p.ID, pms.Service, http.MethodGet, rangeEndpoint(pms.AvailabilityPath(p.PMSPropertyID), r), nil},
		func(ctx context.Context) ([]pms.Availability, error) {
			return e.pms.Availability(ctx, p.PMSPropertyID, r.From, r.To)
		})
	if err != nil {
		return InventorySummary{}, err
	}

	groups, err := e.groupAvailability(ctx, p, src)
	if err != nil {
		return InventorySummary{}, err
	}

	sum := InventorySummary{From: r.From, To: r.To, Records: len(src), Groups: groups}
	for _, g := range groups {
		g := g
		err := auditedDo(ctx, e.audit, call{p.ID, channel.Service, http.MethodPut, channel.AvailabilityPath(p.ChannelPropertyID, g.RoomID), g.Batch},
			func(ctx context.Context) error {
				return e.cm.UpdateAvailability(ctx, p.ChannelPropertyID, g.RoomID, g.Batch)
			})
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// groupAvailability translates and groups by channel room, rooms and dates sorted.
func (e *Engine) groupAvailability(ctx context.Context, p domain.Property, src []pms.Availability) ([]InventoryGroup, error) {
	ids, err := e.maps.Snapshot(ctx, p, domain.PMSToChannel)
	if err != nil {
		return nil, err
	}
	byRoom := map[string][]channel.Availability{}
	for _, a := range src {
		ca, err := AvailabilityToChannel(ids, a)
		if err != nil {
			return nil, err
		}
		byRoom[ca.RoomID] = append(byRoom[ca.RoomID], ca)
	}
	rooms := make([]string, 0, len(byRoom))
	for id := range byRoom {
		rooms = append(rooms, id)
	}
	sort.Strings(rooms)

	out := make([]InventoryGroup, 0, len(rooms))
	for _, id := range rooms {
		batch := byRoom[id]
		sort.SliceStable(batch, func(i, j int) bool { return batch[i].Date < batch[j].Date })
		out = append(out, InventoryGroup{RoomID: id, Dates: len(batch), Batch: batch})
	}
	return out, nil
}

/********** rates **********/

type RateGroup struct {
	RoomID     string         `json:"roomId"`
	RatePlanID string         `json:"ratePlanId"`
	Dates      int            `json:"dates"`
	Batch      []channel.Rate `json:"-"`
}

type RateSummary struct {
	From    domain.Date `json:"startDate"`
	To      domain.Date `json:"endDate"`
	Records int         `json:"records"`
	Groups  []RateGroup `json:"groups"`
}

// SyncRates pushes PMS rates for r to the channel manager, one batch per
// (channel room, channel rate plan).
func (e *Engine) SyncRates(ctx context.Context, propertyID string, r domain.DateRange) (Result, error) {
	return e.run(ctx, "rates", propertyID, func(ctx context.Context) (string, any, error) {
		p, err := e.property(ctx, propertyID)
		if err != nil {
			return "", nil, err
		}
		sum, err := e.syncRates(ctx, p, r)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("synced %d rate records in %d room/plan batches", sum.Records, len(sum.Groups)), sum, nil
	})
}

func (e *Engine) syncRates(ctx context.Context, p domain.Property, r domain.DateRange) (RateSummary, error) {
	src, err := audited(ctx, e.audit, call{p.ID, pms.Service, http.MethodGet, rangeEndpoint(pms.RatesPath(p.PMSPropertyID), r), nil},
		func(ctx context.Context) ([]pms.Rate, error) {
			return e.pms.Rates(ctx, p.PMSPropertyID, r.From, r.To)
		})
	if err != nil {
		return RateSummary{}, err
	}

	planRooms, err := e.planRooms(ctx, p, src)
	if err != nil {
		return RateSummary{}, err
	}
	groups, err := e.groupRates(ctx, p, src, planRooms)
	if err != nil {
		return RateSummary{}, err
	}

	sum := RateSummary{From: r.From, To: r.To, Records: len(src), Groups: groups}
	for _, g := range groups {
		g := g
		err := auditedDo(ctx, e.audit, call{p.ID, channel.Service, http.MethodPut, channel.RatesPath(p.ChannelPropertyID, g.RoomID, g.RatePlanID), g.Batch},
			func(ctx context.Context) error {
				return e.cm.UpdateRates(ctx, p.ChannelPropertyID, g.RoomID, g.RatePlanID, g.Batch)
			})
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// planRooms fetches the PMS rate plans only when some rate lacks its room type.
func (e *Engine) planRooms(ctx context.Context, p domain.Property, src []pms.Rate) (map[string]string, error) {
	need := false
	for _, r := range src {
		if r.RoomTypeID == "" {
			need = true
			break
		}
	}
	if !need {
		return nil, nil
	}
	plans, err := audited(ctx, e.audit, call{p.ID, pms.Service, http.MethodGet, pms.RatePlansPath(p.PMSPropertyID), nil},
		func(ctx context.Context) ([]pms.RatePlan, error) {
			return e.pms.RatePlans(ctx, p.PMSPropertyID)
		})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(plans))
	for _, pl := range plans {
		out[pl.ID] = pl.RoomTypeID
	}
	return out, nil
}

func (e *Engine) groupRates(ctx context.Context, p domain.Property, src []pms.Rate, planRooms map[string]string) ([]RateGroup, error) {
	ids, err := e.maps.Snapshot(ctx, p, domain.PMSToChannel)
	if err != nil {
		return nil, err
	}
	type key struct{ room, plan string }
	byKey := map[key][]channel.Rate{}
	for _, r := range src {
		room := r.RoomTypeID
		if room == "" {
			room = planRooms[r.RatePlanID]
		}
		cr, err := RateToChannel(ids, r, room)
		if err != nil {
			return nil, err
		}
		k := key{cr.RoomID, cr.RatePlanID}
		byKey[k] = append(byKey[k], cr)
	}
	keys := make([]key, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c := strings.Compare(keys[i].room, keys[j].room); c != 0 {
			return c < 0
		}
		return keys[i].plan < keys[j].plan
	})

	out := make([]RateGroup, 0, len(keys))
	for _, k := range keys {
		batch := byKey[k]
		sort.SliceStable(batch, func(i, j int) bool { return batch[i].Date < batch[j].Date })
		out = append(out, RateGroup{RoomID: k.room, RatePlanID: k.plan, Dates: len(batch), Batch: batch})
	}
	return out, nil
}

/********** initial sync **********/

type InitialSyncSummary struct {
	Inventory InventorySummary `json:"inventory"`
	Rates     RateSummary      `json:"rates"`
}

// InitialSync requires a fully configured property, pushes inventory then
// rates, and marks the property as initially synced.
func (e *Engine) InitialSync(ctx context.Context, propertyID string, r domain.DateRange) (Result, error) {
	return e.run(ctx, "initial_sync", propertyID, func(ctx context.Context) (string, any, error) {
		p, err := e.property(ctx, propertyID)
		if err != nil {
			return "", nil, err
		}
		if err := e.requireSetup(ctx, p); err != nil {
			return "", nil, err
		}
		var sum InitialSyncSummary
		if sum.Inventory, err = e.syncInventory(ctx, p, r); err != nil {
			return "", nil, err
		}
		if sum.Rates, err = e.syncRates(ctx, p, r); err != nil {
			return "", nil, err
		}
		if err := e.props.MarkInitialSynced(ctx, p.ID); err != nil {
			return "", nil, fmt.Errorf("mark %s initially synced: %w", p.ID, err)
		}
		return "initial synchronization completed", sum, nil
	})
}

func (e *Engine) requireSetup(ctx context.Context, p domain.Property) error {
	var missing []string
	if p.CredentialsRef == "" {
		missing = append(missing, "credentials")
	}
	for _, k := range []domain.MappingKind{domain.KindRoomType, domain.KindRatePlan} {
		m, err := e.maps.Mapping(ctx, p.ID, k)
		if err != nil {
			return err
		}
		if len(m) == 0 {
			missing = append(missing, string(k)+" mappings")
		}
	}
	if len(missing) > 0 {
		return domain.IncompleteSetup("property %s setup is incomplete: missing %s", p.ID, strings.Join(missing, ", "))
	}
	return nil
}
