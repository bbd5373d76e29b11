// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotel_sync/internal/app"
	"hotel_sync/internal/domain"
)

type Handlers struct {
	Engine   *app.Engine
	Setup    *app.SetupService
	Catalog  *app.CatalogService
	Mappings *app.MappingStore
	Audit    *app.Auditor
	// SyncDays is the window used when a sync request names no dates.
	SyncDays int
	Now      func() time.Time
}

type problem struct {
	Type   string      `json:"type"`
	Title  string      `json:"title"`
	Status int         `json:"status"`
	Detail string      `json:"detail,omitempty"`
	Code   domain.Code `json:"code,omitempty"`
}

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}()

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path, "")
	})
	s.mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not allowed here", "")
	})
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1", func(r chi.Router) {
		r.Get("/properties", h.listProperties)
		r.Route("/properties/{id}", func(r chi.Router) {
			r.Get("/", h.getProperty)
			r.Put("/", h.registerProperty)
			r.Get("/setup", h.setupStatus)
			r.Put("/credentials", h.setCredentials)
			r.Get("/mappings/{kind}", h.getMapping)
			r.Put("/mappings/{kind}", h.putMapping)
			r.Get("/catalog/rooms", h.roomCatalog)
			r.Get("/catalog/rateplans", h.ratePlanCatalog)
			r.Get("/availability", h.availability)

			r.Post("/sync/inventory", h.syncInventory)
			r.Post("/sync/rates", h.syncRates)
			r.Post("/sync/initial", h.initialSync)

			r.Post("/bookings/{bookingId}/push", h.pushBooking)
			r.Get("/reservations", h.listReservations)
			r.Post("/reservations", h.submitReservation)

			r.Get("/audit", h.listAudit)
			r.Post("/audit/archive", h.archiveAudit)
		})
		r.Post("/channel/properties/{channelPropertyId}/reservations/{reservationId}/import", h.importReservation)
		r.Get("/reservations/{id}", h.getReservation)
		r.Post("/reservations/{id}/cancel", h.cancelReservation)
		r.Post("/reservations/{id}/confirm", h.confirmReservation)
	})
}

/********** response helpers **********/

func writeProblem(w http.ResponseWriter, status int, title, detail string, code domain.Code) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Code: code}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps a service error onto a problem response.
func writeError(w http.ResponseWriter, err error) {
	status := domain.HTTPStatus(err)
	detail := err.Error()
	if status >= 500 && domain.Classify(err) == domain.CodeInternal {
		log.Error().Err(err).Msg("request failed")
		detail = "internal error"
	}
	writeProblem(w, status, http.StatusText(status), detail, domain.Classify(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// writeResult renders an engine outcome; failures become problems.
func writeResult(w http.ResponseWriter, res app.Result, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached serves v with a weak ETag and honours If-None-Match.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

// decodeBody reads a JSON body into dst. An empty body is accepted when optional.
func decodeBody(r *http.Request, dst any, optional bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
	if errors.Is(err, io.EOF) {
		if optional {
			return nil
		}
		return domain.Validation("request body is required")
	}
	if err != nil {
		return domain.Validation("malformed JSON body: %v", err)
	}
	return nil
}

func checkBody(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return domain.Validation("field %s failed %q", ve[0].Field(), ve[0].Tag())
	}
	return domain.Validation("%v", err)
}

func intParam(r *http.Request, key string, def, max int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > max {
		return 0, domain.Validation("%s must be an integer between 1 and %d", key, max)
	}
	return n, nil
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

/********** properties & setup **********/

func (h *Handlers) registerProperty(w http.ResponseWriter, r *http.Request) {
	var in app.PropertyInput
	if err := decodeBody(r, &in, false); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.Setup.RegisterProperty(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.Result{Status: "success", Message: "property saved", Data: propertyView(p)})
}

func (h *Handlers) getProperty(w http.ResponseWriter, r *http.Request) {
	p, err := h.Setup.Property(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, propertyView(p))
}

func (h *Handlers) listProperties(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Setup.Properties(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]propertyJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, propertyView(p))
	}
	writeCached(w, r, out)
}

type propertyJSON struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"name"`
	PMSPropertyID        string                `json:"pmsPropertyId"`
	ChannelPropertyID    string                `json:"channelPropertyId"`
	HasCredentials       bool                  `json:"hasCredentials"`
	RoomTypes            []domain.RoomTypeInfo `json:"roomTypes"`
	InitialSyncCompleted bool                  `json:"initialSyncCompleted"`
	Active               bool                  `json:"active"`
}

// propertyView hides the credentials reference.
func propertyView(p domain.Property) propertyJSON {
	return propertyJSON{
		ID:                   p.ID,
		Name:                 p.Name,
		PMSPropertyID:        p.PMSPropertyID,
		ChannelPropertyID:    p.ChannelPropertyID,
		HasCredentials:       p.CredentialsRef != "",
		RoomTypes:            p.RoomTypes,
		InitialSyncCompleted: p.InitialSyncCompleted,
		Active:               p.Active,
	}
}

func (h *Handlers) setupStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.Setup.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, st)
}

type credentialsBody struct {
	CredentialsRef string `json:"credentialsRef" validate:"required"`
}

func (h *Handlers) setCredentials(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := decodeBody(r, &body, false); err != nil {
		writeError(w, err)
		return
	}
	if err := checkBody(body); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Setup.SetCredentials(r.Context(), chi.URLParam(r, "id"), body.CredentialsRef); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.Result{Status: "success", Message: "credentials saved"})
}

type mappingBody struct {
	Mappings map[string]string `json:"mappings" validate:"required"`
}

func mappingKind(r *http.Request) (domain.MappingKind, error) {
	switch chi.URLParam(r, "kind") {
	case "room-types", string(domain.KindRoomType):
		return domain.KindRoomType, nil
	case "rate-plans", string(domain.KindRatePlan):
		return domain.KindRatePlan, nil
	}
	return "", domain.Validation("unknown mapping kind %q: expected room-types or rate-plans", chi.URLParam(r, "kind"))
}

func (h *Handlers) getMapping(w http.ResponseWriter, r *http.Request) {
	kind, err := mappingKind(r)
	if err != nil {
		writeError(w, err)
		return
	}
	set, err := h.Mappings.Mapping(r.Context(), chi.URLParam(r, "id"), kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, mappingBody{Mappings: set})
}

func (h *Handlers) putMapping(w http.ResponseWriter, r *http.Request) {
	kind, err := mappingKind(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body mappingBody
	if err := decodeBody(r, &body, false); err != nil {
		writeError(w, err)
		return
	}
	if err := checkBody(body); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Setup.SetMapping(r.Context(), chi.URLParam(r, "id"), kind, body.Mappings); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.Result{Status: "success", Message: string(kind) + " mappings saved", Data: map[string]int{"count": len(body.Mappings)}})
}

func (h *Handlers) roomCatalog(w http.ResponseWriter, r *http.Request) {
	c, err := h.Catalog.RoomTypes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, c)
}

func (h *Handlers) ratePlanCatalog(w http.ResponseWriter, r *http.Request) {
	c, err := h.Catalog.RatePlans(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, c)
}

/********** sync **********/

type rangeBody struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// dateRange reads {startDate, endDate}; both absent means the next SyncDays
// days. On failure the problem is already written.
func (h *Handlers) dateRange(w http.ResponseWriter, r *http.Request) (domain.DateRange, bool) {
	var body rangeBody
	if err := decodeBody(r, &body, true); err != nil {
		writeError(w, err)
		return domain.DateRange{}, false
	}
	if body.StartDate == "" && body.EndDate == "" {
		return domain.NextDays(h.now(), h.SyncDays), true
	}
	if body.StartDate == "" || body.EndDate == "" {
		writeError(w, domain.Validation("startDate and endDate must be given together"))
		return domain.DateRange{}, false
	}
	dr, err := domain.NewDateRange(body.StartDate, body.EndDate)
	if err != nil {
		writeError(w, err)
		return domain.DateRange{}, false
	}
	return dr, true
}

// queryRange reads startDate/endDate from the query string, defaulting like dateRange.
func (h *Handlers) queryRange(r *http.Request) (domain.DateRange, error) {
	from, to := r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate")
	switch {
	case from == "" && to == "":
		return domain.NextDays(h.now(), h.SyncDays), nil
	case from == "" || to == "":
		return domain.DateRange{}, domain.Validation("startDate and endDate must be given together")
	}
	return domain.NewDateRange(from, to)
}

func (h *Handlers) availability(w http.ResponseWriter, r *http.Request) {
	dr, err := h.queryRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := h.Catalog.Availability(r.Context(), chi.URLParam(r, "id"), dr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, v)
}

func (h *Handlers) syncInventory(w http.ResponseWriter, r *http.Request) {
	dr, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.SyncInventory(r.Context(), chi.URLParam(r, "id"), dr)
	writeResult(w, res, err)
}

func (h *Handlers) syncRates(w http.ResponseWriter, r *http.Request) {
	dr, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.SyncRates(r.Context(), chi.URLParam(r, "id"), dr)
	writeResult(w, res, err)
}

func (h *Handlers) initialSync(w http.ResponseWriter, r *http.Request) {
	dr, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.InitialSync(r.Context(), chi.URLParam(r, "id"), dr)
	writeResult(w, res, err)
}

/********** reservations **********/

func (h *Handlers) pushBooking(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.PushBooking(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "bookingId"))
	writeResult(w, res, err)
}

func (h *Handlers) importReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.ImportReservation(r.Context(), chi.URLParam(r, "channelPropertyId"), chi.URLParam(r, "reservationId"))
	writeResult(w, res, err)
}

func (h *Handlers) submitReservation(w http.ResponseWriter, r *http.Request) {
	var req app.BookingRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.Engine.SubmitReservation(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handlers) cancelReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.CancelReservation(r.Context(), chi.URLParam(r, "id"))
	writeResult(w, res, err)
}

func (h *Handlers) confirmReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.ConfirmReservation(r.Context(), chi.URLParam(r, "id"))
	writeResult(w, res, err)
}

func (h *Handlers) getReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Reservation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, res)
}

func (h *Handlers) listReservations(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50, 200)
	if err != nil {
		writeError(w, err)
		return
	}
	// Newest first; aligns with DB index on (property_id, created_at, id)
	out, err := h.Engine.Reservations(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, out)
}

/********** audit **********/

// parseInstant accepts RFC 3339 or a bare YYYY-MM-DD (midnight UTC).
func parseInstant(key, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if d, err := domain.ParseDate(s); err == nil {
		return d.Time(), nil
	}
	return time.Time{}, domain.Validation("%s must be RFC 3339 or YYYY-MM-DD", key)
}

func (h *Handlers) listAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 100, 500)
	if err != nil {
		writeError(w, err)
		return
	}
	q := domain.AuditQuery{PropertyID: chi.URLParam(r, "id"), Limit: limit}
	if q.Since, err = parseInstant("since", r.URL.Query().Get("since")); err != nil {
		writeError(w, err)
		return
	}
	if q.Until, err = parseInstant("until", r.URL.Query().Get("until")); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Audit.List(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) archiveAudit(w http.ResponseWriter, r *http.Request) {
	day := domain.DateOf(h.now().UTC()).AddDays(-1)
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := domain.ParseDate(s)
		if err != nil {
			writeError(w, err)
			return
		}
		day = d
	}
	key, n, err := h.Audit.ArchiveDay(r.Context(), chi.URLParam(r, "id"), day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.Result{
		Status:  "success",
		Message: "audit archived",
		Data:    map[string]any{"key": key, "entries": n, "date": day},
	})
}
