package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"hotel_sync/internal/adapters/channel"
	"hotel_sync/internal/adapters/pms"
	"hotel_sync/internal/domain"
)

// SetupService reports and updates per-property configuration.
type SetupService struct {
	props  domain.PropertyRepository
	writer domain.PropertyWriter
	maps   *MappingStore
}

func NewSetupService(props domain.PropertyRepository, writer domain.PropertyWriter, maps *MappingStore) *SetupService {
	return &SetupService{props: props, writer: writer, maps: maps}
}

// PropertyInput registers a property and links it to both systems.
type PropertyInput struct {
	Name              string                `json:"name" validate:"required"`
	PMSPropertyID     string                `json:"pmsPropertyId" validate:"required"`
	ChannelPropertyID string                `json:"channelPropertyId" validate:"required"`
	RoomTypes         []domain.RoomTypeInfo `json:"roomTypes"`
	Active            *bool                 `json:"active"`
}

// RegisterProperty creates or updates a property. Credentials, mappings and
// the initial-sync flag survive an update.
func (s *SetupService) RegisterProperty(ctx context.Context, propertyID string, in PropertyInput) (domain.Property, error) {
	propertyID = strings.TrimSpace(propertyID)
	if propertyID == "" {
		return domain.Property{}, domain.Validation("property id is required")
	}
	if err := checkRequired("property", in); err != nil {
		return domain.Property{}, err
	}
	seen := map[string]bool{}
	for _, rt := range in.RoomTypes {
		if rt.ID == "" {
			return domain.Property{}, domain.Validation("room type id is required")
		}
		if seen[rt.ID] {
			return domain.Property{}, domain.Validation("duplicate room type %q", rt.ID)
		}
		seen[rt.ID] = true
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	p := domain.Property{
		ID:                propertyID,
		Name:              strings.TrimSpace(in.Name),
		PMSPropertyID:     in.PMSPropertyID,
		ChannelPropertyID: in.ChannelPropertyID,
		RoomTypes:         in.RoomTypes,
		Active:            active,
	}
	if err := s.writer.UpsertProperty(ctx, p); err != nil {
		return domain.Property{}, fmt.Errorf("register property %s: %w", propertyID, err)
	}
	return s.props.GetByID(ctx, propertyID)
}

// Property returns one registered property.
func (s *SetupService) Property(ctx context.Context, propertyID string) (domain.Property, error) {
	p, err := s.props.GetByID(ctx, propertyID)
	if err != nil {
		return domain.Property{}, propertyErr(propertyID, err)
	}
	return p, nil
}

// Properties lists active properties.
func (s *SetupService) Properties(ctx context.Context) ([]domain.Property, error) {
	ps, err := s.props.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	if ps == nil {
		ps = []domain.Property{}
	}
	return ps, nil
}

func (s *SetupService) Status(ctx context.Context, propertyID string) (domain.SetupStatus, error) {
	p, err := s.props.GetByID(ctx, propertyID)
	if err != nil {
		return domain.SetupStatus{}, propertyErr(propertyID, err)
	}
	rooms, err := s.maps.Mapping(ctx, p.ID, domain.KindRoomType)
	if err != nil {
		return domain.SetupStatus{}, err
	}
	plans, err := s.maps.Mapping(ctx, p.ID, domain.KindRatePlan)
	if err != nil {
		return domain.SetupStatus{}, err
	}
	configured := p.CredentialsRef != ""
	st := domain.SetupStatus{
		PropertyID:          p.ID,
		PropertyName:        p.Name,
		IsConfigured:        configured,
		HasRoomTypeMappings: len(rooms) > 0,
		HasRatePlanMappings: len(plans) > 0,
	}
	st.IsFullyConfigured = st.IsConfigured && st.HasRoomTypeMappings && st.HasRatePlanMappings
	st.Steps = []domain.SetupStep{
		{ID: "credentials", Name: "Channel Manager Credentials", Completed: configured},
		{ID: "room_types", Name: "Room Type Mappings", Completed: st.HasRoomTypeMappings},
		{ID: "rate_types", Name: "Rate Type Mappings", Completed: st.HasRatePlanMappings},
		{ID: "initial_sync", Name: "Initial Synchronization", Completed: p.InitialSyncCompleted},
	}
	return st, nil
}

// SetCredentials stores a reference to the property's credentials, never the secret itself.
func (s *SetupService) SetCredentials(ctx context.Context, propertyID, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Validation("credentials reference is required")
	}
	if _, err := s.props.GetByID(ctx, propertyID); err != nil {
		return propertyErr(propertyID, err)
	}
	if err := s.props.SetCredentialsRef(ctx, propertyID, ref); err != nil {
		return fmt.Errorf("set credentials for %s: %w", propertyID, err)
	}
	return nil
}

// SetMapping replaces one mapping set; see MappingStore.SetMapping.
func (s *SetupService) SetMapping(ctx context.Context, propertyID string, kind domain.MappingKind, m map[string]string) error {
	return s.maps.SetMapping(ctx, propertyID, kind, m)
}

/********** catalog views for mapping setup **********/

// RoomCatalog shows PMS room types in channel shape next to the channel's own
// rooms and the current mapping.
type RoomCatalog struct {
	PMS     []channel.Room    `json:"pms"`
	Channel []channel.Room    `json:"channel"`
	Mapping domain.MappingSet `json:"mapping"`
}

type RatePlanCatalog struct {
	PMS     []channel.RatePlan `json:"pms"`
	Channel []channel.RatePlan `json:"channel"`
	Mapping domain.MappingSet  `json:"mapping"`
}

type CatalogService struct {
	props domain.PropertyRepository
	maps  *MappingStore
	audit *Auditor
	pms   PMS
	cm    Channel
}

func NewCatalogService(props domain.PropertyRepository, maps *MappingStore, audit *Auditor, p PMS, cm Channel) *CatalogService {
	return &CatalogService{props: props, maps: maps, audit: audit, pms: p, cm: cm}
}

func (s *CatalogService) property(ctx context.Context, id string) (domain.Property, error) {
	p, err := s.props.GetByID(ctx, id)
	if err != nil {
		return domain.Property{}, propertyErr(id, err)
	}
	if p.PMSPropertyID == "" || p.ChannelPropertyID == "" {
		return domain.Property{}, domain.IncompleteSetup("property %s is not linked to both systems", id)
	}
	return p, nil
}

func (s *CatalogService) RoomTypes(ctx context.Context, propertyID string) (RoomCatalog, error) {
	p, err := s.property(ctx, propertyID)
	if err != nil {
		return RoomCatalog{}, err
	}
	src, err := audited(ctx, s.audit, call{p.ID, pms.Service, http.MethodGet, pms.RoomTypesPath(p.PMSPropertyID), nil},
		func(ctx context.Context) ([]pms.RoomType, error) { return s.pms.RoomTypes(ctx, p.PMSPropertyID) })
	if err != nil {
		return RoomCatalog{}, err
	}
	ids, err := s.maps.Snapshot(ctx, p, domain.PMSToChannel)
	if err != nil {
		return RoomCatalog{}, err
	}
	out := RoomCatalog{PMS: make([]channel.Room, 0, len(src))}
	for _, rt := range src {
		room, err := RoomToChannelRoom(ids, rt)
		if err != nil {
			return RoomCatalog{}, err
		}
		out.PMS = append(out.PMS, room)
	}
	out.Channel, err = audited(ctx, s.audit, call{p.ID, channel.Service, http.MethodGet, channel.RoomsPath(p.ChannelPropertyID), nil},
		func(ctx context.Context) ([]channel.Room, error) { return s.cm.Rooms(ctx, p.ChannelPropertyID) })
	if err != nil {
		return RoomCatalog{}, err
	}
	if out.Mapping, err = s.maps.Mapping(ctx, p.ID, domain.KindRoomType); err != nil {
		return RoomCatalog{}, err
	}
	return out, nil
}

func (s *CatalogService) RatePlans(ctx context.Context, propertyID string) (RatePlanCatalog, error) {
	p, err := s.property(ctx, propertyID)
	if err != nil {
		return RatePlanCatalog{}, err
	}
	src, err := audited(ctx, s.audit, call{p.ID, pms.Service, http.MethodGet, pms.RatePlansPath(p.PMSPropertyID), nil},
		func(ctx context.Context) ([]pms.RatePlan, error) { return s.pms.RatePlans(ctx, p.PMSPropertyID) })
	if err != nil {
		return RatePlanCatalog{}, err
	}
	ids, err := s.maps.Snapshot(ctx, p, domain.PMSToChannel)
	if err != nil {
		return RatePlanCatalog{}, err
	}
	out := RatePlanCatalog{PMS: make([]channel.RatePlan, 0, len(src))}
	for _, rp := range src {
		plan, err := RatePlanToChannelRatePlan(ids, rp)
		if err != nil {
			return RatePlanCatalog{}, err
		}
		out.PMS = append(out.PMS, plan)
	}
	out.Channel, err = audited(ctx, s.audit, call{p.ID, channel.Service, http.MethodGet, channel.RatePlansPath(p.ChannelPropertyID), nil},
		func(ctx context.Context) ([]channel.RatePlan, error) { return s.cm.RatePlans(ctx, p.ChannelPropertyID) })
	if err != nil {
		return RatePlanCatalog{}, err
	}
	if out.Mapping, err = s.maps.Mapping(ctx, p.ID, domain.KindRatePlan); err != nil {
		return RatePlanCatalog{}, err
	}
	return out, nil
}

// AvailabilityView is the PMS inventory and pricing of a property for a window.
type AvailabilityView struct {
	PropertyID   string             `json:"propertyId"`
	StartDate    domain.Date        `json:"startDate"`
	EndDate      domain.Date        `json:"endDate"`
	Availability []pms.Availability `json:"availability"`
	Rates        []pms.Rate         `json:"rates"`
}

// Availability reads PMS availability and rates for r without pushing anything.
func (s *CatalogService) Availability(ctx context.Context, propertyID string, r domain.DateRange) (AvailabilityView, error) {
	p, err := s.props.GetByID(ctx, propertyID)
	if err != nil {
		return AvailabilityView{}, propertyErr(propertyID, err)
	}
	if p.PMSPropertyID == "" {
		return AvailabilityView{}, domain.IncompleteSetup("property %s is not linked to the pms", propertyID)
	}
	out := AvailabilityView{PropertyID: p.ID, StartDate: r.From, EndDate: r.To}
	out.Availability, err = audited(ctx, s.audit, call{p.ID, pms.Service, http.MethodGet, rangeEndpoint(pms.AvailabilityPath(p.PMSPropertyID), r), nil},
		func(ctx context.Context) ([]pms.Availability, error) { return s.pms.Availability(ctx, p.PMSPropertyID, r.From, r.To) })
	if err != nil {
		return AvailabilityView{}, err
	}
	out.Rates, err = audited(ctx, s.audit, call{p.ID, pms.Service, http.MethodGet, rangeEndpoint(pms.RatesPath(p.PMSPropertyID), r), nil},
		func(ctx context.Context) ([]pms.Rate, error) { return s.pms.Rates(ctx, p.PMSPropertyID, r.From, r.To) })
	if err != nil {
		return AvailabilityView{}, err
	}
	if out.Availability == nil {
		out.Availability = []pms.Availability{}
	}
	if out.Rates == nil {
		out.Rates = []pms.Rate{}
	}
	return out, nil
}
