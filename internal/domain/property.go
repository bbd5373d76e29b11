package domain

import "time"

type Property struct {
	ID                   string
	Name                 string
	PMSPropertyID        string // property id on the PMS side
	ChannelPropertyID    string // property id on the channel-manager side
	CredentialsRef       string
	RoomTypes            []RoomTypeInfo
	InitialSyncCompleted bool
	Active               bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type RoomTypeInfo struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	MaxOccupancy int     `json:"maxOccupancy"`
	BasePrice    float64 `json:"basePrice"`
}

// SetupStep is one item of the property setup checklist.
type SetupStep struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

type SetupStatus struct {
	PropertyID          string      `json:"propertyId"`
	PropertyName        string      `json:"propertyName"`
	IsConfigured        bool        `json:"isConfigured"`
	HasRoomTypeMappings bool        `json:"hasRoomTypeMappings"`
	HasRatePlanMappings bool        `json:"hasRatePlanMappings"`
	IsFullyConfigured   bool        `json:"isFullyConfigured"`
	Steps               []SetupStep `json:"setupSteps"`
}
