package domain

import "sort"

type MappingKind string

const (
	KindRoomType MappingKind = "room_type"
	KindRatePlan MappingKind = "rate_plan"
)

func (k MappingKind) Valid() bool { return k == KindRoomType || k == KindRatePlan }

type Direction int

const (
	PMSToChannel Direction = iota
	ChannelToPMS
)

func (d Direction) String() string {
	if d == ChannelToPMS {
		return "channel_to_pms"
	}
	return "pms_to_channel"
}

// MappingSet maps PMS-side ids to channel-manager-side ids.
type MappingSet map[string]string

func (m MappingSet) Clone() MappingSet {
	out := make(MappingSet, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Invert returns the channel->PMS view. When several PMS ids share a channel id
// the lexicographically smallest PMS id wins.
func (m MappingSet) Invert() MappingSet {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(MappingSet, len(m))
	for _, k := range keys {
		if _, taken := out[m[k]]; !taken {
			out[m[k]] = k
		}
	}
	return out
}

// Lookup returns the mapped id, or id itself when no mapping exists.
func (m MappingSet) Lookup(id string) string {
	if v, ok := m[id]; ok && v != "" {
		return v
	}
	return id
}
