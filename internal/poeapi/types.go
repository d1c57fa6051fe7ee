package poeapi

// FrameType is the upstream rarity-class tag. Only a subset is relevant to
// this system, but the full closed set is kept so deserializing an
// unrelated frame type never fails — it just doesn't qualify.
type FrameType int

const (
	FrameNormal FrameType = iota
	FrameMagic
	FrameRare
	FrameUnique
	FrameGem
	FrameCurrency
	FrameDivinationCard
	FrameQuest
	FrameProphecy
	FrameFoil
	FrameSupporterFoil
)

// Item is the subset of the upstream item shape this system needs: enough
// to decide qualification and to build a Listing. Trimmed down to the
// fields the pipeline actually reads or forwards — sockets, properties,
// flavour text, and the rest never reach this system.
type Item struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Note         string     `json:"note"`
	League       string     `json:"league"`
	FrameType    *FrameType `json:"frameType"`
	ImplicitMods []string   `json:"implicitMods"`
	ExplicitMods []string   `json:"explicitMods"`
}

// Qualifies reports whether the item passes the forwarding predicate: note
// present, frame type in the priced-unique set, name non-empty, id present.
func (i Item) Qualifies() bool {
	if i.ID == "" || i.Name == "" || i.Note == "" {
		return false
	}
	if i.FrameType == nil {
		return false
	}

	switch *i.FrameType {
	case FrameUnique, FrameFoil, FrameSupporterFoil:
		return true
	default:
		return false
	}
}

// StashChange is the upstream envelope. Non-public or league-less
// envelopes are dropped by the crawler before publication.
type StashChange struct {
	ID          string `json:"id"`
	Public      bool   `json:"public"`
	AccountName string `json:"accountName,omitempty"`
	Stash       string `json:"stash,omitempty"`
	StashType   string `json:"stashType"`
	League      string `json:"league,omitempty"`
	Items       []Item `json:"items"`
}

// Qualifies reports whether a stash change should be published downstream
// at all: public and carrying a league.
func (s StashChange) Qualifies() bool {
	return s.Public && s.League != ""
}

// PublicStashesResponse is the decoded body of GET /public-stash-tabs.
type PublicStashesResponse struct {
	NextChangeID string        `json:"next_change_id"`
	Stashes      []StashChange `json:"stashes"`
}
