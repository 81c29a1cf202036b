package taxonomy

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Mandatory attribute groups. Every snapshot must define them and every
// resolution covers them.
const (
	GroupRarity    = "Rarity"
	GroupFinish    = "Finish"
	GroupCardType  = "Card type"
	GroupEnergy    = "Energy"
	GroupLanguage  = "Language"
	GroupCondition = "Condition"
)

// MandatoryGroups lists the groups every resolution must cover, in
// display order.
var MandatoryGroups = []string{
	GroupRarity,
	GroupFinish,
	GroupCardType,
	GroupEnergy,
	GroupLanguage,
	GroupCondition,
}

// Option is one allowed value inside an attribute group.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Group is an attribute group with its ordered allowed options. Option
// order is meaningful: matching honors it and the first option doubles as
// the group fallback when no better default applies.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Options []Option `json:"options"`
}

// Snapshot is the shop vocabulary at a point in time. It is read-only
// once loaded; refreshes produce a new value.
type Snapshot struct {
	Groups []Group `json:"groups"`

	Source    string    `json:"-"`
	FetchedAt time.Time `json:"-"`
}

// Resolved maps attribute group id to the chosen option id.
type Resolved map[string]string

// Selection pairs a resolved group with its option for display.
type Selection struct {
	GroupID     string `json:"group_id"`
	GroupName   string `json:"group_name"`
	OptionID    string `json:"option_id"`
	OptionLabel string `json:"option_label"`
}

// DecodeSnapshot decodes a snapshot strictly: unknown keys, missing
// mandatory groups, and empty option lists are all errors.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	var snapshot Snapshot
	if err := decoder.Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decode taxonomy snapshot: %w", err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Validate checks structural integrity and mandatory group coverage.
func (s *Snapshot) Validate() error {
	if s == nil || len(s.Groups) == 0 {
		return fmt.Errorf("taxonomy snapshot has no groups")
	}
	seenGroups := make(map[string]struct{}, len(s.Groups))
	for _, group := range s.Groups {
		if group.ID == "" || group.Name == "" {
			return fmt.Errorf("taxonomy group %q/%q missing id or name", group.ID, group.Name)
		}
		if _, dup := seenGroups[group.ID]; dup {
			return fmt.Errorf("taxonomy group id %q duplicated", group.ID)
		}
		seenGroups[group.ID] = struct{}{}
		if len(group.Options) == 0 {
			return fmt.Errorf("taxonomy group %q has no options", group.Name)
		}
		seenOptions := make(map[string]struct{}, len(group.Options))
		for _, option := range group.Options {
			if option.ID == "" || option.Label == "" {
				return fmt.Errorf("taxonomy group %q option %q/%q missing id or label", group.Name, option.ID, option.Label)
			}
			if _, dup := seenOptions[option.ID]; dup {
				return fmt.Errorf("taxonomy group %q option id %q duplicated", group.Name, option.ID)
			}
			seenOptions[option.ID] = struct{}{}
		}
	}
	for _, name := range MandatoryGroups {
		if _, ok := s.Group(name); !ok {
			return fmt.Errorf("taxonomy snapshot missing mandatory group %q", name)
		}
	}
	return nil
}

// Group finds a group by name or id, case and diacritic insensitive.
func (s *Snapshot) Group(name string) (Group, bool) {
	if s == nil {
		return Group{}, false
	}
	want := canonicalLabel(name)
	for _, group := range s.Groups {
		if canonicalLabel(group.Name) == want || canonicalLabel(group.ID) == want {
			return group, true
		}
	}
	return Group{}, false
}

// OptionByID finds an option inside a group addressed by group id.
func (s *Snapshot) OptionByID(groupID, optionID string) (Option, bool) {
	if s == nil {
		return Option{}, false
	}
	for _, group := range s.Groups {
		if group.ID != groupID {
			continue
		}
		for _, option := range group.Options {
			if option.ID == optionID {
				return option, true
			}
		}
	}
	return Option{}, false
}

// Describe joins a resolved map against the snapshot for display,
// following the snapshot's group order. Entries whose group or option no
// longer exists are reported with the raw id so stale data stays visible.
func (s *Snapshot) Describe(resolved Resolved) []Selection {
	if s == nil || len(resolved) == 0 {
		return nil
	}
	selections := make([]Selection, 0, len(resolved))
	for _, group := range s.Groups {
		optionID, ok := resolved[group.ID]
		if !ok {
			continue
		}
		selection := Selection{
			GroupID:   group.ID,
			GroupName: group.Name,
			OptionID:  optionID,
		}
		if option, found := s.OptionByID(group.ID, optionID); found {
			selection.OptionLabel = option.Label
		} else {
			selection.OptionLabel = optionID
		}
		selections = append(selections, selection)
	}
	return selections
}
