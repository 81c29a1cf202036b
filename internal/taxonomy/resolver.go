package taxonomy

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"binder/internal/logging"
)

// Inputs carries the free-text attribute values feeding one resolution.
// An empty string means the upstream field was absent; the resolver still
// produces a value for every mandatory group.
type Inputs struct {
	RarityText  string
	VariantText string
	EnergyText  string
	Language    string
	Condition   string
}

// Defaults carries the configured fallback labels for the groups whose
// default is operator policy rather than vocabulary.
type Defaults struct {
	Condition string
	Language  string
}

const (
	notApplicableLabel = "Not applicable"
	normalFinishLabel  = "Normal"
)

// Resolver maps detected attribute text onto snapshot options. All
// default decisions live here; callers never supply their own fallbacks.
type Resolver struct {
	logger   *slog.Logger
	defaults Defaults
}

// NewResolver builds a resolver with the configured default labels.
func NewResolver(logger *slog.Logger, defaults Defaults) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{logger: logger, defaults: defaults}
}

// SetLogger updates the resolver's logging destination.
func (r *Resolver) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	r.logger = logger
}

// Resolve maps the inputs onto an option for every mandatory group.
// Detected values that match nothing fall to the group default and are
// logged as mapping gaps; the result always covers every mandatory group.
func (r *Resolver) Resolve(snapshot *Snapshot, inputs Inputs) (Resolved, error) {
	if snapshot == nil {
		return nil, errors.New("taxonomy snapshot required")
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	finishText, mechanicText := decomposeVariant(inputs.VariantText)
	if finishText == "" {
		finishText = finishHint(inputs.RarityText)
	}

	steps := []struct {
		group    string
		value    string
		synonyms map[string][]string
		fallback string
	}{
		{GroupRarity, inputs.RarityText, raritySynonyms, ""},
		{GroupFinish, finishText, finishSynonyms, normalFinishLabel},
		{GroupCardType, mechanicText, cardTypeSynonyms, notApplicableLabel},
		{GroupEnergy, inputs.EnergyText, energySynonyms, notApplicableLabel},
		{GroupCondition, inputs.Condition, conditionSynonyms, r.defaults.Condition},
	}

	resolved := make(Resolved, len(MandatoryGroups))
	for _, step := range steps {
		group, ok := snapshot.Group(step.group)
		if !ok {
			return nil, fmt.Errorf("taxonomy group %q missing from snapshot", step.group)
		}
		resolved[group.ID] = r.resolveGroup(group, step.value, step.synonyms, step.fallback).ID
	}

	languageGroup, ok := snapshot.Group(GroupLanguage)
	if !ok {
		return nil, fmt.Errorf("taxonomy group %q missing from snapshot", GroupLanguage)
	}
	resolved[languageGroup.ID] = r.resolveLanguage(languageGroup, inputs.Language).ID

	return resolved, nil
}

func (r *Resolver) resolveGroup(group Group, value string, synonyms map[string][]string, fallbackLabel string) Option {
	if option, ok := matchOption(group, candidateLabels(value, synonyms)); ok {
		return option
	}
	option := defaultOption(group, fallbackLabel)
	if strings.TrimSpace(value) != "" {
		r.logger.Warn("taxonomy mapping gap",
			logging.String("group", group.Name),
			logging.String("value", value),
			logging.String("fallback", option.Label))
	}
	return option
}

func (r *Resolver) resolveLanguage(group Group, value string) Option {
	matcher := newLanguageMatcher(group)
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		if option, ok := matchOption(group, candidateLabels(trimmed, nil)); ok {
			return option
		}
		if option, ok := matcher.match(trimmed); ok {
			return option
		}
		option := r.languageDefault(group, matcher)
		r.logger.Warn("taxonomy mapping gap",
			logging.String("group", group.Name),
			logging.String("value", value),
			logging.String("fallback", option.Label))
		return option
	}
	return r.languageDefault(group, matcher)
}

func (r *Resolver) languageDefault(group Group, matcher *languageMatcher) Option {
	if label := strings.TrimSpace(r.defaults.Language); label != "" {
		if option, ok := matchOption(group, candidateLabels(label, nil)); ok {
			return option
		}
		if option, ok := matcher.match(label); ok {
			return option
		}
	}
	return group.Options[0]
}

// matchOption tries exact normalized equality over the whole option list
// first, then word-bounded containment, honoring option order in each
// pass. Containment is word-bounded so a one-letter option like "V"
// cannot match inside an unrelated word.
func matchOption(group Group, labels []string) (Option, bool) {
	if len(labels) == 0 {
		return Option{}, false
	}
	for _, option := range group.Options {
		canon := canonicalLabel(option.Label)
		for _, label := range labels {
			if canon == label {
				return option, true
			}
		}
	}
	for _, option := range group.Options {
		canon := canonicalLabel(option.Label)
		if canon == "" {
			continue
		}
		for _, label := range labels {
			if containsPhrase(label, canon) || containsPhrase(canon, label) {
				return option, true
			}
		}
	}
	return Option{}, false
}

func defaultOption(group Group, fallbackLabel string) Option {
	if fallbackLabel != "" {
		if option, ok := matchOption(group, candidateLabels(fallbackLabel, nil)); ok {
			return option
		}
	}
	return group.Options[0]
}
