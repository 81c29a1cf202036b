package taxonomy

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// languageTags bounds the reverse display-name lookup to languages cards
// are actually printed in.
var languageTags = []language.Tag{
	language.English,
	language.Japanese,
	language.German,
	language.French,
	language.Spanish,
	language.Italian,
	language.Portuguese,
	language.Korean,
	language.SimplifiedChinese,
	language.TraditionalChinese,
	language.Russian,
	language.Dutch,
	language.Polish,
	language.Thai,
	language.Indonesian,
}

// tagAliases covers shop shorthand that is not a valid BCP-47 tag.
var tagAliases = map[string]language.Tag{
	"jp": language.Japanese,
	"kr": language.Korean,
	"cn": language.SimplifiedChinese,
	"tw": language.TraditionalChinese,
}

// languageMatcher maps free-form language values ("Japanese", "日本語",
// "ja") onto a group's options via a matcher seeded from the options that
// name a recognizable language.
type languageMatcher struct {
	matcher language.Matcher
	options []Option
}

func newLanguageMatcher(group Group) *languageMatcher {
	var tags []language.Tag
	var options []Option
	for _, option := range group.Options {
		tag, ok := tagForLabel(option.Label)
		if !ok {
			continue
		}
		tags = append(tags, tag)
		options = append(options, option)
	}
	if len(tags) == 0 {
		return nil
	}
	return &languageMatcher{matcher: language.NewMatcher(tags), options: options}
}

func (m *languageMatcher) match(value string) (Option, bool) {
	if m == nil {
		return Option{}, false
	}
	tag, ok := tagForValue(value)
	if !ok {
		return Option{}, false
	}
	_, index, confidence := m.matcher.Match(tag)
	if confidence < language.High {
		return Option{}, false
	}
	if index < 0 || index >= len(m.options) {
		return Option{}, false
	}
	return m.options[index], true
}

func tagForValue(value string) (language.Tag, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return language.Und, false
	}
	if tag, ok := tagAliases[canonicalLabel(trimmed)]; ok {
		return tag, true
	}
	if tag, err := language.Parse(trimmed); err == nil && tag != language.Und {
		return tag, true
	}
	return tagForLabel(trimmed)
}

// tagForLabel reverses a display name ("Japanese" or the language's own
// name) into its tag.
func tagForLabel(label string) (language.Tag, bool) {
	want := canonicalLabel(label)
	if want == "" {
		return language.Und, false
	}
	english := display.English.Languages()
	for _, tag := range languageTags {
		if canonicalLabel(english.Name(tag)) == want {
			return tag, true
		}
		if canonicalLabel(display.Self.Name(tag)) == want {
			return tag, true
		}
	}
	return language.Und, false
}
