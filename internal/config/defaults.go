package config

import "github.com/imdario/mergo"

// defaultsDocument holds the built-in defaults applied to a parsed
// Document before validation, merged in with imdario/mergo so a field
// the document already sets is left untouched (mergo's zero-value
// merge semantics: only empty destination fields are overwritten).
var defaultsDocument = Document{
	Interval: MinInterval,
}

// applyDefaults merges doc's built-in defaults over the parsed document
// and then applies the per-provider defaults each config type needs
// that mergo's struct-level merge can't express field-by-field, using
// small local helpers. Those helpers treat a zero value as not set: a
// zero Hue brightness becomes 254, a zero AppVeyor records count 20,
// and an empty Slack/Mattermost username "Duck".
func applyDefaults(doc Document) (Document, error) {
	merged := doc
	if err := mergo.Merge(&merged, defaultsDocument); err != nil {
		return Document{}, err
	}
	merged.clampInterval()

	for i := range merged.Observers {
		if h := merged.Observers[i].Hue; h != nil && h.Brightness == 0 {
			h.Brightness = 254
		}
		if s := merged.Observers[i].Slack; s != nil && s.Username == "" {
			s.Username = "Duck"
		}
		if m := merged.Observers[i].Mattermost; m != nil && m.Username == "" {
			m.Username = "Duck"
		}
	}
	for i := range merged.Collectors {
		if a := merged.Collectors[i].AppVeyor; a != nil && a.RecordsCount == 0 {
			a.RecordsCount = 20
		}
	}

	return merged, nil
}
