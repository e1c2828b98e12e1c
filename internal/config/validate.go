package config

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/duckerr"
	"github.com/duckhq/duckwatch/internal/filter"
)

// validate applies spec §4.6's rules: non-empty collector list is a
// warning only; every other rule is a hard error. Cross-references from
// an observer to a disabled collector are a warning, not an error.
func validate(doc Document, log logrus.FieldLogger) error {
	if len(doc.Collectors) == 0 {
		log.Warn("configuration declares no collectors")
	}

	seen := make(map[string]struct{})
	collectors := make(map[string]struct{})
	enabled := make(map[string]struct{})

	for _, c := range doc.Collectors {
		id, provider, ok := c.ID()
		if !ok {
			return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("collector entry declares no known provider"))
		}
		if err := checkID(id, "collector", provider); err != nil {
			return err
		}
		if _, dup := seen[id]; dup {
			return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("duplicate id %q", id))
		}
		seen[id] = struct{}{}
		collectors[id] = struct{}{}
		if c.enabled() {
			enabled[id] = struct{}{}
		}
		if err := c.validate(); err != nil {
			return err
		}
	}

	for _, o := range doc.Observers {
		id, provider, ok := o.ID()
		if !ok {
			return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("observer entry declares no known provider"))
		}
		if err := checkID(id, "observer", provider); err != nil {
			return err
		}
		if _, dup := seen[id]; dup {
			return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("duplicate id %q", id))
		}
		seen[id] = struct{}{}
		if err := o.validate(); err != nil {
			return err
		}
		for _, ref := range o.scopedCollectors() {
			if _, ok := collectors[ref]; !ok {
				return duckerr.Wrap(duckerr.ErrConfigValidation,
					fmt.Errorf("observer %q references unknown collector %q", id, ref))
			}
			if _, ok := enabled[ref]; !ok {
				log.WithField("observer", id).WithField("collector", ref).
					Warn("observer scoped to a disabled collector")
			}
		}
	}

	for _, v := range doc.Views {
		if err := checkID(v.ID, "view", ""); err != nil {
			return err
		}
		for _, ref := range v.Collectors {
			if _, ok := collectors[ref]; !ok {
				return duckerr.Wrap(duckerr.ErrConfigValidation,
					fmt.Errorf("view %q references unknown collector %q", v.ID, ref))
			}
		}
		if v.Filter != "" {
			if _, err := filter.New(v.Filter); err != nil {
				return duckerr.Wrap(duckerr.ErrConfigValidation,
					fmt.Errorf("view %q filter: %w", v.ID, err))
			}
		}
	}

	return nil
}

func checkID(id, kind, provider string) error {
	if id == "" {
		if provider != "" {
			return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("%s (%s): id is required", kind, provider))
		}
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("%s: id is required", kind))
	}
	if !idPattern.MatchString(id) {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("%s id %q does not match %s", kind, id, idPattern.String()))
	}
	return nil
}
