package recommend

import "strings"

// All is the wire sentinel for "no constraint on this dimension".
const All = "ALL"

// LabelFilter constrains one tag dimension. The zero value is an empty label
// set and matches nothing.
type LabelFilter struct {
	unconstrained bool
	labels        []string
}

// Unconstrained returns a filter that matches every menu.
func Unconstrained() LabelFilter {
	return LabelFilter{unconstrained: true}
}

// Labels returns a filter matching menus tagged with at least one of labels.
func Labels(labels ...string) LabelFilter {
	return LabelFilter{labels: append([]string(nil), labels...)}
}

// ParseFilter converts the wire form. Any occurrence of ALL wins.
func ParseFilter(raw []string) LabelFilter {
	labels := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l == All {
			return Unconstrained()
		}
		if l != "" {
			labels = append(labels, l)
		}
	}
	return LabelFilter{labels: labels}
}

func (f LabelFilter) IsUnconstrained() bool {
	return f.unconstrained
}

// Matches reports whether tags intersect the filter's labels.
func (f LabelFilter) Matches(tags []string) bool {
	if f.unconstrained {
		return true
	}
	for _, want := range f.labels {
		for _, have := range tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Wire returns the external representation.
func (f LabelFilter) Wire() []string {
	if f.unconstrained {
		return []string{All}
	}
	return append([]string{}, f.labels...)
}

func (f LabelFilter) String() string {
	return strings.Join(f.Wire(), ",")
}

// Options holds one filter per tag dimension.
type Options struct {
	Taste    LabelFilter
	Carb     LabelFilter
	Weather  LabelFilter
	Category LabelFilter
}

// AllOptions leaves every dimension unconstrained.
func AllOptions() Options {
	return Options{
		Taste:    Unconstrained(),
		Carb:     Unconstrained(),
		Weather:  Unconstrained(),
		Category: Unconstrained(),
	}
}

func ParseOptions(taste, carb, weather, category []string) Options {
	return Options{
		Taste:    ParseFilter(taste),
		Carb:     ParseFilter(carb),
		Weather:  ParseFilter(weather),
		Category: ParseFilter(category),
	}
}
