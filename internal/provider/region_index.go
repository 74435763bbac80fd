package provider

import "strings"

// NoMatch is returned by RegionIndex when the current region maps to no
// configured replica region.
const NoMatch = -1

// RegionIndex returns the index into regions that serves the current
// deployment region, or NoMatch.
//
// A direct case-insensitive match wins. Otherwise the alias table is
// consulted: regions[i] matches when it and current belong to the same alias
// group, i.e. each equals the group's canonical tag or one of its spellings.
// The first matching index wins in both passes.
func (p *Profile) RegionIndex(current string, regions []string) int {
	current = normalize(current)
	if current == "" || current == "unresolved" {
		return NoMatch
	}

	for i, r := range regions {
		if normalize(r) == current {
			return i
		}
	}

	groups := p.groupsOf(current)
	if len(groups) == 0 {
		return NoMatch
	}
	for i, r := range regions {
		r = normalize(r)
		for _, g := range groups {
			if g.contains(r) {
				return i
			}
		}
	}
	return NoMatch
}

// Canonical maps a region spelling onto its canonical tag, or returns it
// unchanged (normalized) when the profile has no alias for it.
func (p *Profile) Canonical(region string) string {
	region = normalize(region)
	if groups := p.groupsOf(region); len(groups) > 0 {
		return groups[0].Canonical
	}
	return region
}

// groupsOf returns every alias group containing region, in table order.
func (p *Profile) groupsOf(region string) []Alias {
	var out []Alias
	for _, a := range p.Aliases {
		if a.contains(region) {
			out = append(out, a)
		}
	}
	return out
}

func (a Alias) contains(region string) bool {
	if normalize(a.Canonical) == region {
		return true
	}
	for _, s := range a.Spellings {
		if normalize(s) == region {
			return true
		}
	}
	return false
}

// normalize lower-cases with simple Unicode folding, never locale rules.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
