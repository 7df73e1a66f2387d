package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// OrganizationProfile identifies the organization under analysis plus the
// stakeholder categories the caller already knows about. The extraction stage
// may enrich it with discovered stakeholders; nothing else mutates it.
type OrganizationProfile struct {
	Name         string   `json:"name"`
	Industry     string   `json:"industry,omitempty"`
	Website      string   `json:"website,omitempty"`
	Description  string   `json:"description,omitempty"`
	Competitors  []string `json:"competitors,omitempty"`
	Regulators   []string `json:"regulators,omitempty"`
	MediaOutlets []string `json:"media_outlets,omitempty"`
	Investors    []string `json:"investors,omitempty"`
	Analysts     []string `json:"analysts,omitempty"`
	Critics      []string `json:"critics,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

// CanonicalKey derives the stable key used for caching, bridge persistence,
// and run records. Accents are stripped, punctuation collapses to hyphens:
// "Açme Corp." -> "acme-corp".
func (p OrganizationProfile) CanonicalKey() string {
	return CanonicalKey(p.Name)
}

var stripMarks = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// CanonicalKey normalizes an organization name into a lowercase hyphenated key.
func CanonicalKey(name string) string {
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// MergeDiscovered folds stakeholders and keywords discovered by the extraction
// stage into the profile without duplicating entries the caller supplied.
func (p *OrganizationProfile) MergeDiscovered(d ProfileExtract) {
	if p.Industry == "" {
		p.Industry = d.Industry
	}
	if p.Website == "" {
		p.Website = d.Website
	}
	if p.Description == "" {
		p.Description = d.Description
	}
	p.Competitors = mergeUnique(p.Competitors, d.Competitors)
	p.Regulators = mergeUnique(p.Regulators, d.Regulators)
	p.MediaOutlets = mergeUnique(p.MediaOutlets, d.MediaOutlets)
	p.Investors = mergeUnique(p.Investors, d.Investors)
	p.Analysts = mergeUnique(p.Analysts, d.Analysts)
	p.Critics = mergeUnique(p.Critics, d.Critics)
	p.Keywords = mergeUnique(p.Keywords, d.Keywords)
}

func mergeUnique(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]bool, len(base))
	for _, v := range base {
		seen[strings.ToLower(strings.TrimSpace(v))] = true
	}
	out := base
	for _, v := range extra {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
