// Package classify maps normalized request content to a named prompt type
// using a layered, best-effort matching strategy. Matching is a
// priority-ordered chain: the first tier that produces a match wins and no
// lower tier is consulted.
package classify

import (
	"strings"

	"github.com/gatewatch/promptbench/internal/signature"
)

// Unknown is the label returned when no tier matches. It is a normal
// outcome, not an error.
const Unknown = "unknown"

const (
	// prefixWindow bounds how far into the content every matcher looks.
	// Signatures live at the start of the instruction block; scanning the
	// whole content would only invite false positives.
	prefixWindow = 800
	// fuzzyPrefix is the truncation applied to both sides of a fuzzy
	// comparison. Kept at 200 for compatibility with historical
	// threshold tuning.
	fuzzyPrefix = 200
	// minSignatureLen is the shortest signature worth matching on; below
	// that, prefixes are too generic to discriminate.
	minSignatureLen = 30
	// signaturePrefixLen caps how much of a signature the fallback tier
	// searches for.
	signaturePrefixLen = 100
)

// Tier identifies which matching strategy produced a classification.
type Tier int

const (
	TierNone Tier = iota
	TierVariant
	TierPattern
	TierFuzzy
	TierSignature
)

func (t Tier) String() string {
	switch t {
	case TierVariant:
		return "variant"
	case TierPattern:
		return "pattern"
	case TierFuzzy:
		return "fuzzy"
	case TierSignature:
		return "signature"
	default:
		return "none"
	}
}

// Result is a classification decision: the matched prompt-type label and
// the tier that matched it.
type Result struct {
	Label string
	Tier  Tier
}

// Classifier matches content against a signature store. It is stateless
// apart from the store reference and safe for repeated use.
type Classifier struct {
	store *signature.Store
}

// New creates a Classifier over the given store.
func New(store *signature.Store) *Classifier {
	return &Classifier{store: store}
}

// matcher is one tier of the chain: it inspects the lowercased prefix
// window and reports a label if it matched.
type matcher func(prefix string) (string, bool)

// Classify returns exactly one Result for the given content. It never
// fails: content matching no tier yields (Unknown, TierNone).
func (c *Classifier) Classify(content string) Result {
	prefix := strings.ToLower(prefixOf(content, prefixWindow))

	tiers := []struct {
		tier  Tier
		match matcher
	}{
		{TierVariant, c.matchVariants},
		{TierPattern, matchPatterns},
		{TierFuzzy, c.matchFuzzy},
		{TierSignature, c.matchSignaturePrefix},
	}

	for _, t := range tiers {
		if label, ok := t.match(prefix); ok {
			return Result{Label: label, Tier: t.tier}
		}
	}
	return Result{Label: Unknown, Tier: TierNone}
}

// matchVariants tests every declared variant pattern, in store order,
// against the prefix window. Variants capture historical signature drift
// and therefore outrank every other tier.
func (c *Classifier) matchVariants(prefix string) (string, bool) {
	for _, name := range c.store.VariantTypes() {
		for _, pattern := range c.store.Variants(name) {
			if strings.Contains(prefix, strings.ToLower(pattern)) {
				return name, true
			}
		}
	}
	return "", false
}

// matchFuzzy compares truncated prefixes of the content and every
// signature with a similarity ratio, keeping the single best score. Only
// runs when the variants file enables it.
func (c *Classifier) matchFuzzy(prefix string) (string, bool) {
	cfg := c.store.Fuzzy()
	if !cfg.Enabled {
		return "", false
	}

	contentHead := prefixOf(prefix, fuzzyPrefix)
	var (
		best      string
		bestScore float64
	)
	for _, name := range c.store.Types() {
		entry, ok := c.store.Entry(name)
		if !ok {
			continue
		}
		for _, sig := range []string{entry.OriginalSignature, entry.SimplifiedSignature} {
			if sig == "" {
				continue
			}
			score := ratio(contentHead, strings.ToLower(prefixOf(sig, fuzzyPrefix)))
			if score > bestScore && score >= cfg.MinSimilarityThreshold {
				bestScore = score
				best = name
			}
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// matchSignaturePrefix is the last resort: a substantial signature prefix
// found verbatim anywhere in the window. Original signature is checked
// before the simplified one, per type, in store order.
func (c *Classifier) matchSignaturePrefix(prefix string) (string, bool) {
	for _, name := range c.store.Types() {
		entry, ok := c.store.Entry(name)
		if !ok {
			continue
		}
		for _, sig := range []string{entry.OriginalSignature, entry.SimplifiedSignature} {
			lower := strings.ToLower(sig)
			if len(lower) <= minSignatureLen {
				continue
			}
			if strings.Contains(prefix, prefixOf(lower, signaturePrefixLen)) {
				return name, true
			}
		}
	}
	return "", false
}

// prefixOf returns the first n runes of s.
func prefixOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
