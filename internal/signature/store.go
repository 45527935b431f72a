// Package signature holds the prompt-type taxonomy: canonical signature
// texts per type, historical variant patterns, and the scanner that builds
// the taxonomy from prompt template files.
package signature

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// fuzzyKey is a reserved entry inside the variants mapping that carries
// the fuzzy-matching configuration rather than a prompt type.
const fuzzyKey = "fuzzy_matching"

// defaultFuzzyThreshold is used when the variants file enables fuzzy
// matching without declaring a threshold.
const defaultFuzzyThreshold = 0.7

// Entry holds the canonical signature texts for one prompt type.
type Entry struct {
	Usage               string
	OriginalSignature   string
	SimplifiedSignature string
}

// FuzzyConfig controls the classifier's similarity-based matching tier.
type FuzzyConfig struct {
	Enabled                bool
	MinSimilarityThreshold float64
}

// Store is the loaded taxonomy. Iteration order follows the document
// order of the source files, so classification stays deterministic for a
// given taxonomy file.
type Store struct {
	names        []string
	entries      map[string]Entry
	variantNames []string
	variants     map[string][]string
	fuzzy        FuzzyConfig
}

// Load reads the prompt-types file and, if present, the variants file.
// A missing variants file is not an error: the classifier simply runs
// without variant and fuzzy matching.
func Load(promptTypesPath, variantsPath string) (*Store, error) {
	data, err := os.ReadFile(promptTypesPath)
	if err != nil {
		return nil, fmt.Errorf("read prompt types: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if variantsPath == "" {
		return s, nil
	}
	vdata, err := os.ReadFile(variantsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read variants: %w", err)
	}
	if err := s.ParseVariants(vdata); err != nil {
		return nil, err
	}
	return s, nil
}

// Parse decodes a prompt-types document:
//
//	{"prompt_types": {name: {usage, original_signature, simplified_signature}}}
func Parse(data []byte) (*Store, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parse prompt types: invalid JSON")
	}
	types := gjson.GetBytes(data, "prompt_types")
	if !types.Exists() {
		return nil, fmt.Errorf("parse prompt types: missing prompt_types key")
	}

	s := &Store{
		entries:  make(map[string]Entry),
		variants: make(map[string][]string),
	}
	types.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		s.names = append(s.names, name)
		s.entries[name] = Entry{
			Usage:               value.Get("usage").String(),
			OriginalSignature:   value.Get("original_signature").String(),
			SimplifiedSignature: value.Get("simplified_signature").String(),
		}
		return true
	})
	return s, nil
}

// ParseVariants decodes a variants document and merges it into the store:
//
//	{"prompt_type_variants": {name: {"patterns": [...]},
//	                          "fuzzy_matching": {enabled, min_similarity_threshold}}}
func (s *Store) ParseVariants(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("parse variants: invalid JSON")
	}
	root := gjson.GetBytes(data, "prompt_type_variants")
	if !root.Exists() {
		return nil
	}

	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if name == fuzzyKey {
			s.fuzzy.Enabled = value.Get("enabled").Bool()
			s.fuzzy.MinSimilarityThreshold = defaultFuzzyThreshold
			if th := value.Get("min_similarity_threshold"); th.Exists() {
				s.fuzzy.MinSimilarityThreshold = th.Float()
			}
			return true
		}

		var patterns []string
		value.Get("patterns").ForEach(func(_, p gjson.Result) bool {
			patterns = append(patterns, p.String())
			return true
		})
		if len(patterns) > 0 {
			s.variantNames = append(s.variantNames, name)
			s.variants[name] = patterns
		}
		return true
	})
	return nil
}

// Types returns every prompt-type name in document order.
func (s *Store) Types() []string {
	return s.names
}

// Entry returns the signature entry for a prompt type.
func (s *Store) Entry(name string) (Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// VariantTypes returns, in document order, the prompt types that declare
// variant patterns.
func (s *Store) VariantTypes() []string {
	return s.variantNames
}

// Variants returns the variant patterns for a prompt type.
func (s *Store) Variants(name string) []string {
	return s.variants[name]
}

// Fuzzy returns the fuzzy-matching configuration.
func (s *Store) Fuzzy() FuzzyConfig {
	return s.fuzzy
}

// Len returns the number of prompt types.
func (s *Store) Len() int {
	return len(s.names)
}
