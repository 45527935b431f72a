package signature

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	systemBlockRe = regexp.MustCompile(`(?is)\[\s*system\s*\](.*?)\[\s*end\s+system\s*\]`)
	templateVarRe = regexp.MustCompile(`\{\{[^}]*\}\}`)
	condBlockRe   = regexp.MustCompile(`\{%[^%]*%\}`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	sentenceEndRe = regexp.MustCompile(`[.!?]+\s+`)

	adjacentVarCommaRe = regexp.MustCompile(`\[VAR\]\s*,\s*\[VAR\]`)
	adjacentVarRe      = regexp.MustCompile(`\[VAR\]\s+\[VAR\]`)

	codeFenceRe = regexp.MustCompile(`^` + "```" + `[a-zA-Z]*\s*`)
	yamlFrontRe = regexp.MustCompile(`^---\s*`)
	mdHeaderRe  = regexp.MustCompile(`(?m)^#.*?\n`)
)

// distinguishingPhrases mark the point at which a signature becomes unique
// enough to tell prompt types apart; sentence collection stops there.
var distinguishingPhrases = []string{
	"thinking to yourself",
	"reacting verbally",
	"speak as they would",
	"reacting internally",
	"speaking to",
	"in character and speak",
	"thoughts about",
	"verbal response",
	"internal thoughts",
	"remain completely in character",
	"verbally to a",
	"just occurred",
	"about the current situation",
}

// ignoredFolders are prompt-tree directories that hold no classifiable
// templates.
var ignoredFolders = map[string]bool{
	"web":           true,
	"submodules":    true,
	"documentation": true,
}

const (
	signatureTargetLen  = 150
	maxSignatureDefault = 200
	minSimplifiedLen    = 20
)

// TypeSignature is the scanner's output for one prompt template file.
type TypeSignature struct {
	Name       string
	Original   string
	Simplified string
}

// ScanConfig configures the prompt-file scanner.
type ScanConfig struct {
	PromptsDir     string
	ExceptionsPath string // optional exceptions config JSON
}

// ScanPrompts walks the prompts directory for .prompt files and derives a
// signature per file. Normal files are read through their system block;
// files named in the exceptions config are read as raw content. Files
// without a usable signature are logged and skipped.
func ScanPrompts(cfg ScanConfig, logger *slog.Logger) ([]TypeSignature, error) {
	exceptions, maxLen, err := loadExceptions(cfg.ExceptionsPath, logger)
	if err != nil {
		return nil, err
	}

	var results []TypeSignature
	err = filepath.WalkDir(cfg.PromptsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if ignoredFolders[d.Name()] {
				logger.Debug("skipping ignored directory", "path", path)
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".prompt") {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("failed to read prompt file", "path", path, "error", err)
			return nil
		}

		name := strings.TrimSuffix(d.Name(), ".prompt")
		var sig string
		if exceptions[d.Name()] {
			sig = ExtractRawSignature(string(content), maxLen)
		} else {
			block := ExtractSystemBlock(string(content))
			if block == "" {
				logger.Warn("no system block found", "path", path)
				return nil
			}
			sig = ExtractSignature(block)
		}
		if sig == "" {
			logger.Warn("no signature extracted", "path", path)
			return nil
		}

		results = append(results, TypeSignature{
			Name:       name,
			Original:   sig,
			Simplified: Simplify(sig),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan prompts: %w", err)
	}
	return results, nil
}

func loadExceptions(path string, logger *slog.Logger) (map[string]bool, int, error) {
	exceptions := make(map[string]bool)
	if path == "" {
		return exceptions, maxSignatureDefault, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("exceptions config not found", "path", path)
			return exceptions, maxSignatureDefault, nil
		}
		return nil, 0, fmt.Errorf("read exceptions config: %w", err)
	}

	gjson.GetBytes(data, "exception_files.files").ForEach(func(_, f gjson.Result) bool {
		exceptions[f.String()] = true
		return true
	})
	maxLen := maxSignatureDefault
	if v := gjson.GetBytes(data, "configuration.max_signature_length"); v.Exists() {
		maxLen = int(v.Int())
	}
	return exceptions, maxLen, nil
}

// ExtractSystemBlock returns the content between [ system ] and
// [ end system ] tags, or "" when the file has no such block.
func ExtractSystemBlock(content string) string {
	m := systemBlockRe.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ExtractSignature derives a signature from a system block: up to four
// sentence-like units, stopping early once a distinguishing phrase appears
// or the signature is long enough to be unique. Template variables are
// protected from sentence splitting.
func ExtractSignature(text string) string {
	if text == "" {
		return ""
	}
	cleaned := squeezeWhitespace(text)

	// Swap template variables out so their embedded periods don't split
	// sentences, then restore them afterwards. The trailing underscore
	// keeps one placeholder from being a prefix of another (TEMPLATE_1_
	// vs TEMPLATE_10_), so restoration order cannot corrupt a variable.
	replacements := make(map[string]string)
	counter := 0
	protected := templateVarRe.ReplaceAllStringFunc(cleaned, func(match string) string {
		placeholder := fmt.Sprintf("TEMPLATE_%d_", counter)
		replacements[placeholder] = match
		counter++
		return placeholder
	})

	var sentences []string
	for _, part := range sentenceEndRe.Split(protected, -1) {
		for placeholder, original := range replacements {
			part = strings.ReplaceAll(part, placeholder, original)
		}
		part = strings.TrimSpace(part)
		if part != "" {
			sentences = append(sentences, part)
		}
	}

	var parts []string
	for i, sentence := range sentences {
		if i >= 4 {
			break
		}
		parts = append(parts, sentence)

		lower := strings.ToLower(sentence)
		distinguished := false
		for _, phrase := range distinguishingPhrases {
			if strings.Contains(lower, phrase) {
				distinguished = true
				break
			}
		}
		if distinguished || len(strings.Join(parts, ". ")) >= signatureTargetLen {
			break
		}
	}

	if len(parts) == 0 {
		if len(cleaned) > 100 {
			return strings.TrimSpace(cleaned[:100]) + "..."
		}
		return cleaned
	}

	sig := strings.Join(parts, ". ")
	if !strings.HasSuffix(sig, ".") && !strings.HasSuffix(sig, "!") && !strings.HasSuffix(sig, "?") {
		sig += "."
	}
	return strings.TrimSpace(sig)
}

// ExtractRawSignature derives a signature from raw file content, for
// exception files that carry no system block. Truncation prefers a
// sentence boundary, then a word boundary.
func ExtractRawSignature(content string, maxLen int) string {
	if content == "" {
		return ""
	}
	cleaned := squeezeWhitespace(content)
	cleaned = codeFenceRe.ReplaceAllString(cleaned, "")
	cleaned = yamlFrontRe.ReplaceAllString(cleaned, "")
	cleaned = mdHeaderRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	if len(cleaned) <= maxLen {
		return cleaned
	}

	truncated := cleaned[:maxLen]
	lastSentenceEnd := max(strings.LastIndex(truncated, "."),
		max(strings.LastIndex(truncated, "!"), strings.LastIndex(truncated, "?")))
	if float64(lastSentenceEnd) > float64(maxLen)*0.5 {
		return strings.TrimSpace(truncated[:lastSentenceEnd+1])
	}

	lastSpace := strings.LastIndex(truncated, " ")
	if float64(lastSpace) > float64(maxLen)*0.7 {
		return strings.TrimSpace(truncated[:lastSpace]) + "..."
	}
	return truncated + "..."
}

// Simplify collapses templating placeholders to a single [VAR] marker so
// signatures from different template revisions compare equal.
func Simplify(sig string) string {
	simplified := templateVarRe.ReplaceAllString(sig, "[VAR]")
	simplified = condBlockRe.ReplaceAllString(simplified, "")
	simplified = adjacentVarCommaRe.ReplaceAllString(simplified, "[VAR]")
	simplified = adjacentVarRe.ReplaceAllString(simplified, "[VAR]")
	simplified = squeezeWhitespace(simplified)
	simplified = strings.TrimRight(simplified, ".")

	if len(simplified) < minSimplifiedLen {
		simplified = strings.TrimRight(squeezeWhitespace(sig), ".")
	}
	return simplified
}

func squeezeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

type entryJSON struct {
	Usage               string `json:"usage"`
	OriginalSignature   string `json:"original_signature"`
	SimplifiedSignature string `json:"simplified_signature"`
}

// WritePromptTypes saves the scanned signatures as a prompt-types document,
// preserving scan order so downstream classification is deterministic.
func WritePromptTypes(path string, sigs []TypeSignature) error {
	var buf bytes.Buffer
	buf.WriteString(`{"prompt_types":{`)
	for i, sig := range sigs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sig.Name)
		if err != nil {
			return fmt.Errorf("marshal prompt type name: %w", err)
		}
		value, err := json.Marshal(entryJSON{
			Usage:               "default",
			OriginalSignature:   sig.Original,
			SimplifiedSignature: sig.Simplified,
		})
		if err != nil {
			return fmt.Errorf("marshal prompt type entry: %w", err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteString("}}")

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buf.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("indent prompt types: %w", err)
	}
	if err := os.WriteFile(path, pretty.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write prompt types: %w", err)
	}
	return nil
}
