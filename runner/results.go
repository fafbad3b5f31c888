package runner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"

	"github.com/pkg/errors"

	"github.com/gomlx/go-tokencls/spans"
)

// ResultsFileName is the fixed name of the prediction output file under the
// run's output directory.
const ResultsFileName = "test_results.json"

// Results is the serialized prediction output: per-example entity spans and
// the raw per-token predicted label ids they were decoded from.
type Results struct {
	Value       [][]spans.Span `json:"value"`
	TokensLabel [][]int        `json:"tokens_label"`
	RunID       string         `json:"run_id"`
}

// Write serializes the results as ASCII-escaped JSON to
// <outputDir>/test_results.json, creating the directory if needed.
// Non-ASCII runes are \u-escaped so outputs byte-compare across toolchains.
func (res *Results) Write(outputDir string) (string, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize results")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create output directory %q", outputDir)
	}
	path := filepath.Join(outputDir, ResultsFileName)
	if err := os.WriteFile(path, escapeNonASCII(raw), 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write results file %q", path)
	}
	return path, nil
}

// escapeNonASCII rewrites every rune above 0x7F as a \uXXXX escape. JSON
// only allows non-ASCII inside strings, so a byte-level rewrite is safe on
// marshaled output.
func escapeNonASCII(raw []byte) []byte {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range string(raw) {
		if r < 0x80 {
			b.WriteByte(byte(r))
			continue
		}
		if r > 0xFFFF {
			hi, lo := utf16.EncodeRune(r)
			writeEscape(&b, hi)
			writeEscape(&b, lo)
			continue
		}
		writeEscape(&b, r)
	}
	return []byte(b.String())
}

const hexDigits = "0123456789abcdef"

func writeEscape(b *strings.Builder, r rune) {
	b.WriteString(`\u`)
	for shift := 12; shift >= 0; shift -= 4 {
		b.WriteByte(hexDigits[(r>>shift)&0xF])
	}
}
