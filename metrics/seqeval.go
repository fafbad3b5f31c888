// Package metrics scores sequence labeling predictions at the entity level,
// following the chunk extraction rules of the seqeval library so scores
// stay comparable with evaluations produced elsewhere.
//
// Scores are computed over (prediction, reference) id sequences with ignored
// positions removed: a position counts only when its reference label is not
// labels.IgnoreIndex, mirroring how special tokens and padding are excluded
// from evaluation.
package metrics

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/gomlx/go-tokencls/labels"
)

// TypeScore is the score breakdown for one entity type.
type TypeScore struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int // number of reference entities of this type
}

// Report holds overall and per-type scores for one evaluation run.
type Report struct {
	Precision float64
	Recall    float64
	F1        float64
	Accuracy  float64
	PerType   map[string]TypeScore
}

// chunk is one extracted entity occurrence: type plus inclusive positions.
type chunk struct {
	typ        string
	start, end int
}

// chunkKey identifies a chunk occurrence across the whole evaluation run.
type chunkKey struct {
	example, start, end int
}

// Compute scores predictions against references. Both are per-example label
// id sequences of equal shape; reference positions holding
// labels.IgnoreIndex are dropped from both sides before scoring.
func Compute(predictions, references [][]int, scheme *labels.Scheme) (Report, error) {
	if len(predictions) != len(references) {
		return Report{}, errors.Errorf("%d prediction sequences for %d reference sequences", len(predictions), len(references))
	}

	var correctTokens, totalTokens int
	trueChunks := map[string]map[chunkKey]bool{}
	predChunks := map[string]map[chunkKey]bool{}

	for i := range predictions {
		if len(predictions[i]) != len(references[i]) {
			return Report{}, errors.Errorf("example %d: %d predictions for %d references", i, len(predictions[i]), len(references[i]))
		}
		predNames := make([]string, 0, len(predictions[i]))
		refNames := make([]string, 0, len(references[i]))
		for j, ref := range references[i] {
			if ref == labels.IgnoreIndex {
				continue
			}
			refName, err := scheme.Name(ref)
			if err != nil {
				return Report{}, errors.WithMessagef(err, "example %d reference at %d", i, j)
			}
			predName, err := scheme.Name(predictions[i][j])
			if err != nil {
				return Report{}, errors.WithMessagef(err, "example %d prediction at %d", i, j)
			}
			refNames = append(refNames, refName)
			predNames = append(predNames, predName)
			totalTokens++
			if ref == predictions[i][j] {
				correctTokens++
			}
		}
		for _, c := range extractChunks(refNames) {
			addChunk(trueChunks, i, c)
		}
		for _, c := range extractChunks(predNames) {
			addChunk(predChunks, i, c)
		}
	}

	report := Report{PerType: map[string]TypeScore{}}
	var correct, predicted, actual int
	for _, typ := range chunkTypes(trueChunks, predChunks) {
		tp := 0
		for c := range predChunks[typ] {
			if trueChunks[typ][c] {
				tp++
			}
		}
		np, na := len(predChunks[typ]), len(trueChunks[typ])
		report.PerType[typ] = TypeScore{
			Precision: ratio(tp, np),
			Recall:    ratio(tp, na),
			F1:        f1(tp, np, na),
			Support:   na,
		}
		correct += tp
		predicted += np
		actual += na
	}
	report.Precision = ratio(correct, predicted)
	report.Recall = ratio(correct, actual)
	report.F1 = f1(correct, predicted, actual)
	report.Accuracy = ratio(correctTokens, totalTokens)
	return report, nil
}

// addChunk keys chunks by example so equal spans in different examples stay
// distinct.
func addChunk(byType map[string]map[chunkKey]bool, example int, c chunk) {
	if byType[c.typ] == nil {
		byType[c.typ] = map[chunkKey]bool{}
	}
	byType[c.typ][chunkKey{example: example, start: c.start, end: c.end}] = true
}

func chunkTypes(a, b map[string]map[chunkKey]bool) []string {
	seen := map[string]bool{}
	for typ := range a {
		seen[typ] = true
	}
	for typ := range b {
		seen[typ] = true
	}
	types := make([]string, 0, len(seen))
	for typ := range seen {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func f1(tp, predicted, actual int) float64 {
	p, r := ratio(tp, predicted), ratio(tp, actual)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// extractChunks returns the entity chunks of a tag sequence under seqeval's
// default (lenient) scheme, which accepts IOB1, IOB2, IOE and IOBES input.
func extractChunks(tags []string) []chunk {
	var chunks []chunk
	prevTag, prevType := "O", ""
	start := -1
	for i, tag := range tags {
		curTag, curType := splitTag(tag)
		if start >= 0 && endOfChunk(prevTag, curTag, prevType, curType) {
			chunks = append(chunks, chunk{typ: prevType, start: start, end: i - 1})
			start = -1
		}
		if startOfChunk(prevTag, curTag, prevType, curType) {
			start = i
		}
		prevTag, prevType = curTag, curType
	}
	if start >= 0 {
		chunks = append(chunks, chunk{typ: prevType, start: start, end: len(tags) - 1})
	}
	return chunks
}

// splitTag splits "B-PER" into prefix "B" and type "PER". Plain "O" (or any
// unprefixed tag) has an empty type.
func splitTag(tag string) (string, string) {
	if tag == labels.Outside || tag == "" {
		return "O", ""
	}
	prefix, typ, found := strings.Cut(tag, "-")
	if !found {
		return tag, ""
	}
	return prefix, typ
}

func startOfChunk(prevTag, tag, prevType, typ string) bool {
	switch {
	case tag == "B" || tag == "S":
		return true
	case prevTag == "E" && (tag == "E" || tag == "I"):
		return true
	case prevTag == "S" && (tag == "E" || tag == "I"):
		return true
	case prevTag == "O" && (tag == "E" || tag == "I"):
		return true
	}
	return tag != "O" && tag != "." && prevType != typ
}

func endOfChunk(prevTag, tag, prevType, typ string) bool {
	switch {
	case prevTag == "E" || prevTag == "S":
		return true
	case prevTag == "B" && (tag == "B" || tag == "S" || tag == "O"):
		return true
	case prevTag == "I" && (tag == "B" || tag == "S" || tag == "O"):
		return true
	}
	return prevTag != "O" && prevTag != "." && prevType != typ
}
