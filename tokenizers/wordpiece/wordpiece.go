// Package wordpiece implements a vocab.txt-based WordPiece tokenizer, the
// format shipped with BERT/ERNIE family checkpoints.
//
// It covers what token classification needs: BERT-style text cleaning and
// pre-tokenization (whitespace, punctuation, CJK characters split out as
// single units), greedy longest-match subword tokenization with a "##"
// continuation prefix, and id-to-token mapping to recover surface text for
// span extraction.
package wordpiece

import (
	"bufio"
	"os"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/gomlx/go-tokencls/tokenizers/api"
)

const (
	defaultUnkToken         = "[UNK]"
	defaultContinuingPrefix = "##"
	defaultMaxCharsPerWord  = 100
)

// Options configures a Tokenizer.
type Options struct {
	// Lowercase applies lowercasing and accent stripping before
	// tokenization, like BERT's do_lower_case.
	Lowercase bool
	// FoldWidth converts fullwidth forms to their halfwidth equivalents,
	// common preprocessing for CJK NER corpora.
	FoldWidth bool
	// ContinuingSubwordPrefix defaults to "##".
	ContinuingSubwordPrefix string
	// MaxInputCharsPerWord defaults to 100; longer words map to [UNK].
	MaxInputCharsPerWord int
}

// Tokenizer is a WordPiece tokenizer over a fixed vocabulary.
type Tokenizer struct {
	opts      Options
	vocab     map[string]int
	idToToken []string

	unkID  int
	padID  int
	clsID  int
	sepID  int
	maskID int
}

// Compile time assert that Tokenizer implements api.Tokenizer.
var _ api.Tokenizer = &Tokenizer{}

// FromFile loads the vocabulary from a vocab.txt file, one token per line,
// id given by line order.
func FromFile(path string, opts Options) (*Tokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open vocab file %q", path)
	}
	defer f.Close()
	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimRight(scanner.Text(), "\r\n"))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read vocab file %q", path)
	}
	t, err := New(tokens, opts)
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid vocab file %q", path)
	}
	return t, nil
}

// New builds a Tokenizer from an ordered vocabulary.
func New(tokens []string, opts Options) (*Tokenizer, error) {
	if len(tokens) == 0 {
		return nil, errors.New("empty vocabulary")
	}
	if opts.ContinuingSubwordPrefix == "" {
		opts.ContinuingSubwordPrefix = defaultContinuingPrefix
	}
	if opts.MaxInputCharsPerWord == 0 {
		opts.MaxInputCharsPerWord = defaultMaxCharsPerWord
	}
	t := &Tokenizer{
		opts:      opts,
		vocab:     make(map[string]int, len(tokens)),
		idToToken: make([]string, len(tokens)),
		unkID:     -1,
		padID:     -1,
		clsID:     -1,
		sepID:     -1,
		maskID:    -1,
	}
	for id, token := range tokens {
		if _, found := t.vocab[token]; found {
			return nil, errors.Errorf("duplicate vocab entry %q at id %d", token, id)
		}
		t.vocab[token] = id
		t.idToToken[id] = token
	}
	t.resolveSpecialTokens()
	if t.unkID < 0 {
		return nil, errors.Errorf("vocabulary has no %q token", defaultUnkToken)
	}
	return t, nil
}

func (t *Tokenizer) resolveSpecialTokens() {
	if id, ok := t.vocab[defaultUnkToken]; ok {
		t.unkID = id
	}
	if id, ok := t.vocab["[PAD]"]; ok {
		t.padID = id
	}
	if id, ok := t.vocab["[CLS]"]; ok {
		t.clsID = id
	}
	if id, ok := t.vocab["[SEP]"]; ok {
		t.sepID = id
	}
	if id, ok := t.vocab["[MASK]"]; ok {
		t.maskID = id
	}
}

// VocabSize returns the size of the vocabulary.
func (t *Tokenizer) VocabSize() int { return len(t.idToToken) }

// Encode converts text to a sequence of token ids.
func (t *Tokenizer) Encode(text string) []int {
	var ids []int
	for _, word := range t.preTokenize(t.normalize(text)) {
		ids = append(ids, t.tokenizeWord(word)...)
	}
	return ids
}

// EncodePreSplit tokenizes input already split into units, one id slice per
// unit. Units that produce no subwords map to a single [UNK].
func (t *Tokenizer) EncodePreSplit(units []string) [][]int {
	out := make([][]int, len(units))
	for i, unit := range units {
		var ids []int
		for _, word := range t.preTokenize(t.normalize(unit)) {
			ids = append(ids, t.tokenizeWord(word)...)
		}
		if len(ids) == 0 {
			ids = []int{t.unkID}
		}
		out[i] = ids
	}
	return out
}

// ConvertIDsToTokens maps token ids back to their vocabulary strings.
// Unknown ids map to the [UNK] surface form.
func (t *Tokenizer) ConvertIDsToTokens(ids []int) []string {
	tokens := make([]string, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(t.idToToken) {
			tokens[i] = defaultUnkToken
			continue
		}
		tokens[i] = t.idToToken[id]
	}
	return tokens
}

// Decode converts a sequence of token ids back to text, undoing the
// continuation prefix and joining words with spaces.
func (t *Tokenizer) Decode(ids []int) string {
	var b strings.Builder
	for i, token := range t.ConvertIDsToTokens(ids) {
		if strings.HasPrefix(token, t.opts.ContinuingSubwordPrefix) {
			b.WriteString(strings.TrimPrefix(token, t.opts.ContinuingSubwordPrefix))
			continue
		}
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(token)
	}
	return b.String()
}

// SpecialTokenID returns the id for a given special token.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	var id int
	switch token {
	case api.TokUnknown:
		id = t.unkID
	case api.TokPad:
		id = t.padID
	case api.TokClassification:
		id = t.clsID
	case api.TokSeparator:
		id = t.sepID
	case api.TokMask:
		id = t.maskID
	default:
		id = -1
	}
	if id < 0 {
		return 0, errors.Errorf("special token %s not in vocabulary", token)
	}
	return id, nil
}

// normalize applies cleaning, optional width folding and lowercasing.
func (t *Tokenizer) normalize(text string) string {
	text = cleanText(text)
	if t.opts.FoldWidth {
		text = width.Narrow.String(text)
	}
	if t.opts.Lowercase {
		text = removeAccents(norm.NFD.String(strings.ToLower(text)))
	}
	return text
}

// tokenizeWord applies greedy longest-match WordPiece to one word.
func (t *Tokenizer) tokenizeWord(word string) []int {
	if word == "" {
		return nil
	}
	runes := []rune(word)
	if len(runes) > t.opts.MaxInputCharsPerWord {
		return []int{t.unkID}
	}

	var ids []int
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := false
		for start < end {
			sub := string(runes[start:end])
			if start > 0 {
				sub = t.opts.ContinuingSubwordPrefix + sub
			}
			if id, ok := t.vocab[sub]; ok {
				ids = append(ids, id)
				found = true
				break
			}
			end--
		}
		if !found {
			// A single unmatchable piece turns the whole word into [UNK].
			return []int{t.unkID}
		}
		start = end
	}
	return ids
}

// preTokenize splits cleaned text into words: whitespace separated, with
// punctuation and CJK ideographs split out as standalone units.
func (t *Tokenizer) preTokenize(text string) []string {
	var words []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	for _, r := range text {
		switch {
		case isWhitespace(r):
			flush()
		case isPunctuation(r) || isCJK(r):
			flush()
			words = append(words, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return words
}

func cleanText(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r == 0 || r == 0xFFFD || isControl(r) {
			continue
		}
		if isWhitespace(r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

// isCJK reports whether r is a CJK ideograph. BERT-style tokenization treats
// each ideograph as its own word so the character-level label alignment of
// Chinese NER corpora survives subword tokenization.
func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0xF900 && r <= 0xFAFF)
}

func removeAccents(text string) string {
	var b strings.Builder
	for _, r := range text {
		if !unicode.Is(unicode.Mn, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
