// Package api defines the Tokenizer API used by the token classification
// pipeline, decoupled from any concrete vocabulary format.
package api

// Tokenizer converts text to token ids and back.
//
// It also maps special tokens: tokens with a common semantic (like padding)
// that may have different ids in different vocabularies.
type Tokenizer interface {
	Encode(text string) []int
	Decode(ids []int) string

	// EncodePreSplit tokenizes input already split into units (words or
	// characters), returning one id slice per input unit. This keeps the
	// unit-to-subword alignment that label alignment needs.
	EncodePreSplit(units []string) [][]int

	// ConvertIDsToTokens maps ids back to their surface token strings,
	// the way predictions are mapped back to text for span extraction.
	ConvertIDsToTokens(ids []int) []string

	// SpecialTokenID returns the id for the given special token if the
	// vocabulary defines it, or an error if not.
	SpecialTokenID(token SpecialToken) (int, error)
}

// SpecialToken is an enum of commonly used special tokens.
type SpecialToken int

const (
	TokClassification SpecialToken = iota
	TokSeparator
	TokPad
	TokUnknown
	TokMask
	TokSpecialTokensCount
)

// String implements fmt.Stringer.
func (t SpecialToken) String() string {
	switch t {
	case TokClassification:
		return "classification"
	case TokSeparator:
		return "separator"
	case TokPad:
		return "pad"
	case TokUnknown:
		return "unknown"
	case TokMask:
		return "mask"
	}
	return "invalid"
}
