package dataset

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/gomlx/go-tokencls/labels"
	"github.com/gomlx/go-tokencls/tokenizers/api"
)

// Feature is one encoded example, ready for the model: input ids wrapped in
// classification/separator markers, with the label sequence aligned
// position-for-position to the input ids.
//
// Special positions carry the no-entity label so they stay visible to
// token-level accuracy.
// Continuation subwords of a multi-subword unit carry labels.IgnoreIndex so
// they drop out of loss and metrics.
type Feature struct {
	InputIDs     []int
	TokenTypeIDs []int
	Labels       []int
	SeqLen       int
}

// Encoder turns raw examples into features.
type Encoder struct {
	Tokenizer api.Tokenizer
	Scheme    *labels.Scheme

	// MaxSeqLength bounds the encoded sequence, special tokens included.
	MaxSeqLength int
	// DynamicMaxLengths, when set, picks the smallest bucket that fits the
	// example instead of always padding to MaxSeqLength.
	DynamicMaxLengths []int

	noEntityID int
	clsID      int
	sepID      int
}

// NewEncoder validates the configuration and resolves the special ids.
func NewEncoder(tokenizer api.Tokenizer, scheme *labels.Scheme, maxSeqLength int, dynamicMaxLengths []int) (*Encoder, error) {
	if maxSeqLength < 3 {
		return nil, errors.Errorf("max sequence length %d leaves no room for content", maxSeqLength)
	}
	noEntityID, err := scheme.NoEntityID()
	if err != nil {
		return nil, errors.WithMessage(err, "label scheme has no outside label")
	}
	clsID, err := tokenizer.SpecialTokenID(api.TokClassification)
	if err != nil {
		return nil, err
	}
	sepID, err := tokenizer.SpecialTokenID(api.TokSeparator)
	if err != nil {
		return nil, err
	}
	buckets := append([]int(nil), dynamicMaxLengths...)
	sort.Ints(buckets)
	return &Encoder{
		Tokenizer:         tokenizer,
		Scheme:            scheme,
		MaxSeqLength:      maxSeqLength,
		DynamicMaxLengths: buckets,
		noEntityID:        noEntityID,
		clsID:             clsID,
		sepID:             sepID,
	}, nil
}

// Encode aligns one example. Each input unit contributes its subwords; the
// unit's label goes on the first subword, continuations get IgnoreIndex.
// Content is truncated to fit MaxSeqLength minus the two special tokens.
func (e *Encoder) Encode(example Example) (Feature, error) {
	if len(example.Tokens) != len(example.Labels) {
		return Feature{}, errors.Errorf("example has %d tokens but %d labels", len(example.Tokens), len(example.Labels))
	}
	budget := e.MaxSeqLength - 2

	inputIDs := []int{e.clsID}
	labelIDs := []int{e.noEntityID}
	perUnit := e.Tokenizer.EncodePreSplit(example.Tokens)
	for i, subIDs := range perUnit {
		if !e.Scheme.Valid(example.Labels[i]) {
			return Feature{}, errors.Errorf("label id %d at unit %d out of range", example.Labels[i], i)
		}
		if len(inputIDs)-1+len(subIDs) > budget {
			break
		}
		for j, id := range subIDs {
			inputIDs = append(inputIDs, id)
			if j == 0 {
				labelIDs = append(labelIDs, example.Labels[i])
			} else {
				labelIDs = append(labelIDs, labels.IgnoreIndex)
			}
		}
	}
	inputIDs = append(inputIDs, e.sepID)
	labelIDs = append(labelIDs, e.noEntityID)

	f := Feature{
		InputIDs:     inputIDs,
		TokenTypeIDs: make([]int, len(inputIDs)),
		Labels:       labelIDs,
		SeqLen:       len(inputIDs),
	}
	return f, nil
}

// EncodeAll encodes every example of a dataset, preserving order.
func (e *Encoder) EncodeAll(ds *Dataset) ([]Feature, error) {
	features := make([]Feature, 0, len(ds.Examples))
	for i, example := range ds.Examples {
		f, err := e.Encode(example)
		if err != nil {
			return nil, errors.WithMessagef(err, "example %d", i)
		}
		features = append(features, f)
	}
	return features, nil
}

// PadTo pads a feature in place to the target length: PAD for input ids,
// IgnoreIndex for labels. The target is the dynamic bucket fitting SeqLen
// when buckets are configured, MaxSeqLength otherwise.
func (e *Encoder) PadTo(f *Feature) error {
	target := e.MaxSeqLength
	for _, bucket := range e.DynamicMaxLengths {
		if f.SeqLen <= bucket && bucket <= e.MaxSeqLength {
			target = bucket
			break
		}
	}
	if f.SeqLen > target {
		return errors.Errorf("feature length %d exceeds padding target %d", f.SeqLen, target)
	}
	padID, err := e.Tokenizer.SpecialTokenID(api.TokPad)
	if err != nil {
		return err
	}
	for len(f.InputIDs) < target {
		f.InputIDs = append(f.InputIDs, padID)
		f.TokenTypeIDs = append(f.TokenTypeIDs, 0)
		f.Labels = append(f.Labels, labels.IgnoreIndex)
	}
	return nil
}
