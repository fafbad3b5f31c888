// Package runner drives the evaluation and prediction phases of a token
// classification run: it joins encoded features with externally computed
// predictions, decodes entity spans, scores against gold labels and writes
// the results file.
package runner

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/go-tokencls/dataset"
	"github.com/gomlx/go-tokencls/labels"
	"github.com/gomlx/go-tokencls/logits"
	"github.com/gomlx/go-tokencls/metrics"
	"github.com/gomlx/go-tokencls/spans"
	"github.com/gomlx/go-tokencls/tokenizers/api"
)

// Runner holds the shared, read-only pieces of one run.
type Runner struct {
	Scheme    *labels.Scheme
	Tokenizer api.Tokenizer
	OutputDir string
}

// ArgmaxAll reduces every example of a logits file to per-token label ids.
func ArgmaxAll(file *logits.File) ([][]int, error) {
	out := make([][]int, file.NumExamples())
	for i := range out {
		ids, err := file.Argmax(i)
		if err != nil {
			return nil, err
		}
		out[i] = ids
	}
	return out, nil
}

// strip cuts one example down to its content positions: the leading
// classification marker and trailing separator go, leaving tokens and
// predicted ids of equal length.
func (r *Runner) strip(f dataset.Feature, predicted []int) ([]string, []int, error) {
	if f.SeqLen < 2 {
		return nil, nil, errors.Errorf("feature too short: %d positions", f.SeqLen)
	}
	if len(predicted) < f.SeqLen {
		return nil, nil, errors.Errorf("%d predictions for %d positions", len(predicted), f.SeqLen)
	}
	tokens := r.Tokenizer.ConvertIDsToTokens(f.InputIDs[1 : f.SeqLen-1])
	ids := predicted[1 : f.SeqLen-1]
	return tokens, ids, nil
}

// Predict decodes entity spans for every example and writes the results
// file. predictions come from the external runtime (see ArgmaxAll) and may
// include padded positions past each feature's SeqLen.
func (r *Runner) Predict(features []dataset.Feature, predictions [][]int) (*Results, error) {
	if len(features) != len(predictions) {
		return nil, errors.Errorf("%d features for %d prediction sequences", len(features), len(predictions))
	}
	res := &Results{
		Value:       make([][]spans.Span, len(features)),
		TokensLabel: make([][]int, len(features)),
		RunID:       uuid.NewString(),
	}
	for i, f := range features {
		tokens, ids, err := r.strip(f, predictions[i])
		if err != nil {
			return nil, errors.WithMessagef(err, "example %d", i)
		}
		decoded, err := spans.Decode(ids, tokens, r.Scheme)
		if err != nil {
			return nil, errors.WithMessagef(err, "example %d", i)
		}
		if decoded == nil {
			decoded = []spans.Span{}
		}
		res.Value[i] = decoded
		res.TokensLabel[i] = ids
	}
	path, err := res.Write(r.OutputDir)
	if err != nil {
		return nil, err
	}
	klog.Infof("wrote predictions for %d examples to %s (run %s)", len(features), path, res.RunID)
	return res, nil
}

// Evaluate scores predictions against the gold labels carried by the
// features. Ignored positions (padding, subword continuations) drop out.
func (r *Runner) Evaluate(features []dataset.Feature, predictions [][]int) (metrics.Report, error) {
	if len(features) != len(predictions) {
		return metrics.Report{}, errors.Errorf("%d features for %d prediction sequences", len(features), len(predictions))
	}
	references := make([][]int, len(features))
	predicted := make([][]int, len(features))
	for i, f := range features {
		if len(predictions[i]) < f.SeqLen {
			return metrics.Report{}, errors.Errorf("example %d: %d predictions for %d positions", i, len(predictions[i]), f.SeqLen)
		}
		references[i] = f.Labels[:f.SeqLen]
		predicted[i] = predictions[i][:f.SeqLen]
	}
	report, err := metrics.Compute(predicted, references, r.Scheme)
	if err != nil {
		return metrics.Report{}, err
	}
	klog.V(1).Infof("eval: precision=%.4f recall=%.4f f1=%.4f accuracy=%.4f",
		report.Precision, report.Recall, report.F1, report.Accuracy)
	return report, nil
}
