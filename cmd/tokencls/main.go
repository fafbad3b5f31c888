// Command tokencls runs the evaluation and prediction phases of a token
// classification (NER) run: it loads a test split and a tokenizer
// vocabulary, reduces externally computed logits to per-token labels,
// scores them against the gold tags and decodes entity spans into
// test_results.json.
//
// Training itself runs in the external model runtime; this driver consumes
// its outputs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"k8s.io/klog/v2"

	"github.com/gomlx/go-tokencls/dataset"
	"github.com/gomlx/go-tokencls/hub"
	"github.com/gomlx/go-tokencls/labels"
	"github.com/gomlx/go-tokencls/logits"
	"github.com/gomlx/go-tokencls/metrics"
	"github.com/gomlx/go-tokencls/runner"
	"github.com/gomlx/go-tokencls/tokenizers/wordpiece"
)

var (
	flagDataset      = flag.String("dataset", "msra_ner", "Dataset name, used to pick defaults and the output subdirectory.")
	flagTestFile     = flag.String("test_file", "", "Test split: local path or hf:// reference (.parquet, or MSRA-style column .tsv/.txt).")
	flagVocab        = flag.String("vocab", "", "Tokenizer vocab.txt: local path or hf:// reference.")
	flagLabels       = flag.String("labels_file", "", "Label list, one label per line; local path or hf:// reference. Defaults to the MSRA scheme.")
	flagLogits       = flag.String("logits", "", "Path to the safetensors logits file produced by the model runtime.")
	flagOutputDir    = flag.String("output_dir", "output", "Directory for run outputs; the dataset name is appended.")
	flagMaxSeqLen    = flag.Int("max_seq_length", 128, "Maximum encoded sequence length, special tokens included.")
	flagDynamicLens  = flag.String("dynamic_max_length", "", "Comma-separated padding buckets, e.g. 32,64,128.")
	flagLowercase    = flag.Bool("do_lower_case", false, "Lowercase and strip accents before tokenization.")
	flagDoEval       = flag.Bool("do_eval", false, "Score predictions against the gold labels.")
	flagDoPredict    = flag.Bool("do_predict", false, "Decode entity spans and write test_results.json.")
	flagOverwriteOut = flag.Bool("overwrite_output_dir", false, "Allow writing into a non-empty output directory.")
	flagResumeFrom   = flag.String("resume_from_checkpoint", "", "Explicit checkpoint directory to resume from.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if err := run(); err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
}

func run() error {
	outputDir := filepath.Join(*flagOutputDir, strings.TrimSpace(*flagDataset))
	printConfig(outputDir)

	if !*flagDoEval && !*flagDoPredict {
		return fmt.Errorf("nothing to do: pass -do_eval and/or -do_predict")
	}

	resume := *flagResumeFrom
	if resume == "" {
		detected, err := runner.CheckOutputDir(outputDir, *flagOverwriteOut)
		if err != nil {
			return err
		}
		resume = detected
	}
	if resume != "" {
		klog.Infof("checkpoint detected, using state from %s", resume)
	}

	scheme, err := loadScheme()
	if err != nil {
		return err
	}
	vocabPath, err := resolveFile(*flagVocab)
	if err != nil {
		return err
	}
	tokenizer, err := wordpiece.FromFile(vocabPath, wordpiece.Options{
		Lowercase: *flagLowercase,
		FoldWidth: true,
	})
	if err != nil {
		return err
	}

	buckets, err := parseBuckets(*flagDynamicLens)
	if err != nil {
		return err
	}
	encoder, err := dataset.NewEncoder(tokenizer, scheme, *flagMaxSeqLen, buckets)
	if err != nil {
		return err
	}

	ds, err := loadSplit(*flagTestFile, scheme)
	if err != nil {
		return err
	}
	klog.Infof("loaded %d test examples", ds.Len())
	features, err := encoder.EncodeAll(ds)
	if err != nil {
		return err
	}

	logitsFile, err := logits.Open(*flagLogits)
	if err != nil {
		return err
	}
	defer logitsFile.Close()
	predictions, err := runner.ArgmaxAll(logitsFile)
	if err != nil {
		return err
	}

	r := &runner.Runner{Scheme: scheme, Tokenizer: tokenizer, OutputDir: outputDir}

	if *flagDoEval {
		report, err := r.Evaluate(features, predictions)
		if err != nil {
			return err
		}
		fmt.Println(renderReport(report))
	}
	if *flagDoPredict {
		res, err := r.Predict(features, predictions)
		if err != nil {
			return err
		}
		klog.Infof("decoded spans for %d examples, run %s", len(res.Value), res.RunID)
	}
	return nil
}

func loadScheme() (*labels.Scheme, error) {
	if *flagLabels == "" {
		return labels.MSRA(), nil
	}
	path, err := resolveFile(*flagLabels)
	if err != nil {
		return nil, err
	}
	return labels.FromFile(path)
}

func loadSplit(ref string, scheme *labels.Scheme) (*dataset.Dataset, error) {
	if ref == "" {
		return nil, fmt.Errorf("missing -test_file")
	}
	path, err := resolveFile(ref)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".parquet") {
		return dataset.FromParquet(path, scheme)
	}
	return dataset.FromColumnFile(path, scheme)
}

// resolveFile accepts a local path, or a hub reference of the form
// hf://owner/repo/file (model repos) or hf://datasets/owner/repo/file, which
// it downloads into the local cache.
func resolveFile(ref string) (string, error) {
	rest, isHub := strings.CutPrefix(ref, "hf://")
	if !isHub {
		return ref, nil
	}
	repoType := hub.RepoTypeModel
	if after, isDataset := strings.CutPrefix(rest, "datasets/"); isDataset {
		repoType = hub.RepoTypeDataset
		rest = after
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid hub reference %q, want hf://owner/repo/file", ref)
	}
	repo := hub.New(parts[0] + "/" + parts[1]).WithType(repoType)
	if token := os.Getenv("HF_TOKEN"); token != "" {
		repo = repo.WithAuthToken(token)
	}
	return repo.DownloadFile(context.Background(), parts[2])
}

func parseBuckets(spec string) ([]int, error) {
	if spec == "" {
		return nil, nil
	}
	parts := strings.Split(spec, ",")
	buckets := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid -dynamic_max_length entry %q", part)
		}
		buckets = append(buckets, n)
	}
	return buckets, nil
}

func printConfig(outputDir string) {
	klog.Infof("config: dataset=%s test_file=%s vocab=%s logits=%s output_dir=%s max_seq_length=%d",
		*flagDataset, *flagTestFile, *flagVocab, *flagLogits, outputDir, *flagMaxSeqLen)
}

var (
	reportBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	reportTitle = lipgloss.NewStyle().Bold(true)
	metricName  = lipgloss.NewStyle().Width(12).Faint(true)
)

func renderReport(report metrics.Report) string {
	lines := []string{
		reportTitle.Render("test metrics"),
		metricName.Render("precision") + fmt.Sprintf("%.4f", report.Precision),
		metricName.Render("recall") + fmt.Sprintf("%.4f", report.Recall),
		metricName.Render("f1") + fmt.Sprintf("%.4f", report.F1),
		metricName.Render("accuracy") + fmt.Sprintf("%.4f", report.Accuracy),
	}
	types := make([]string, 0, len(report.PerType))
	for typ := range report.PerType {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		score := report.PerType[typ]
		lines = append(lines, metricName.Render(typ)+
			fmt.Sprintf("p=%.4f r=%.4f f1=%.4f support=%d", score.Precision, score.Recall, score.F1, score.Support))
	}
	return reportBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
