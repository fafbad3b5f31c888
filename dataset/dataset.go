// Package dataset loads token classification examples and turns them into
// model-ready features with aligned label sequences.
//
// Two storage formats are supported: the MSRA-style column format (tokens
// and tags as two tab-separated columns, units joined by the \x02
// separator) and parquet shards as exported by dataset hubs.
package dataset

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/gomlx/go-tokencls/labels"
)

// unitSeparator joins tokens and tags inside a column in the MSRA format.
const unitSeparator = "\x02"

// Example is one raw sentence: surface units (characters for the Chinese
// corpora) with one label id per unit.
type Example struct {
	Tokens []string
	Labels []int
}

// Dataset is an in-memory split of examples sharing one label scheme.
type Dataset struct {
	Examples []Example
	Scheme   *labels.Scheme
}

// Len returns the number of examples.
func (d *Dataset) Len() int { return len(d.Examples) }

// FromColumnFile reads a split in the MSRA column format: per line, a tokens
// column and a tags column separated by a tab, units within a column joined
// by \x02 (plain spaces also accepted). Tags are resolved against scheme.
func FromColumnFile(path string, scheme *labels.Scheme) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dataset file %q", path)
	}
	defer f.Close()

	ds := &Dataset{Scheme: scheme}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		example, err := parseColumnLine(line, scheme)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s:%d", path, lineNo)
		}
		ds.Examples = append(ds.Examples, example)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read dataset file %q", path)
	}
	return ds, nil
}

func parseColumnLine(line string, scheme *labels.Scheme) (Example, error) {
	columns := strings.SplitN(line, "\t", 2)
	if len(columns) != 2 {
		return Example{}, errors.New("expected two tab-separated columns")
	}
	tokens := splitUnits(columns[0])
	tags := splitUnits(columns[1])
	if len(tokens) != len(tags) {
		return Example{}, errors.Errorf("%d tokens but %d tags", len(tokens), len(tags))
	}
	example := Example{Tokens: tokens, Labels: make([]int, len(tags))}
	for i, tag := range tags {
		id, err := scheme.ID(tag)
		if err != nil {
			return Example{}, err
		}
		example.Labels[i] = id
	}
	return example, nil
}

func splitUnits(column string) []string {
	if strings.Contains(column, unitSeparator) {
		return strings.Split(column, unitSeparator)
	}
	return strings.Fields(column)
}
