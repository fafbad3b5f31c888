package dataset

import (
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"

	"github.com/gomlx/go-tokencls/labels"
)

// parquetRow mirrors the column layout of hub-exported NER dataset shards.
type parquetRow struct {
	Tokens  []string `parquet:"tokens"`
	NERTags []int32  `parquet:"ner_tags"`
}

// FromParquet reads a split from a parquet shard with `tokens` and
// `ner_tags` columns. Tag ids must be valid indices into scheme.
func FromParquet(path string, scheme *labels.Scheme) (*Dataset, error) {
	rows, err := parquet.ReadFile[parquetRow](path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read parquet shard %q", path)
	}
	ds := &Dataset{Scheme: scheme}
	for i, row := range rows {
		if len(row.Tokens) != len(row.NERTags) {
			return nil, errors.Errorf("parquet shard %q row %d: %d tokens but %d tags",
				path, i, len(row.Tokens), len(row.NERTags))
		}
		example := Example{Tokens: row.Tokens, Labels: make([]int, len(row.NERTags))}
		for j, tag := range row.NERTags {
			if !scheme.Valid(int(tag)) {
				return nil, errors.Errorf("parquet shard %q row %d: tag id %d out of range", path, i, tag)
			}
			example.Labels[j] = int(tag)
		}
		ds.Examples = append(ds.Examples, example)
	}
	return ds, nil
}
