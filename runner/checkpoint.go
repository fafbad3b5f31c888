package runner

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

var checkpointDirRe = regexp.MustCompile(`^checkpoint-(\d+)$`)

// LatestCheckpoint returns the path of the newest checkpoint-<N> directory
// under dir, or "" when there is none. Missing dir is not an error.
func LatestCheckpoint(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrapf(err, "failed to list output directory %q", dir)
	}
	best := -1
	name := ""
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := checkpointDirRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= best {
			continue
		}
		best = n
		name = entry.Name()
	}
	if best < 0 {
		return "", nil
	}
	return filepath.Join(dir, name), nil
}

// CheckOutputDir applies the resume policy: a non-empty output directory
// without a checkpoint is refused unless overwrite is set, so a run never
// silently clobbers unrelated files. It returns the checkpoint to resume
// from, or "" to start fresh.
func CheckOutputDir(dir string, overwrite bool) (string, error) {
	if overwrite {
		return "", nil
	}
	checkpoint, err := LatestCheckpoint(dir)
	if err != nil {
		return "", err
	}
	if checkpoint != "" {
		return checkpoint, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrapf(err, "failed to list output directory %q", dir)
	}
	if len(entries) > 0 {
		return "", errors.Errorf("output directory %q already exists and is not empty; pass overwrite to proceed", dir)
	}
	return "", nil
}
