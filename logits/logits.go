// Package logits reads per-example class score matrices from a safetensors
// file, the interchange format between the external model runtime and this
// pipeline.
//
// The runtime writes one float32 tensor per example, named "logits/<index>"
// with shape [seqLen, numClasses]. This package memory-maps the file and
// exposes the matrices plus the arg-max reduction the span decoder consumes.
package logits

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"
)

// maxHeaderSize bounds the JSON header. Safetensors headers for logits
// files are tiny; anything larger is corrupt.
const maxHeaderSize = 100 * 1024 * 1024

// tensorMeta is the per-tensor entry of the safetensors JSON header.
type tensorMeta struct {
	Dtype       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// File is an open logits file. Create one with Open; it holds a memory map
// until Close.
type File struct {
	path       string
	f          *os.File
	data       mmap.MMap
	dataOffset int64
	tensors    map[string]tensorMeta
	examples   int
}

// Open opens and validates a logits file.
//
// Safetensors layout:
//
//	[8 bytes: header size as little-endian u64]
//	[header_size bytes: JSON header]
//	[remaining bytes: tensor data]
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("logits: open %s: %w", path, err)
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("logits: mmap %s: %w", path, err)
	}
	lf := &File{path: path, f: f, data: data}
	if err := lf.parseHeader(); err != nil {
		lf.Close()
		return nil, err
	}
	return lf, nil
}

func (lf *File) parseHeader() error {
	if len(lf.data) < 8 {
		return fmt.Errorf("logits: %s: file too short for header size", lf.path)
	}
	headerSize := binary.LittleEndian.Uint64(lf.data[:8])
	if headerSize > maxHeaderSize {
		return fmt.Errorf("logits: %s: header size too large: %d bytes", lf.path, headerSize)
	}
	if int64(8+headerSize) > int64(len(lf.data)) {
		return fmt.Errorf("logits: %s: header size %d exceeds file size %d", lf.path, headerSize, len(lf.data))
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(lf.data[8:8+headerSize], &raw); err != nil {
		return fmt.Errorf("logits: %s: parse header JSON: %w", lf.path, err)
	}

	lf.dataOffset = int64(8 + headerSize)
	lf.tensors = make(map[string]tensorMeta, len(raw))
	for name, value := range raw {
		if name == "__metadata__" {
			continue
		}
		var meta tensorMeta
		if err := json.Unmarshal(value, &meta); err != nil {
			return fmt.Errorf("logits: %s: parse metadata for %s: %w", lf.path, name, err)
		}
		lf.tensors[name] = meta
	}

	// Examples must be densely numbered logits/0..logits/N-1.
	for {
		if _, ok := lf.tensors[exampleTensorName(lf.examples)]; !ok {
			break
		}
		lf.examples++
	}
	if lf.examples != len(lf.tensors) {
		return fmt.Errorf("logits: %s: %d tensors but only %d form a dense logits/<i> sequence",
			lf.path, len(lf.tensors), lf.examples)
	}
	return nil
}

func exampleTensorName(i int) string {
	return fmt.Sprintf("logits/%d", i)
}

// NumExamples returns the number of per-example matrices in the file.
func (lf *File) NumExamples() int { return lf.examples }

// Matrix returns example i as a [seqLen][numClasses] float32 matrix.
func (lf *File) Matrix(i int) ([][]float32, error) {
	if i < 0 || i >= lf.examples {
		return nil, fmt.Errorf("logits: %s: example %d out of range [0, %d)", lf.path, i, lf.examples)
	}
	meta := lf.tensors[exampleTensorName(i)]
	if meta.Dtype != "F32" {
		return nil, fmt.Errorf("logits: %s: example %d has dtype %s, want F32", lf.path, i, meta.Dtype)
	}
	if len(meta.Shape) != 2 || meta.Shape[0] < 0 || meta.Shape[1] <= 0 {
		return nil, fmt.Errorf("logits: %s: example %d has shape %v, want [seqLen, numClasses]", lf.path, i, meta.Shape)
	}
	seqLen, classes := int(meta.Shape[0]), int(meta.Shape[1])

	begin := lf.dataOffset + meta.DataOffsets[0]
	end := lf.dataOffset + meta.DataOffsets[1]
	if begin < lf.dataOffset || end > int64(len(lf.data)) || begin > end {
		return nil, fmt.Errorf("logits: %s: example %d data offsets %v out of bounds", lf.path, i, meta.DataOffsets)
	}
	if end-begin != int64(seqLen*classes*4) {
		return nil, fmt.Errorf("logits: %s: example %d has %d data bytes for shape %v", lf.path, i, end-begin, meta.Shape)
	}

	raw := lf.data[begin:end]
	matrix := make([][]float32, seqLen)
	for row := range seqLen {
		matrix[row] = make([]float32, classes)
		for col := range classes {
			bits := binary.LittleEndian.Uint32(raw[(row*classes+col)*4:])
			matrix[row][col] = math.Float32frombits(bits)
		}
	}
	return matrix, nil
}

// Argmax returns the per-token arg-max class indices for example i.
// Ties resolve to the lowest class index.
func (lf *File) Argmax(i int) ([]int, error) {
	matrix, err := lf.Matrix(i)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(matrix))
	for row, scores := range matrix {
		best := 0
		for col := 1; col < len(scores); col++ {
			if scores[col] > scores[best] {
				best = col
			}
		}
		out[row] = best
	}
	return out, nil
}

// Close unmaps and closes the underlying file.
func (lf *File) Close() error {
	var firstErr error
	if lf.data != nil {
		if err := lf.data.Unmap(); err != nil {
			firstErr = err
		}
		lf.data = nil
	}
	if lf.f != nil {
		if err := lf.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		lf.f = nil
	}
	return firstErr
}
