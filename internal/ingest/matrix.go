package ingest

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Chunk vectors are stored as a dense row-major matrix: two little-endian
// uint32 header words (rows, dim) followed by rows*dim little-endian
// float32 values.

// WriteMatrix writes vecs to path. Every row must have the same length.
func WriteMatrix(path string, vecs [][]float32) error {
	dim := 0
	if len(vecs) > 0 {
		dim = len(vecs[0])
	}
	for i, row := range vecs {
		if len(row) != dim {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), dim)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:], uint32(len(vecs)))
	binary.LittleEndian.PutUint32(header[4:], uint32(dim))
	if _, err := w.Write(header[:]); err != nil {
		_ = f.Close()
		return err
	}
	var cell [4]byte
	for _, row := range vecs {
		for _, v := range row {
			binary.LittleEndian.PutUint32(cell[:], math.Float32bits(v))
			if _, err := w.Write(cell[:]); err != nil {
				_ = f.Close()
				return err
			}
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadMatrix loads a matrix written by WriteMatrix.
func ReadMatrix(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read matrix header: %w", err)
	}
	rows := binary.LittleEndian.Uint32(header[0:])
	dim := binary.LittleEndian.Uint32(header[4:])

	vecs := make([][]float32, rows)
	buf := make([]byte, 4*dim)
	for i := range vecs {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read matrix row %d: %w", i, err)
		}
		row := make([]float32, dim)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		vecs[i] = row
	}
	return vecs, nil
}
