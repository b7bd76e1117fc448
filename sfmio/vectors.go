// Package sfmio reads and writes the text formats that feed cameras and scenes into the pinhole
// model: plain whitespace separated vectors, KRT camera files, bundler output and VisualSFM
// NVM files.
package sfmio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// ReadLines returns every line of r with surrounding whitespace removed.
func ReadLines(r io.Reader) ([]string, error) {
	lines := []string{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading lines")
	}
	return lines, nil
}

// WriteLines writes each element on its own line.
func WriteLines(w io.Writer, lines []string) error {
	bw := bufio.NewWriter(w)
	for _, l := range lines {
		if _, err := bw.WriteString(l + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadLinesFile reads a list of strings, one per line.
func ReadLinesFile(path string) ([]string, error) {
	return openFor(path, ReadLines)
}

// WriteLinesFile writes a list of strings, one per line.
func WriteLinesFile(path string, lines []string) error {
	return createFor(path, func(w io.Writer) error { return WriteLines(w, lines) })
}

// ParseVector parses whitespace separated floats.
func ParseVector(s string) ([]float64, error) {
	fields := strings.Fields(s)
	vec := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad number %q", f)
		}
		vec = append(vec, v)
	}
	return vec, nil
}

// FormatVector is the inverse of ParseVector.
func FormatVector(vec []float64) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

// ReadVectors reads one vector per non-empty line.
func ReadVectors(r io.Reader) ([][]float64, error) {
	lines, err := ReadLines(r)
	if err != nil {
		return nil, err
	}
	vecs := [][]float64{}
	for i, l := range lines {
		v, err := ParseVector(l)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", i+1)
		}
		if len(v) > 0 {
			vecs = append(vecs, v)
		}
	}
	return vecs, nil
}

// WriteVectors writes one vector per line.
func WriteVectors(w io.Writer, vecs [][]float64) error {
	lines := make([]string, len(vecs))
	for i, v := range vecs {
		lines[i] = FormatVector(v)
	}
	return WriteLines(w, lines)
}

// ReadVectorsFile reads each line of a file as a separate vector.
func ReadVectorsFile(path string) ([][]float64, error) {
	return openFor(path, ReadVectors)
}

// WriteVectorsFile writes each vector on its own line.
func WriteVectorsFile(path string, vecs [][]float64) error {
	return createFor(path, func(w io.Writer) error { return WriteVectors(w, vecs) })
}

// ReadVectorFile reads every float in a file into a single vector.
func ReadVectorFile(path string) ([]float64, error) {
	vecs, err := ReadVectorsFile(path)
	if err != nil {
		return nil, err
	}
	out := []float64{}
	for _, v := range vecs {
		out = append(out, v...)
	}
	return out, nil
}

func checkWidth(vecs [][]float64, width int) error {
	for i, v := range vecs {
		if len(v) != width {
			return errors.Errorf("vector %d has %d elements, expected %d", i, len(v), width)
		}
	}
	return nil
}

// ReadPoints reads 3-D points, one "x y z" per line.
func ReadPoints(r io.Reader) ([]r3.Vector, error) {
	vecs, err := ReadVectors(r)
	if err != nil {
		return nil, err
	}
	if err := checkWidth(vecs, 3); err != nil {
		return nil, err
	}
	pts := make([]r3.Vector, len(vecs))
	for i, v := range vecs {
		pts[i] = r3.Vector{X: v[0], Y: v[1], Z: v[2]}
	}
	return pts, nil
}

// WritePoints writes 3-D points, one per line.
func WritePoints(w io.Writer, pts []r3.Vector) error {
	vecs := make([][]float64, len(pts))
	for i, p := range pts {
		vecs[i] = []float64{p.X, p.Y, p.Z}
	}
	return WriteVectors(w, vecs)
}

// ReadImagePoints reads 2-D image points, one "u v" per line.
func ReadImagePoints(r io.Reader) ([]r2.Point, error) {
	vecs, err := ReadVectors(r)
	if err != nil {
		return nil, err
	}
	if err := checkWidth(vecs, 2); err != nil {
		return nil, err
	}
	pts := make([]r2.Point, len(vecs))
	for i, v := range vecs {
		pts[i] = r2.Point{X: v[0], Y: v[1]}
	}
	return pts, nil
}

// WriteImagePoints writes 2-D image points, one per line.
func WriteImagePoints(w io.Writer, pts []r2.Point) error {
	vecs := make([][]float64, len(pts))
	for i, p := range pts {
		vecs[i] = []float64{p.X, p.Y}
	}
	return WriteVectors(w, vecs)
}

// FilenameBase removes the directory and extension from a file name.
func FilenameBase(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// openFor opens path and hands it to read, tagging errors with the file name.
func openFor[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return zero, errors.Wrapf(err, "error opening %s", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	v, err := read(f)
	if err != nil {
		return zero, errors.Wrap(err, path)
	}
	return v, nil
}

// createFor creates path and hands it to write.
func createFor(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "error creating %s", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("cannot write (%s): %w", path, err)
	}
	return nil
}

// ReadPointsFile reads 3-D points from a file.
func ReadPointsFile(path string) ([]r3.Vector, error) {
	return openFor(path, ReadPoints)
}

// WritePointsFile writes 3-D points to a file.
func WritePointsFile(path string, pts []r3.Vector) error {
	return createFor(path, func(w io.Writer) error { return WritePoints(w, pts) })
}

// ReadImagePointsFile reads 2-D image points from a file.
func ReadImagePointsFile(path string) ([]r2.Point, error) {
	return openFor(path, ReadImagePoints)
}

// WriteImagePointsFile writes 2-D image points to a file.
func WriteImagePointsFile(path string, pts []r2.Point) error {
	return createFor(path, func(w io.Writer) error { return WriteImagePoints(w, pts) })
}
