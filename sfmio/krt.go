package sfmio

import (
	"io"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/NoahRJohnson/vsi-common/pinhole"
)

// KRT is a camera stored as plain text: three rows of K, three rows of R and one line with T.
// Blank lines are ignored.
type KRT struct {
	K pinhole.Mat3
	R pinhole.Mat3
	T r3.Vector
}

// Camera builds the pinhole model.
func (krt KRT) Camera() (*pinhole.Camera, error) {
	return pinhole.New(krt.K, krt.R, krt.T)
}

// KRTFromCamera captures the parameters of c.
func KRTFromCamera(c *pinhole.Camera) KRT {
	return KRT{K: c.K(), R: c.R(), T: c.T()}
}

func parseMat3(rows []string) (pinhole.Mat3, error) {
	var m pinhole.Mat3
	for i, row := range rows {
		v, err := ParseVector(row)
		if err != nil {
			return m, err
		}
		if len(v) != 3 {
			return m, errors.Errorf("matrix row %d has %d elements, expected 3", i, len(v))
		}
		copy(m[i][:], v)
	}
	return m, nil
}

func parseVec3(line string) (r3.Vector, error) {
	v, err := ParseVector(line)
	if err != nil {
		return r3.Vector{}, err
	}
	if len(v) != 3 {
		return r3.Vector{}, errors.Errorf("vector has %d elements, expected 3", len(v))
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

func nonEmpty(lines []string) []string {
	out := []string{}
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// ReadKRT reads a KRT camera.
func ReadKRT(r io.Reader) (KRT, error) {
	var krt KRT
	all, err := ReadLines(r)
	if err != nil {
		return krt, err
	}
	lines := nonEmpty(all)
	if len(lines) < 7 {
		return krt, errors.Errorf("KRT camera needs 7 non-empty lines, got %d", len(lines))
	}
	if krt.K, err = parseMat3(lines[0:3]); err != nil {
		return krt, errors.Wrap(err, "K")
	}
	if krt.R, err = parseMat3(lines[3:6]); err != nil {
		return krt, errors.Wrap(err, "R")
	}
	if krt.T, err = parseVec3(lines[6]); err != nil {
		return krt, errors.Wrap(err, "T")
	}
	return krt, nil
}

// WriteKRT writes krt in the format ReadKRT reads.
func WriteKRT(w io.Writer, krt KRT) error {
	lines := []string{}
	for _, m := range []pinhole.Mat3{krt.K, krt.R} {
		for i := 0; i < 3; i++ {
			lines = append(lines, FormatVector(m[i][:]))
		}
		lines = append(lines, "")
	}
	lines = append(lines, FormatVector([]float64{krt.T.X, krt.T.Y, krt.T.Z}))
	return WriteLines(w, lines)
}

// ReadKRTFile reads a KRT camera from a file.
func ReadKRTFile(path string) (KRT, error) {
	return openFor(path, ReadKRT)
}

// WriteKRTFile writes a KRT camera to a file.
func WriteKRTFile(path string, krt KRT) error {
	return createFor(path, func(w io.Writer) error { return WriteKRT(w, krt) })
}
