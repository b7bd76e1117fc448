package sfmio

import (
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/NoahRJohnson/vsi-common/pinhole"
)

// bundlerFlip converts bundler camera coordinates (looking down -Z, y up) to the +Z forward,
// y down convention of pinhole.Camera.
var bundlerFlip = pinhole.Mat3{{1, 0, 0}, {0, -1, 0}, {0, 0, -1}}

// BundlerCamera is one camera from a bundler .out file.
type BundlerCamera struct {
	Focal  float64
	K1, K2 float64
	R      pinhole.Mat3
	T      r3.Vector
}

// HasDistortion reports whether bundler estimated radial distortion, which the pinhole model
// ignores.
func (bc BundlerCamera) HasDistortion() bool {
	return bc.K1 != 0 || bc.K2 != 0
}

// Camera builds a pinhole camera for an image of the given size. Bundler cameras that were
// never registered have a zero focal length and fail with pinhole.ErrInvalidParameter.
func (bc BundlerCamera) Camera(width, height float64) (*pinhole.Camera, error) {
	k, err := pinhole.BuildCalibration(bc.Focal, width, height)
	if err != nil {
		return nil, err
	}
	return pinhole.New(k, bundlerFlip.Mul(bc.R), bundlerFlip.MulVec(bc.T))
}

// Bundle is the content of a bundler .out file.
type Bundle struct {
	Cameras []BundlerCamera
	Points  []ScenePoint
}

// ReadBundler reads output of the bundler program. The first line is a comment, the second
// holds the camera and point counts; each camera has 5 lines and each point 3.
func ReadBundler(r io.Reader) (*Bundle, error) {
	all, err := ReadLines(r)
	if err != nil {
		return nil, err
	}
	lines := nonEmpty(all)
	if len(lines) > 0 && strings.HasPrefix(lines[0], "#") {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return nil, errors.New("bundler file is empty")
	}

	counts := strings.Fields(lines[0])
	if len(counts) != 2 {
		return nil, errors.Errorf("expected camera and point counts, got %q", lines[0])
	}
	numCams, err := strconv.Atoi(counts[0])
	if err != nil {
		return nil, errors.Wrap(err, "camera count")
	}
	numPts, err := strconv.Atoi(counts[1])
	if err != nil {
		return nil, errors.Wrap(err, "point count")
	}
	if numCams < 0 || numPts < 0 {
		return nil, errors.Errorf("negative counts %d %d", numCams, numPts)
	}

	const linesPerCam = 5
	const linesPerPt = 3
	need := 1 + linesPerCam*numCams + linesPerPt*numPts
	if len(lines) < need {
		return nil, errors.Errorf("bundler file with %d cameras and %d points needs %d lines, got %d",
			numCams, numPts, need, len(lines))
	}

	b := &Bundle{
		Cameras: make([]BundlerCamera, numCams),
		Points:  make([]ScenePoint, numPts),
	}

	for i := 0; i < numCams; i++ {
		start := 1 + linesPerCam*i
		intrinsic, err := ParseVector(lines[start])
		if err != nil {
			return nil, errors.Wrapf(err, "camera %d", i)
		}
		if len(intrinsic) != 3 {
			return nil, errors.Errorf("camera %d: expected f k1 k2, got %q", i, lines[start])
		}
		rot, err := parseMat3(lines[start+1 : start+4])
		if err != nil {
			return nil, errors.Wrapf(err, "camera %d rotation", i)
		}
		t, err := parseVec3(lines[start+4])
		if err != nil {
			return nil, errors.Wrapf(err, "camera %d translation", i)
		}
		b.Cameras[i] = BundlerCamera{Focal: intrinsic[0], K1: intrinsic[1], K2: intrinsic[2], R: rot, T: t}
	}

	ptsStart := 1 + linesPerCam*numCams
	for i := 0; i < numPts; i++ {
		start := ptsStart + linesPerPt*i
		pos, err := parseVec3(lines[start])
		if err != nil {
			return nil, errors.Wrapf(err, "point %d position", i)
		}
		rgb, err := ParseVector(lines[start+1])
		if err != nil {
			return nil, errors.Wrapf(err, "point %d color", i)
		}
		c, err := parseColor(rgb)
		if err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
		views := 0
		if fields := strings.Fields(lines[start+2]); len(fields) > 0 {
			views, err = strconv.Atoi(fields[0])
			if err != nil {
				return nil, errors.Wrapf(err, "point %d view list", i)
			}
		}
		b.Points[i] = ScenePoint{Position: pos, Color: c, Views: views}
	}

	return b, nil
}

// ReadBundlerFile reads a bundler .out file.
func ReadBundlerFile(path string) (*Bundle, error) {
	return openFor(path, ReadBundler)
}
