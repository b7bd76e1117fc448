package sfmio

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"gonum.org/v1/gonum/num/quat"

	"github.com/NoahRJohnson/vsi-common/pinhole"
)

// NVMMagic starts every VisualSFM NVM file.
const NVMMagic = "NVM_V3"

// NVMCamera is one camera from an NVM file. The file stores the rotation as a WXYZ quaternion
// and the camera center; T is derived as -R·center.
type NVMCamera struct {
	ImageName  string
	Focal      float64
	Quaternion quat.Number
	R          pinhole.Mat3
	Center     r3.Vector
	T          r3.Vector
	Distortion float64
}

// Camera builds a pinhole camera for an image of the given size, ignoring distortion.
func (nc NVMCamera) Camera(width, height float64) (*pinhole.Camera, error) {
	k, err := pinhole.BuildCalibration(nc.Focal, width, height)
	if err != nil {
		return nil, err
	}
	return pinhole.New(k, nc.R, nc.T)
}

// NVM is the first model of a VisualSFM .nvm file.
type NVM struct {
	Cameras []NVMCamera
	Points  []ScenePoint
}

// PointCloud returns the colored points of the model.
func (n *NVM) PointCloud() (pointcloud.PointCloud, error) {
	return ScenePointCloud(n.Points)
}

// QuaternionToRotation converts a (not necessarily unit) quaternion to a rotation matrix.
func QuaternionToRotation(q quat.Number) (pinhole.Mat3, error) {
	norm := quat.Abs(q)
	if norm == 0 {
		return pinhole.Mat3{}, errors.Wrap(pinhole.ErrInvalidParameter, "zero quaternion")
	}
	u := quat.Scale(1/norm, q)
	// column j is the image of basis vector j under q·v·q*
	rotate := func(v r3.Vector) r3.Vector {
		p := quat.Mul(quat.Mul(u, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(u))
		return r3.Vector{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
	}
	return pinhole.Mat3FromCols(rotate(r3.Vector{X: 1}), rotate(r3.Vector{Y: 1}), rotate(r3.Vector{Z: 1})), nil
}

// nvmTokens splits an NVM body into whitespace separated tokens. Anything after a token
// starting with '#' is ignored up to the end of the line.
type nvmTokens struct {
	scanner *bufio.Scanner
	pending []string
	line    int
}

func newNVMTokens(r io.Reader) *nvmTokens {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &nvmTokens{scanner: s}
}

func (t *nvmTokens) next() (string, error) {
	for len(t.pending) == 0 {
		if !t.scanner.Scan() {
			if err := t.scanner.Err(); err != nil {
				return "", err
			}
			return "", errors.Wrapf(io.ErrUnexpectedEOF, "after line %d", t.line)
		}
		t.line++
		for _, tok := range strings.Fields(t.scanner.Text()) {
			if strings.HasPrefix(tok, "#") {
				break
			}
			t.pending = append(t.pending, tok)
		}
	}
	tok := t.pending[0]
	t.pending = t.pending[1:]
	return tok, nil
}

func (t *nvmTokens) float() (float64, error) {
	tok, err := t.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "line %d", t.line)
	}
	return v, nil
}

func (t *nvmTokens) floats(n int) ([]float64, error) {
	out := make([]float64, n)
	for i := range out {
		v, err := t.float()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (t *nvmTokens) count() (int, error) {
	tok, err := t.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, errors.Wrapf(err, "line %d", t.line)
	}
	if v < 0 {
		return 0, errors.Errorf("line %d: negative count %d", t.line, v)
	}
	return v, nil
}

// ReadNVM reads the first model of a VisualSFM NVM_V3 file. Fixed calibration info on the
// header line and per camera distortion are ignored with a warning.
func ReadNVM(r io.Reader, logger logging.Logger) (*NVM, error) {
	toks := newNVMTokens(r)

	if !toks.scanner.Scan() {
		if err := toks.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, errors.Errorf("expecting first token in file to be %s, file is empty", NVMMagic)
	}
	toks.line++
	header := strings.Fields(toks.scanner.Text())
	if len(header) == 0 || header[0] != NVMMagic {
		return nil, errors.Errorf("expecting first token in file to be %s", NVMMagic)
	}
	if len(header) > 1 {
		logger.Warnf("skipping fixed calibration info %v", header[1:])
	}

	numCams, err := toks.count()
	if err != nil {
		return nil, errors.Wrap(err, "camera count")
	}
	logger.Debugf("%d cameras", numCams)

	n := &NVM{Cameras: make([]NVMCamera, 0, numCams)}
	for c := 0; c < numCams; c++ {
		cam, err := readNVMCamera(toks)
		if err != nil {
			return nil, errors.Wrapf(err, "camera %d", c)
		}
		if cam.Distortion != 0 {
			logger.Warnf("ignoring nonzero distortion coefficient %v for camera %d", cam.Distortion, c)
		}
		n.Cameras = append(n.Cameras, cam)
	}

	numPts, err := toks.count()
	if err != nil {
		return nil, errors.Wrap(err, "point count")
	}
	logger.Debugf("%d points", numPts)

	n.Points = make([]ScenePoint, 0, numPts)
	for p := 0; p < numPts; p++ {
		pt, err := readNVMPoint(toks)
		if err != nil {
			return nil, errors.Wrapf(err, "point %d", p)
		}
		n.Points = append(n.Points, pt)
	}

	return n, nil
}

func readNVMCamera(toks *nvmTokens) (NVMCamera, error) {
	var cam NVMCamera
	var err error

	if cam.ImageName, err = toks.next(); err != nil {
		return cam, err
	}
	if cam.Focal, err = toks.float(); err != nil {
		return cam, err
	}
	q, err := toks.floats(4)
	if err != nil {
		return cam, err
	}
	cam.Quaternion = quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]}
	if cam.R, err = QuaternionToRotation(cam.Quaternion); err != nil {
		return cam, err
	}
	center, err := toks.floats(3)
	if err != nil {
		return cam, err
	}
	cam.Center = r3.Vector{X: center[0], Y: center[1], Z: center[2]}
	cam.T = cam.R.MulVec(cam.Center).Mul(-1)
	if cam.Distortion, err = toks.float(); err != nil {
		return cam, err
	}

	end, err := toks.next()
	if err != nil {
		return cam, err
	}
	if end != "0" {
		return cam, errors.Errorf("expecting '0' delimiter at end of camera section, got %q", end)
	}
	return cam, nil
}

func readNVMPoint(toks *nvmTokens) (ScenePoint, error) {
	var pt ScenePoint

	pos, err := toks.floats(3)
	if err != nil {
		return pt, err
	}
	pt.Position = r3.Vector{X: pos[0], Y: pos[1], Z: pos[2]}

	rgb, err := toks.floats(3)
	if err != nil {
		return pt, err
	}
	if pt.Color, err = parseColor(rgb); err != nil {
		return pt, err
	}

	if pt.Views, err = toks.count(); err != nil {
		return pt, err
	}
	// image index, feature index, x, y per measurement
	for m := 0; m < pt.Views*4; m++ {
		if _, err := toks.next(); err != nil {
			return pt, err
		}
	}
	return pt, nil
}

// ReadNVMFile reads an NVM file.
func ReadNVMFile(path string, logger logging.Logger) (*NVM, error) {
	return openFor(path, func(r io.Reader) (*NVM, error) {
		return ReadNVM(r, logger)
	})
}
