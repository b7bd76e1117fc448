package sfmio

import (
	"bytes"
	"errors"
	"image/color"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"github.com/NoahRJohnson/vsi-common/pinhole"
)

func TestVectors(t *testing.T) {
	vecs, err := ReadVectors(strings.NewReader("1 2 3\n\n  4.5 -6e2  \n7\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vecs, test.ShouldResemble, [][]float64{{1, 2, 3}, {4.5, -600}, {7}})

	var buf bytes.Buffer
	test.That(t, WriteVectors(&buf, vecs), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldEqual, "1 2 3\n4.5 -600\n7\n")

	_, err = ReadVectors(strings.NewReader("1 2\n3 x\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 2")

	dir := t.TempDir()
	fn := filepath.Join(dir, "vecs.txt")
	test.That(t, WriteVectorsFile(fn, vecs), test.ShouldBeNil)

	flat, err := ReadVectorFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, flat, test.ShouldResemble, []float64{1, 2, 3, 4.5, -600, 7})

	lines := []string{"a.png", "b.png"}
	test.That(t, WriteLinesFile(filepath.Join(dir, "list.txt"), lines), test.ShouldBeNil)
	back, err := ReadLinesFile(filepath.Join(dir, "list.txt"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back, test.ShouldResemble, lines)

	_, err = ReadVectorsFile(filepath.Join(dir, "missing.txt"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPointsFiles(t *testing.T) {
	dir := t.TempDir()

	pts := []r3.Vector{{1, 2, 3}, {-0.5, 0.25, 1e-3}}
	test.That(t, WritePointsFile(filepath.Join(dir, "p3.txt"), pts), test.ShouldBeNil)
	got, err := ReadPointsFile(filepath.Join(dir, "p3.txt"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, pts)

	px := []r2.Point{{50, 60.5}, {0, -1}}
	test.That(t, WriteImagePointsFile(filepath.Join(dir, "p2.txt"), px), test.ShouldBeNil)
	gotPx, err := ReadImagePointsFile(filepath.Join(dir, "p2.txt"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gotPx, test.ShouldResemble, px)

	_, err = ReadPoints(strings.NewReader("1 2 3\n4 5\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected 3")
}

func TestFilenameBase(t *testing.T) {
	test.That(t, FilenameBase("/data/run1/img_0001.png"), test.ShouldEqual, "img_0001")
	test.That(t, FilenameBase("cam.krt.txt"), test.ShouldEqual, "cam.krt")
	test.That(t, FilenameBase("plain"), test.ShouldEqual, "plain")
}

const krtText = `
100 0 50
0 100 50
0 0 1

1 0 0
0 1 0
0 0 1

0 0 5
`

func TestKRT(t *testing.T) {
	krt, err := ReadKRT(strings.NewReader(krtText))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, krt.K, test.ShouldResemble, pinhole.Mat3{{100, 0, 50}, {0, 100, 50}, {0, 0, 1}})
	test.That(t, krt.R, test.ShouldResemble, pinhole.Identity3())
	test.That(t, krt.T, test.ShouldResemble, r3.Vector{0, 0, 5})

	cam, err := krt.Camera()
	test.That(t, err, test.ShouldBeNil)
	px, err := cam.ProjectPoint(r3.Vector{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, px, test.ShouldResemble, r2.Point{50, 50})

	fn := filepath.Join(t.TempDir(), "cam.krt")
	test.That(t, WriteKRTFile(fn, KRTFromCamera(cam)), test.ShouldBeNil)
	again, err := ReadKRTFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldResemble, krt)

	_, err = ReadKRT(strings.NewReader("1 0 0\n0 1 0\n"))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ReadKRT(strings.NewReader(strings.Replace(krtText, "0 0 5", "0 0", 1)))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "T")
}

const bundlerText = `# Bundle file v0.3
2 2
500 0 0
1 0 0
0 1 0
0 0 1
0 0 -5
0 0 0
1 0 0
0 1 0
0 0 1
0 0 0
0 0 0
255 0 0
1 0 12 1.5 -2.5
1 1 1
0 128 255
2 0 3 1 1 1 4 2 2
`

func TestBundler(t *testing.T) {
	b, err := ReadBundler(strings.NewReader(bundlerText))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.Cameras, test.ShouldHaveLength, 2)
	test.That(t, b.Points, test.ShouldHaveLength, 2)

	test.That(t, b.Cameras[0].Focal, test.ShouldEqual, 500.0)
	test.That(t, b.Cameras[0].T, test.ShouldResemble, r3.Vector{0, 0, -5})
	test.That(t, b.Cameras[0].HasDistortion(), test.ShouldBeFalse)
	test.That(t, b.Points[0].Color, test.ShouldResemble, color.NRGBA{255, 0, 0, 255})
	test.That(t, b.Points[1].Position, test.ShouldResemble, r3.Vector{1, 1, 1})
	test.That(t, b.Points[1].Views, test.ShouldEqual, 2)

	// bundler cameras look down -Z: world origin is 5 units in front of camera 0
	cam, err := b.Cameras[0].Camera(640, 480)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cam.InFront(r3.Vector{}), test.ShouldBeTrue)
	px, err := cam.ProjectPoint(r3.Vector{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, px.X, test.ShouldAlmostEqual, 320)
	test.That(t, px.Y, test.ShouldAlmostEqual, 240)

	// bundler y is up, image rows go down
	up, err := cam.ProjectPoint(r3.Vector{0, 1, 0})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, up.Y, test.ShouldBeLessThan, 240)

	// unregistered camera
	_, err = b.Cameras[1].Camera(640, 480)
	test.That(t, errors.Is(err, pinhole.ErrInvalidParameter), test.ShouldBeTrue)

	pc, err := ScenePointCloud(b.Points)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 2)

	_, err = ReadBundler(strings.NewReader("# Bundle file v0.3\n3 0\n500 0 0\n"))
	test.That(t, err, test.ShouldNotBeNil)
}

const nvmText = `NVM_V3

2
img0.jpg 400 1 0 0 0 0 0 -5 0 0
img1.jpg 400 0.7071067811865476 0 0 0.7071067811865476 1 2 3 0.01 0
# points follow
3
0 0 0 255 255 255 1 0 0 0.5 0.5
1 2 3 10 20 30 2 0 1 1 1 1 2 2 2 # trailing comment
-1 -1 -1 0 0 0 0
`

func TestNVM(t *testing.T) {
	logger := logging.NewTestLogger(t)

	n, err := ReadNVM(strings.NewReader(nvmText), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n.Cameras, test.ShouldHaveLength, 2)
	test.That(t, n.Points, test.ShouldHaveLength, 3)

	c0 := n.Cameras[0]
	test.That(t, c0.ImageName, test.ShouldEqual, "img0.jpg")
	test.That(t, c0.R.AlmostEqual(pinhole.Identity3(), 1e-12), test.ShouldBeTrue)
	test.That(t, c0.T.X, test.ShouldAlmostEqual, 0)
	test.That(t, c0.T.Y, test.ShouldAlmostEqual, 0)
	test.That(t, c0.T.Z, test.ShouldAlmostEqual, 5)

	cam, err := c0.Camera(640, 480)
	test.That(t, err, test.ShouldBeNil)
	center := cam.Center()
	test.That(t, center.Z, test.ShouldAlmostEqual, -5)

	// 90 degrees about z
	c1 := n.Cameras[1]
	test.That(t, c1.Distortion, test.ShouldEqual, 0.01)
	x := c1.R.MulVec(r3.Vector{1, 0, 0})
	test.That(t, x.X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, x.Y, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, c1.R.IsOrthonormal(1e-9), test.ShouldBeTrue)
	cam1, err := c1.Camera(640, 480)
	test.That(t, err, test.ShouldBeNil)
	c1Center := cam1.Center()
	test.That(t, c1Center.X, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, c1Center.Y, test.ShouldAlmostEqual, 2, 1e-9)
	test.That(t, c1Center.Z, test.ShouldAlmostEqual, 3, 1e-9)

	test.That(t, n.Points[1].Position, test.ShouldResemble, r3.Vector{1, 2, 3})
	test.That(t, n.Points[1].Color, test.ShouldResemble, color.NRGBA{10, 20, 30, 255})
	test.That(t, n.Points[1].Views, test.ShouldEqual, 2)
	test.That(t, n.Points[2].Views, test.ShouldEqual, 0)

	pc, err := n.PointCloud()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 3)
	test.That(t, pc.MetaData().HasColor, test.ShouldBeTrue)

	fn := filepath.Join(t.TempDir(), "model.nvm")
	test.That(t, WriteLinesFile(fn, strings.Split(nvmText, "\n")), test.ShouldBeNil)
	fromFile, err := ReadNVMFile(fn, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fromFile.Points, test.ShouldResemble, n.Points)
}

func TestNVMErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)

	_, err := ReadNVM(strings.NewReader("NVM_V2\n0\n0\n"), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, NVMMagic)

	_, err = ReadNVM(strings.NewReader(""), logger)
	test.That(t, err, test.ShouldNotBeNil)

	// missing terminator
	_, err = ReadNVM(strings.NewReader("NVM_V3\n1\na.jpg 400 1 0 0 0 0 0 0 0 7\n0\n"), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "delimiter")

	// truncated point list
	_, err = ReadNVM(strings.NewReader("NVM_V3\n0\n2\n0 0 0 1 1 1 0\n"), logger)
	test.That(t, err, test.ShouldNotBeNil)

	// fixed calibration on the header is skipped
	n, err := ReadNVM(strings.NewReader("NVM_V3 FixedK 400 320 400 240 0\n0\n0\n"), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n.Cameras, test.ShouldHaveLength, 0)

	_, err = QuaternionToRotation(quat.Number{})
	test.That(t, errors.Is(err, pinhole.ErrInvalidParameter), test.ShouldBeTrue)

	r, err := QuaternionToRotation(quat.Number{Real: 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.AlmostEqual(pinhole.Identity3(), 1e-12), test.ShouldBeTrue)
	test.That(t, math.Abs(r.Det()-1), test.ShouldBeLessThan, 1e-12)
}
