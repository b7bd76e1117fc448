package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/rimage/transform"
	"go.viam.com/rdk/vision/objectdetection"
	"go.viam.com/test"

	"github.com/NoahRJohnson/vsi-common/pinhole"
)

var (
	red   = color.NRGBA{255, 0, 0, 255}
	green = color.NRGBA{0, 255, 0, 255}
	blue  = color.NRGBA{0, 0, 255, 255}
)

func testCamera(t *testing.T) *pinhole.Camera {
	t.Helper()
	k, err := pinhole.BuildCalibration(100, 100, 100)
	test.That(t, err, test.ShouldBeNil)
	cam, err := pinhole.New(k, pinhole.Identity3(), r3.Vector{Z: 5})
	test.That(t, err, test.ShouldBeNil)
	return cam
}

// testCloud holds a red point at the image center with a blue one hidden behind it, a green
// point to the right, one behind the camera and one outside the image.
func testCloud(t *testing.T) pointcloud.PointCloud {
	t.Helper()
	pc := pointcloud.NewBasicEmpty()
	test.That(t, pc.Set(r3.Vector{}, pointcloud.NewColoredData(red)), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{Z: 1}, pointcloud.NewColoredData(blue)), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{X: 1}, pointcloud.NewColoredData(green)), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{Z: -10}, pointcloud.NewColoredData(green)), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{X: 100}, pointcloud.NewColoredData(green)), test.ShouldBeNil)
	return pc
}

func TestProjectPointCloud(t *testing.T) {
	cam := testCamera(t)
	out, err := ProjectPointCloud(context.Background(), cam, testCloud(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldHaveLength, 5)

	byPoint := map[r3.Vector]ProjectedPoint{}
	for _, pp := range out {
		byPoint[pp.World] = pp
	}

	center := byPoint[r3.Vector{}]
	test.That(t, center.Visible, test.ShouldBeTrue)
	test.That(t, center.Pixel.X, test.ShouldAlmostEqual, 50)
	test.That(t, center.Pixel.Y, test.ShouldAlmostEqual, 50)
	test.That(t, center.Distance, test.ShouldAlmostEqual, 5)
	test.That(t, center.Data.HasColor(), test.ShouldBeTrue)

	right := byPoint[r3.Vector{X: 1}]
	test.That(t, right.Pixel.X, test.ShouldAlmostEqual, 70)

	test.That(t, byPoint[r3.Vector{Z: -10}].Visible, test.ShouldBeFalse)
	test.That(t, byPoint[r3.Vector{X: 100}].Visible, test.ShouldBeTrue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ProjectPointCloud(ctx, cam, testCloud(t))
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)

	out, err = ProjectPointCloud(context.Background(), cam, pointcloud.NewBasicEmpty())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldHaveLength, 0)
}

func TestPCToImage(t *testing.T) {
	cam := testCamera(t)
	img, depth, err := PCToImage(context.Background(), cam, testCloud(t), 100, 100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 100, 100))
	test.That(t, depth, test.ShouldHaveLength, 100*100)

	// nearest point wins
	test.That(t, img.At(50, 50), test.ShouldResemble, color.RGBA{255, 0, 0, 255})
	test.That(t, depth[50*100+50], test.ShouldAlmostEqual, 5)
	test.That(t, img.At(70, 50), test.ShouldResemble, color.RGBA{0, 255, 0, 255})
	test.That(t, depth[50*100+70], test.ShouldBeGreaterThan, 5)

	filled := 0
	for _, d := range depth {
		if d != 0 {
			filled++
		}
	}
	test.That(t, filled, test.ShouldEqual, 2)

	_, _, err = PCToImage(context.Background(), cam, testCloud(t), 0, 100)
	test.That(t, errors.Is(err, pinhole.ErrInvalidParameter), test.ShouldBeTrue)
}

func TestPCCrop(t *testing.T) {
	cam := testCamera(t)
	in := testCloud(t)

	out, err := PCCropToImageBoxes(cam, in, []image.Rectangle{image.Rect(45, 45, 55, 55)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 2)

	out, err = PCCropToImageBoxes(cam, in, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 0)

	out, err = PCCropToDetections(cam, in, []objectdetection.Detection{
		objectdetection.NewDetectionWithoutImgBounds(image.Rect(65, 45, 75, 55), .8, "right"),
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 1)
	_, got := out.At(1, 0, 0)
	test.That(t, got, test.ShouldBeTrue)
}

func TestIntrinsics(t *testing.T) {
	params := &transform.PinholeCameraIntrinsics{Width: 1280, Height: 720, Fx: 906, Fy: 905, Ppx: 646, Ppy: 374}
	k, err := CalibrationFromIntrinsics(params)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, k, test.ShouldResemble, pinhole.Mat3{{906, 0, 646}, {0, 905, 374}, {0, 0, 1}})
	test.That(t, IntrinsicsFromCalibration(k, 1280, 720), test.ShouldResemble, params)

	test.That(t, IntrinsicsFromCalibration(k.Scale(2), 1280, 720), test.ShouldResemble, params)

	_, err = CalibrationFromIntrinsics(&transform.PinholeCameraIntrinsics{Width: 10, Height: 10})
	test.That(t, errors.Is(err, pinhole.ErrInvalidParameter), test.ShouldBeTrue)

	props := CameraProperties(testCamera(t), 100, 100)
	test.That(t, props.SupportsPCD, test.ShouldBeTrue)
	test.That(t, props.IntrinsicParams.Fx, test.ShouldEqual, 100.0)
	test.That(t, props.IntrinsicParams.Ppx, test.ShouldEqual, 50.0)
}

func TestMergePointClouds(t *testing.T) {
	a := pointcloud.NewBasicEmpty()
	test.That(t, a.Set(r3.Vector{X: 1}, pointcloud.NewColoredData(red)), test.ShouldBeNil)

	merged, err := MergePointClouds(a, testCloud(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, merged.Size(), test.ShouldEqual, 5)

	merged, err = MergePointClouds(a, pointcloud.NewBasicEmpty())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, merged.Size(), test.ShouldEqual, 1)
}
