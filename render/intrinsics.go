package render

import (
	"github.com/pkg/errors"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/rimage/transform"
	rutils "go.viam.com/rdk/utils"

	"github.com/NoahRJohnson/vsi-common/pinhole"
)

// CalibrationFromIntrinsics builds K from rdk camera intrinsics.
func CalibrationFromIntrinsics(params *transform.PinholeCameraIntrinsics) (pinhole.Mat3, error) {
	if err := params.CheckValid(); err != nil {
		return pinhole.Mat3{}, errors.Wrap(pinhole.ErrInvalidParameter, err.Error())
	}
	return pinhole.Mat3FromDense(params.GetCameraMatrix())
}

// IntrinsicsFromCalibration describes K as rdk intrinsics. K is normalized so K[2][2] is 1;
// skew has no rdk equivalent and is dropped.
func IntrinsicsFromCalibration(k pinhole.Mat3, width, height int) *transform.PinholeCameraIntrinsics {
	s := k[2][2]
	if s == 0 {
		s = 1
	}
	return &transform.PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     k[0][0] / s,
		Fy:     k[1][1] / s,
		Ppx:    k[0][2] / s,
		Ppy:    k[1][2] / s,
	}
}

// CameraProperties reports what a camera rendering through cam supports.
func CameraProperties(cam *pinhole.Camera, width, height int) camera.Properties {
	return camera.Properties{
		SupportsPCD:     true,
		MimeTypes:       []string{rutils.MimeTypePNG, rutils.MimeTypeJPEG},
		IntrinsicParams: IntrinsicsFromCalibration(cam.K(), width, height),
	}
}
