package pinhole

import (
	"math"

	"github.com/pkg/errors"
)

// BuildCalibration creates a calibration matrix K from a focal length in pixels and the
// image size, assuming zero skew and the principal point at the image center:
//
//	[[f 0 w/2],
//	 [0 f h/2],
//	 [0 0  1 ]]
func BuildCalibration(focalLength, imageWidth, imageHeight float64) (Mat3, error) {
	if err := checkPositive("focal length", focalLength); err != nil {
		return Mat3{}, err
	}
	if err := checkPositive("image width", imageWidth); err != nil {
		return Mat3{}, err
	}
	if err := checkPositive("image height", imageHeight); err != nil {
		return Mat3{}, err
	}
	return Mat3{
		{focalLength, 0, imageWidth / 2.0},
		{0, focalLength, imageHeight / 2.0},
		{0, 0, 1},
	}, nil
}

func checkPositive(what string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return errors.Wrapf(ErrInvalidParameter, "%s must be positive and finite, got %v", what, v)
	}
	return nil
}
