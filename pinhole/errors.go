package pinhole

import "github.com/pkg/errors"

var (
	// ErrInvalidParameter is returned for non-positive focal lengths, image sizes or scale
	// factors, zero length plane axes and rotations that are not orthonormal.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrSingularMatrix is returned when a calibration or homography matrix cannot be inverted.
	ErrSingularMatrix = errors.New("matrix is singular")

	// ErrLengthMismatch is returned when parallel slices have different lengths.
	ErrLengthMismatch = errors.New("length mismatch")

	// ErrDegenerateProjection is returned when the homogeneous divisor of a projected point is zero.
	ErrDegenerateProjection = errors.New("degenerate projection")

	// ErrDegenerateRay is returned when a backprojected ray has zero length.
	ErrDegenerateRay = errors.New("degenerate ray")
)
