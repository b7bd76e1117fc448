package pinhole

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PlaneFrame returns the plane to world transform for a plane through origin spanned by planeX
// and planeY. Both axes are normalized independently and the normal is their cross product,
// so the frame is only orthonormal when planeX and planeY are perpendicular.
func PlaneFrame(origin, planeX, planeY r3.Vector) (Mat4, error) {
	if !isFiniteVec(origin) || !isFiniteVec(planeX) || !isFiniteVec(planeY) {
		return Mat4{}, errors.Wrapf(ErrInvalidParameter, "plane must be finite, got %v %v %v", origin, planeX, planeY)
	}
	xLen := planeX.Norm()
	yLen := planeY.Norm()
	if !(xLen > RayEpsilon) || !(yLen > RayEpsilon) {
		return Mat4{}, errors.Wrapf(ErrInvalidParameter, "plane axes must be non zero, got %v and %v", planeX, planeY)
	}
	xu := planeX.Mul(1 / xLen)
	yu := planeY.Mul(1 / yLen)
	normal := xu.Cross(yu)
	return RigidTransform(Mat3FromCols(xu, yu, normal), origin), nil
}

// PlaneToImage returns the homography taking homogeneous plane coordinates (x, y, 1) to
// homogeneous image coordinates. The lengths of planeX and planeY are discarded: plane units
// are world units along the normalized axes.
func (c *Camera) PlaneToImage(origin, planeX, planeY r3.Vector) (Mat3, error) {
	planeToWorld, err := PlaneFrame(origin, planeX, planeY)
	if err != nil {
		return Mat3{}, err
	}
	// plane points have z = 0, so the third column never contributes
	return c.p.Mul4(planeToWorld).DropCol(2), nil
}

// ImageToPlane returns the inverse of PlaneToImage.
func (c *Camera) ImageToPlane(origin, planeX, planeY r3.Vector) (Mat3, error) {
	h, err := c.PlaneToImage(origin, planeX, planeY)
	if err != nil {
		return Mat3{}, err
	}
	inv, err := h.Inverse()
	if err != nil {
		return Mat3{}, errors.Wrap(err, "plane to image homography")
	}
	return inv, nil
}
