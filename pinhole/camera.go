// Package pinhole models an ideal pinhole camera: a single center of projection and no lens
// distortion. A Camera maps world points to pixels, pixels plus depth back to world points,
// and derives homographies between world planes and the image.
package pinhole

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Camera is an immutable pinhole camera built from a calibration matrix K, a world to camera
// rotation R and a translation T, so that a world point p is R·p + T in camera space.
type Camera struct {
	k Mat3
	r Mat3
	t r3.Vector

	p      Mat34
	center r3.Vector
	kInv   Mat3
	krInv  Mat3
}

// New validates K, R and T and precomputes the projection matrix, the camera center and the
// inverse matrices used for backprojection.
func New(k, r Mat3, t r3.Vector) (*Camera, error) {
	if !k.isFinite() || !r.isFinite() || !isFiniteVec(t) {
		return nil, errors.Wrap(ErrInvalidParameter, "camera parameters must be finite")
	}
	kInv, err := k.Inverse()
	if err != nil {
		return nil, errors.Wrap(err, "calibration matrix")
	}
	if !r.IsOrthonormal(OrthonormalTolerance) {
		return nil, errors.Wrapf(ErrInvalidParameter, "rotation is not orthonormal: %v", r)
	}

	rt := r.Transpose()
	c := &Camera{
		k:      k,
		r:      r,
		t:      t,
		center: rt.MulVec(t).Mul(-1),
		kInv:   kInv,
		krInv:  rt.Mul(kInv),
	}

	// P = K·[R|T]
	kt := k.MulVec(t)
	kr := k.Mul(r)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			c.p[i][j] = kr[i][j]
		}
	}
	c.p[0][3] = kt.X
	c.p[1][3] = kt.Y
	c.p[2][3] = kt.Z

	return c, nil
}

// K returns the calibration matrix.
func (c *Camera) K() Mat3 { return c.k }

// R returns the world to camera rotation.
func (c *Camera) R() Mat3 { return c.r }

// T returns the world to camera translation.
func (c *Camera) T() r3.Vector { return c.t }

// P returns the projection matrix K·[R|T].
func (c *Camera) P() Mat34 { return c.p }

// Center returns the camera center in world coordinates, -Rᵀ·T.
func (c *Camera) Center() r3.Vector { return c.center }

// KInv returns K⁻¹.
func (c *Camera) KInv() Mat3 { return c.kInv }

// KRInv returns Rᵀ·K⁻¹, which maps homogeneous pixels to world space ray directions.
func (c *Camera) KRInv() Mat3 { return c.krInv }

// ToCamera transforms a world point into camera coordinates.
func (c *Camera) ToCamera(p r3.Vector) r3.Vector {
	return c.r.MulVec(p).Add(c.t)
}

// InFront reports whether p has a positive camera space Z.
func (c *Camera) InFront(p r3.Vector) bool {
	return c.ToCamera(p).Z > 0
}

// Distance is the Euclidean distance from the camera center to p. This is the depth
// expected by BackprojectPoint.
func (c *Camera) Distance(p r3.Vector) float64 {
	return p.Distance(c.center)
}

// ProjectPoints projects world points into image coordinates. A point whose homogeneous
// divisor is zero fails the whole call with ErrDegenerateProjection.
func (c *Camera) ProjectPoints(pts []r3.Vector) ([]r2.Point, error) {
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		px, err := Dehomogenize(c.p.MulPoint(p))
		if err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
		out[i] = px
	}
	return out, nil
}

// ProjectPoint projects a single world point.
func (c *Camera) ProjectPoint(p r3.Vector) (r2.Point, error) {
	return Dehomogenize(c.p.MulPoint(p))
}

// BackprojectPoints returns, for each pixel, the world point at the given distance from the
// camera center along the pixel's ray.
func (c *Camera) BackprojectPoints(pts []r2.Point, depths []float64) ([]r3.Vector, error) {
	if len(pts) != len(depths) {
		return nil, errors.Wrapf(ErrLengthMismatch, "number of points %d != number of depths %d", len(pts), len(depths))
	}
	out := make([]r3.Vector, len(pts))
	for i := range pts {
		p, err := c.BackprojectPoint(pts[i], depths[i])
		if err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
		out[i] = p
	}
	return out, nil
}

// BackprojectPoint backprojects a single pixel.
func (c *Camera) BackprojectPoint(p r2.Point, depth float64) (r3.Vector, error) {
	ray, err := c.Ray(p)
	if err != nil {
		return r3.Vector{}, err
	}
	return c.center.Add(ray.Mul(depth)), nil
}

// Ray returns the unit world space direction through pixel p.
func (c *Camera) Ray(p r2.Point) (r3.Vector, error) {
	ray := c.krInv.MulVec(r3.Vector{X: p.X, Y: p.Y, Z: 1})
	n := ray.Norm()
	if !(n > RayEpsilon) || math.IsInf(n, 0) {
		return r3.Vector{}, errors.Wrapf(ErrDegenerateRay, "pixel %v", p)
	}
	return ray.Mul(1 / n), nil
}

// Rescale returns a new camera for an image resampled by scale. Every entry of K except the
// bottom right one is multiplied by scale; R and T are shared unchanged.
func (c *Camera) Rescale(scale float64) (*Camera, error) {
	if err := checkPositive("scale factor", scale); err != nil {
		return nil, err
	}
	k := c.k.Scale(scale)
	k[2][2] = c.k[2][2]
	return New(k, c.r, c.t)
}

func (c *Camera) String() string {
	return fmt.Sprintf("pinhole.Camera{K: %v, R: %v, T: %v, center: %v}", c.k, c.r, c.t, c.center)
}

func isFiniteVec(v r3.Vector) bool {
	for _, x := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
