package pinhole

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	// SingularEpsilon bounds |det| relative to the product of the row norms.
	SingularEpsilon = 1e-12
	// ProjectionEpsilon is the smallest homogeneous divisor accepted by Dehomogenize.
	ProjectionEpsilon = 1e-12
	// RayEpsilon is the shortest backprojection ray that can be normalized.
	RayEpsilon = 1e-12
	// OrthonormalTolerance is the largest entry allowed in R·Rᵀ - I.
	OrthonormalTolerance = 1e-6
)

// Mat3 is a row-major 3x3 matrix.
type Mat3 [3][3]float64

// Mat34 is a row-major 3x4 matrix, e.g. a projection matrix K·[R|T].
type Mat34 [3][4]float64

// Mat4 is a row-major 4x4 matrix.
type Mat4 [4][4]float64

// Identity3 returns the 3x3 identity.
func Identity3() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Mat3FromRows builds a matrix whose rows are the given vectors.
func Mat3FromRows(a, b, c r3.Vector) Mat3 {
	return Mat3{
		{a.X, a.Y, a.Z},
		{b.X, b.Y, b.Z},
		{c.X, c.Y, c.Z},
	}
}

// Mat3FromCols builds a matrix whose columns are the given vectors.
func Mat3FromCols(a, b, c r3.Vector) Mat3 {
	return Mat3FromRows(a, b, c).Transpose()
}

// Mat3FromSlice reads 9 values in row-major order.
func Mat3FromSlice(vals []float64) (Mat3, error) {
	var m Mat3
	if len(vals) != 9 {
		return m, errors.Errorf("need 9 values for a 3x3 matrix, got %d", len(vals))
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = vals[i*3+j]
		}
	}
	return m, nil
}

// Mat3FromDense copies a gonum matrix, which must be 3x3.
func Mat3FromDense(d mat.Matrix) (Mat3, error) {
	var m Mat3
	r, c := d.Dims()
	if r != 3 || c != 3 {
		return m, errors.Errorf("expected 3x3 matrix, got %dx%d", r, c)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = d.At(i, j)
		}
	}
	return m, nil
}

// Dense returns a gonum copy of m.
func (m Mat3) Dense() *mat.Dense {
	return mat.NewDense(3, 3, m.Slice())
}

// Slice returns the entries in row-major order.
func (m Mat3) Slice() []float64 {
	out := make([]float64, 0, 9)
	for i := 0; i < 3; i++ {
		out = append(out, m[i][:]...)
	}
	return out
}

func (m Mat3) Row(i int) r3.Vector {
	return r3.Vector{X: m[i][0], Y: m[i][1], Z: m[i][2]}
}

func (m Mat3) Col(j int) r3.Vector {
	return r3.Vector{X: m[0][j], Y: m[1][j], Z: m[2][j]}
}

func (m Mat3) Transpose() Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[j][i] = m[i][j]
		}
	}
	return out
}

func (m Mat3) Mul(n Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += m[i][k] * n[k][j]
			}
		}
	}
	return out
}

func (m Mat3) MulVec(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Scale multiplies every entry by s.
func (m Mat3) Scale(s float64) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][j] * s
		}
	}
	return out
}

func (m Mat3) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

func (m Mat3) maxAbs() float64 {
	best := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			best = math.Max(best, math.Abs(m[i][j]))
		}
	}
	return best
}

// IsSingular reports whether |det| is negligible next to the product of the row norms, the
// largest |det| rows of those lengths can reach. Rows may differ in scale, as they do in
// homographies mixing pixels and depth.
func (m Mat3) IsSingular() bool {
	if !m.isFinite() {
		return true
	}
	bound := m.Row(0).Norm() * m.Row(1).Norm() * m.Row(2).Norm()
	if bound == 0 {
		return true
	}
	return math.Abs(m.Det()) <= SingularEpsilon*bound
}

// Inverse returns m⁻¹ computed from the adjugate, or ErrSingularMatrix.
func (m Mat3) Inverse() (Mat3, error) {
	var inv Mat3
	if m.IsSingular() {
		return inv, errors.Wrapf(ErrSingularMatrix, "det = %g", m.Det())
	}
	det := m.Det()
	inv[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) / det
	inv[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) / det
	inv[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) / det
	inv[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) / det
	inv[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) / det
	inv[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) / det
	inv[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) / det
	inv[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) / det
	inv[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) / det
	return inv, nil
}

// AlmostEqual compares entry by entry with an absolute tolerance.
func (m Mat3) AlmostEqual(n Mat3, tol float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(m[i][j]-n[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

// IsOrthonormal reports whether m·mᵀ is the identity within tol.
func (m Mat3) IsOrthonormal(tol float64) bool {
	return m.Mul(m.Transpose()).AlmostEqual(Identity3(), tol)
}

func (m Mat3) isFinite() bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.IsNaN(m[i][j]) || math.IsInf(m[i][j], 0) {
				return false
			}
		}
	}
	return true
}

// Apply maps a 2-D point through m treated as a homography.
func (m Mat3) Apply(p r2.Point) (r2.Point, error) {
	return Dehomogenize(m.MulVec(r3.Vector{X: p.X, Y: p.Y, Z: 1}))
}

func (m Mat3) String() string {
	return fmt.Sprintf("[%v %v %v]", m[0], m[1], m[2])
}

// Mul4 returns m·n.
func (m Mat34) Mul4(n Mat4) Mat34 {
	var out Mat34
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 4; k++ {
				out[i][j] += m[i][k] * n[k][j]
			}
		}
	}
	return out
}

// MulPoint lifts p to [p;1] and returns the homogeneous 3-vector m·[p;1].
func (m Mat34) MulPoint(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0][0]*p.X + m[0][1]*p.Y + m[0][2]*p.Z + m[0][3],
		Y: m[1][0]*p.X + m[1][1]*p.Y + m[1][2]*p.Z + m[1][3],
		Z: m[2][0]*p.X + m[2][1]*p.Y + m[2][2]*p.Z + m[2][3],
	}
}

// DropCol returns the 3x3 matrix left after removing column col.
func (m Mat34) DropCol(col int) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		k := 0
		for j := 0; j < 4; j++ {
			if j == col {
				continue
			}
			out[i][k] = m[i][j]
			k++
		}
	}
	return out
}

// Dense returns a gonum copy of m.
func (m Mat34) Dense() *mat.Dense {
	data := make([]float64, 0, 12)
	for i := 0; i < 3; i++ {
		data = append(data, m[i][:]...)
	}
	return mat.NewDense(3, 4, data)
}

// RigidTransform builds [[R T],[0 0 0 1]].
func RigidTransform(rot Mat3, t r3.Vector) Mat4 {
	return Mat4{
		{rot[0][0], rot[0][1], rot[0][2], t.X},
		{rot[1][0], rot[1][1], rot[1][2], t.Y},
		{rot[2][0], rot[2][1], rot[2][2], t.Z},
		{0, 0, 0, 1},
	}
}

// Dehomogenize performs the perspective division (x/w, y/w).
func Dehomogenize(h r3.Vector) (r2.Point, error) {
	if math.Abs(h.Z) <= ProjectionEpsilon || math.IsNaN(h.Z) {
		return r2.Point{}, errors.Wrapf(ErrDegenerateProjection, "homogeneous coordinate %v has zero divisor", h)
	}
	return r2.Point{X: h.X / h.Z, Y: h.Y / h.Z}, nil
}
