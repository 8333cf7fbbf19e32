// Package colormath provides the small amount of linear algebra needed to
// move linear RGB values between color gamuts: 3x3 matrices, RGB to XYZ
// derivation from chromaticity coordinates and color-space conversion (CSC)
// composition.
//
// All functions are pure. Nothing in this package allocates or logs.
package colormath

import (
	"errors"
	"math"
)

// ErrNonInvertible is returned when a matrix determinant is too close to zero,
// typically because the three primaries are collinear.
var ErrNonInvertible = errors.New("colormath: matrix is not invertible")

// DeterminantEpsilon is the magnitude below which a determinant counts as zero.
const DeterminantEpsilon = 1e-6

// Vec2 is a chromaticity coordinate (x, y).
type Vec2 [2]float64

// Vec3 is a column vector.
type Vec3 [3]float64

// Mat3 is a row-major 3x3 matrix: m[row][col].
type Mat3 [3][3]float64

// Identity returns the 3x3 identity matrix.
func Identity() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Determinant returns det(m).
func (m Mat3) Determinant() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Invert returns the inverse of m using the adjugate (cofactor) method.
// It fails with ErrNonInvertible when |det(m)| <= DeterminantEpsilon.
func (m Mat3) Invert() (Mat3, error) {
	det := m.Determinant()
	if math.Abs(det) <= DeterminantEpsilon {
		return Mat3{}, ErrNonInvertible
	}

	var inv Mat3
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

// Mul returns the matrix product m * n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var out Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r][c] = m[r][0]*n[0][c] + m[r][1]*n[1][c] + m[r][2]*n[2][c]
		}
	}
	return out
}

// MulVec returns m * v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// Column returns column c of m.
func (m Mat3) Column(c int) Vec3 {
	return Vec3{m[0][c], m[1][c], m[2][c]}
}

// Transpose returns mᵀ. Shader uniforms are uploaded column-major.
func (m Mat3) Transpose() Mat3 {
	var t Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			t[c][r] = m[r][c]
		}
	}
	return t
}

// Flatten returns the matrix in column-major order, as glUniformMatrix3fv
// expects with transpose=false.
func (m Mat3) Flatten() [9]float32 {
	var out [9]float32
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			out[c*3+r] = float32(m[r][c])
		}
	}
	return out
}

// ApproxEqual reports whether every element of m and n differs by at most tol.
func (m Mat3) ApproxEqual(n Mat3, tol float64) bool {
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if math.Abs(m[r][c]-n[r][c]) > tol {
				return false
			}
		}
	}
	return true
}

// xyToXYZ lifts a chromaticity to XYZ with Y implied by x + y + z = 1.
func xyToXYZ(p Vec2) Vec3 {
	return Vec3{p[0], p[1], 1 - p[0] - p[1]}
}

// RGBToXYZ derives the matrix converting linear RGB in the gamut spanned by
// the red, green and blue primaries (with the given white point) to CIE XYZ.
func RGBToXYZ(red, green, blue, white Vec2) (Mat3, error) {
	r, g, b := xyToXYZ(red), xyToXYZ(green), xyToXYZ(blue)

	var n Mat3
	for i := 0; i < 3; i++ {
		n[i][0] = r[i]
		n[i][1] = g[i]
		n[i][2] = b[i]
	}

	if white[1] == 0 {
		return Mat3{}, ErrNonInvertible
	}
	w := xyToXYZ(white)
	w = Vec3{w[0] / white[1], 1, w[2] / white[1]}

	inv, err := n.Invert()
	if err != nil {
		return Mat3{}, err
	}
	s := inv.MulVec(w)

	for i := 0; i < 3; i++ {
		n[i][0] *= s[0]
		n[i][1] *= s[1]
		n[i][2] *= s[2]
	}
	return n, nil
}

// Gamut is a set of RGB primaries plus white point in CIE xy.
type Gamut struct {
	Red, Green, Blue, White Vec2
}

// IsSet reports whether g carries a usable red primary. An all-zero gamut is
// the "not configured" marker used by display descriptions.
func (g Gamut) IsSet() bool {
	return g.Red[0] != 0 && g.Red[1] != 0
}

// ToXYZ returns the RGB to XYZ matrix of g.
func (g Gamut) ToXYZ() (Mat3, error) {
	return RGBToXYZ(g.Red, g.Green, g.Blue, g.White)
}

// ComposeCSC returns the matrix converting linear RGB in src to linear RGB in
// dst: inverse(dst RGB->XYZ) * (src RGB->XYZ).
func ComposeCSC(src, dst Gamut) (Mat3, error) {
	srcToXYZ, err := src.ToXYZ()
	if err != nil {
		return Mat3{}, err
	}
	dstToXYZ, err := dst.ToXYZ()
	if err != nil {
		return Mat3{}, err
	}
	xyzToDst, err := dstToXYZ.Invert()
	if err != nil {
		return Mat3{}, err
	}
	return xyzToDst.Mul(srcToXYZ), nil
}
