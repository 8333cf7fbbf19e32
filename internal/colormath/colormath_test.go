package colormath

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvert(t *testing.T) {
	tests := []struct {
		name    string
		m       Mat3
		wantErr bool
	}{
		{"identity", Identity(), false},
		{"diagonal", Mat3{{2, 0, 0}, {0, 4, 0}, {0, 0, 0.5}}, false},
		{"general", Mat3{{1, 2, 3}, {0, 1, 4}, {5, 6, 0}}, false},
		{"singular_rows", Mat3{{1, 2, 3}, {2, 4, 6}, {1, 1, 1}}, true},
		{"near_zero_det", Mat3{{1e-3, 0, 0}, {0, 1e-3, 0}, {0, 0, 1e-3}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := tt.m.Invert()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNonInvertible)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.m.Mul(inv).ApproxEqual(Identity(), 1e-9), "m * inv(m) != I: %v", tt.m.Mul(inv))
			t.Logf("✅ %s inverted, det=%.4g", tt.name, tt.m.Determinant())
		})
	}
}

func TestMulIsRowByColumn(t *testing.T) {
	a := Mat3{{1, 2, 0}, {0, 1, 0}, {0, 0, 1}}
	b := Mat3{{1, 0, 0}, {3, 1, 0}, {0, 0, 1}}

	got := a.Mul(b)
	want := Mat3{{7, 2, 0}, {3, 1, 0}, {0, 0, 1}}
	assert.Equal(t, want, got)

	v := a.MulVec(Vec3{1, 1, 1})
	assert.Equal(t, Vec3{3, 1, 1}, v)
}

func TestRGBToXYZ_BT709(t *testing.T) {
	m, err := BT709.ToXYZ()
	require.NoError(t, err)

	// Reference sRGB/BT.709 D65 matrix.
	want := Mat3{
		{0.4124, 0.3576, 0.1805},
		{0.2126, 0.7152, 0.0722},
		{0.0193, 0.1192, 0.9505},
	}
	assert.True(t, m.ApproxEqual(want, 5e-4), "got %v", m)

	// White (1,1,1) maps to the white point with Y=1.
	w := m.MulVec(Vec3{1, 1, 1})
	assert.InDelta(t, 1.0, w[1], 1e-9)
	assert.InDelta(t, 0.3127/0.3290, w[0], 1e-9)
}

func TestRGBToXYZ_CollinearPrimaries(t *testing.T) {
	// Three points on the line y = x.
	_, err := RGBToXYZ(Vec2{0.2, 0.2}, Vec2{0.3, 0.3}, Vec2{0.4, 0.4}, whiteD65)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonInvertible))
}

func TestComposeCSC_SameGamutIsIdentity(t *testing.T) {
	for p := PrimariesBT709; p <= PrimariesEBU3213; p++ {
		g, ok := p.Gamut()
		require.True(t, ok)

		t.Run(p.String(), func(t *testing.T) {
			csc, err := ComposeCSC(g, g)
			require.NoError(t, err)
			assert.True(t, csc.ApproxEqual(Identity(), 1e-6), "csc=%v", csc)
		})
	}
}

func TestComposeCSC_BT2020ToBT709(t *testing.T) {
	csc, err := ComposeCSC(BT2020, BT709)
	require.NoError(t, err)

	// Well-known BT.2020 -> BT.709 conversion.
	want := Mat3{
		{1.6605, -0.5876, -0.0728},
		{-0.1246, 1.1329, -0.0083},
		{-0.0182, -0.1006, 1.1187},
	}
	assert.True(t, csc.ApproxEqual(want, 1e-3), "got %v", csc)

	// Rows sum to one: white stays white.
	for r := 0; r < 3; r++ {
		sum := csc[r][0] + csc[r][1] + csc[r][2]
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestFlattenIsColumnMajor(t *testing.T) {
	m := Mat3{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	assert.Equal(t, [9]float32{1, 4, 7, 2, 5, 8, 3, 6, 9}, m.Flatten())
	assert.Equal(t, m, m.Transpose().Transpose())
}

func TestGamutFromSlice(t *testing.T) {
	assert.False(t, GamutFromSlice(nil).IsSet())
	g := GamutFromSlice([]float64{0.64, 0.33, 0.30, 0.60, 0.15, 0.06, 0.3127, 0.3290})
	assert.True(t, g.IsSet())
	assert.Equal(t, BT709, g)
	assert.False(t, math.IsNaN(g.White[0]))
}
