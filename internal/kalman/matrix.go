package kalman

import (
	"gonum.org/v1/gonum/mat"
)

// Covariance is a 3×3 row-major covariance over {position, velocity,
// acceleration}. It is a value type: copies never alias estimator state.
type Covariance [3][3]float64

func diagonal(d [3]float64) Covariance {
	var c Covariance
	for i := range 3 {
		c[i][i] = d[i]
	}
	return c
}

// Diagonal returns the variances of position, velocity and acceleration.
func (c Covariance) Diagonal() [3]float64 {
	return [3]float64{c[0][0], c[1][1], c[2][2]}
}

// Dense returns c as a gonum matrix.
func (c Covariance) Dense() *mat.Dense {
	data := make([]float64, 0, 9)
	for i := range 3 {
		data = append(data, c[i][:]...)
	}
	return mat.NewDense(3, 3, data)
}

// Symmetric returns the symmetric part (P+Pᵗ)/2. The correction step leaves
// rounding asymmetry of a few ulps which eigen decomposition should not see.
func (c Covariance) Symmetric() *mat.SymDense {
	s := mat.NewSymDense(3, nil)
	for i := range 3 {
		for j := i; j < 3; j++ {
			s.SetSym(i, j, 0.5*(c[i][j]+c[j][i]))
		}
	}
	return s
}

func covarianceFrom(m mat.Matrix) Covariance {
	var c Covariance
	for i := range 3 {
		for j := range 3 {
			c[i][j] = m.At(i, j)
		}
	}
	return c
}

// transition returns the constant-acceleration state transition over dt:
//
//	F = [1  dt  ½dt²]
//	    [0  1   dt  ]
//	    [0  0   1   ]
func transition(dt float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, dt, 0.5 * dt * dt,
		0, 1, dt,
		0, 0, 1,
	})
}

// predict returns F·P·Fᵗ + Q.
func (c Covariance) predict(dt float64, q [3]float64) Covariance {
	f := transition(dt)
	var fp, fpft mat.Dense
	fp.Mul(f, c.Dense())
	fpft.Mul(&fp, f.T())

	out := covarianceFrom(&fpft)
	for i := range 3 {
		out[i][i] += q[i]
	}
	return out
}

// correct returns (I − K·H)·P for the acceleration-only measurement
// H = [0 0 1]. K·H only has a non-zero third column, so
//
//	I − K·H = [1  0  −k0  ]
//	          [0  1  −k1  ]
//	          [0  0  1−k2 ]
func (c Covariance) correct(k [3]float64) Covariance {
	m := mat.NewDense(3, 3, []float64{
		1, 0, -k[0],
		0, 1, -k[1],
		0, 0, 1 - k[2],
	})
	var out mat.Dense
	out.Mul(m, c.Dense())
	return covarianceFrom(&out)
}

// gain returns the Kalman gain for H = [0 0 1] and the innovation variance
// S = P[2][2] + R. ok is false when S is not strictly positive.
func (c Covariance) gain(r float64) (k [3]float64, ok bool) {
	s := c[2][2] + r
	if !(s > 0) || !finite(s) {
		return k, false
	}
	return [3]float64{c[0][2] / s, c[1][2] / s, c[2][2] / s}, true
}
