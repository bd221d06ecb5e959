package opr

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// PseudoInverse returns the Moore-Penrose pseudoinverse of a via its thin
// SVD. Singular values at or below max(m,n)·σmax·eps are treated as zero,
// which gives the least-norm solution for rank-deficient systems.
func PseudoInverse(a mat.Matrix) (*mat.Dense, error) {
	m, n := a.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, ErrFactorization
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)

	var sigmaMax float64
	for _, s := range values {
		sigmaMax = math.Max(sigmaMax, s)
	}
	tol := float64(max(m, n)) * sigmaMax * eps

	inv := make([]float64, len(values))
	for i, s := range values {
		if s > tol {
			inv[i] = 1 / s
		}
	}

	var vs mat.Dense
	vs.Mul(&v, mat.NewDiagDense(len(inv), inv))

	p := mat.NewDense(n, m, nil)
	p.Mul(&vs, u.T())
	return p, nil
}

// eps is the float64 machine epsilon.
const eps = 0x1p-52
