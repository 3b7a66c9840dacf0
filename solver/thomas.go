package solver

import (
	"fmt"
	"math"
)

const pivotTolerance = 1e-14

// SolveTridiagonal solves the system with sub-diagonal lower, diagonal main and
// super-diagonal upper (lower[0] and upper[n-1] are ignored) using the Thomas
// algorithm. out receives the solution and must have len(rhs). No pivoting is
// done; a vanishing or non-finite pivot is reported as ErrArithmeticDegeneracy.
func SolveTridiagonal(lower, main, upper, rhs, out []float64) error {
	n := len(rhs)
	if n == 0 || len(main) != n || len(lower) != n || len(upper) != n || len(out) != n {
		return fmt.Errorf("%w: tridiagonal system size mismatch", ErrInvalidGrid)
	}
	return thomas(lower, main, upper, rhs, out, make([]float64, n))
}

// thomas is SolveTridiagonal without size checks; cp is caller-owned scratch so the
// time-stepping loop does not allocate. out doubles as the modified rhs.
func thomas(lower, main, upper, rhs, out, cp []float64) error {
	n := len(rhs)

	denom := main[0]
	if err := checkPivot(denom, 0); err != nil {
		return err
	}
	cp[0] = upper[0] / denom
	out[0] = rhs[0] / denom

	for i := 1; i < n; i++ {
		denom = main[i] - lower[i]*cp[i-1]
		if err := checkPivot(denom, i); err != nil {
			return err
		}
		cp[i] = upper[i] / denom
		out[i] = (rhs[i] - lower[i]*out[i-1]) / denom
	}

	for i := n - 2; i >= 0; i-- {
		out[i] -= cp[i] * out[i+1]
	}
	return nil
}

func checkPivot(p float64, row int) error {
	if math.Abs(p) < pivotTolerance || math.IsNaN(p) || math.IsInf(p, 0) {
		return fmt.Errorf("%w: pivot %g at row %d", ErrArithmeticDegeneracy, p, row)
	}
	return nil
}
