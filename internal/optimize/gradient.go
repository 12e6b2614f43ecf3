package optimize

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SteepestDescent steps against the gradient with a backtracking line search. The
// search starts from twice the previously accepted step.
type SteepestDescent struct {
	InitialStep float64

	step     float64
	jacobian []float64
}

func NewSteepestDescent() *SteepestDescent {
	return &SteepestDescent{InitialStep: 1.0}
}

func (*SteepestDescent) Name() string { return NameSteepestDescent }

func (s *SteepestDescent) Next(problem Problem, params []float64) (float64, []float64, error) {
	if !problem.HasJacobian() {
		return 0, nil, errors.New("steepest descent requires a jacobian")
	}
	value, grad, err := problem.ObjectiveJacobian(params)
	if err != nil {
		return 0, nil, err
	}
	s.jacobian = append(s.jacobian[:0], grad...)

	if s.step <= 0 {
		s.step = s.InitialStep
		if s.step <= 0 {
			s.step = 1.0
		}
	}
	dir := negated(grad)
	step, err := backtrack(problem, params, value, grad, dir, math.Min(2*s.step, maxStepSize))
	if err != nil {
		return 0, nil, err
	}
	if step > 0 {
		s.step = step
	}
	return value, stepped(params, step, dir), nil
}

func (s *SteepestDescent) Jacobian() []float64 {
	if s.jacobian == nil {
		return nil
	}
	return append([]float64(nil), s.jacobian...)
}

func (s *SteepestDescent) Reset() {
	s.step = 0
	s.jacobian = nil
}

// BFGS keeps a dense inverse Hessian approximation. Updates that would break
// positive definiteness are skipped, and a non-descent direction resets the
// approximation to the identity.
type BFGS struct {
	hessInv  *mat.Dense
	prevX    []float64
	prevGrad []float64
	jacobian []float64
}

func NewBFGS() *BFGS {
	return &BFGS{}
}

func (*BFGS) Name() string { return NameBFGS }

func (b *BFGS) Next(problem Problem, params []float64) (float64, []float64, error) {
	if !problem.HasJacobian() {
		return 0, nil, errors.New("bfgs requires a jacobian")
	}
	value, grad, err := problem.ObjectiveJacobian(params)
	if err != nil {
		return 0, nil, err
	}
	b.jacobian = append(b.jacobian[:0], grad...)

	n := len(params)
	if b.hessInv == nil || b.hessInv.RawMatrix().Rows != n {
		b.resetHessian(n)
	} else if b.prevX != nil {
		b.update(params, grad)
	}

	dirVec := mat.NewVecDense(n, nil)
	dirVec.MulVec(b.hessInv, mat.NewVecDense(n, append([]float64(nil), grad...)))
	dir := dirVec.RawVector().Data
	floats.Scale(-1, dir)
	if !(floats.Dot(dir, grad) < 0) {
		b.resetHessian(n)
		dir = negated(grad)
	}

	step, err := backtrack(problem, params, value, grad, dir, 1.0)
	if err != nil {
		return 0, nil, err
	}
	if step == 0 {
		b.resetHessian(n)
	}

	b.prevX = append(b.prevX[:0], params...)
	b.prevGrad = append(b.prevGrad[:0], grad...)
	return value, stepped(params, step, dir), nil
}

func (b *BFGS) update(x, grad []float64) {
	n := len(x)
	s := make([]float64, n)
	y := make([]float64, n)
	floats.SubTo(s, x, b.prevX)
	floats.SubTo(y, grad, b.prevGrad)
	sy := floats.Dot(s, y)
	if sy <= 1e-10 {
		return
	}
	rho := 1 / sy

	sVec := mat.NewVecDense(n, s)
	yVec := mat.NewVecDense(n, y)
	hy := mat.NewVecDense(n, nil)
	hy.MulVec(b.hessInv, yVec)
	yhy := mat.Dot(yVec, hy)

	b.hessInv.RankOne(b.hessInv, -rho, hy, sVec)
	b.hessInv.RankOne(b.hessInv, -rho, sVec, hy)
	b.hessInv.RankOne(b.hessInv, rho*rho*yhy+rho, sVec, sVec)
}

func (b *BFGS) resetHessian(n int) {
	b.hessInv = mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		b.hessInv.Set(i, i, 1)
	}
	b.prevX = nil
	b.prevGrad = nil
}

func (b *BFGS) Jacobian() []float64 {
	if b.jacobian == nil {
		return nil
	}
	return append([]float64(nil), b.jacobian...)
}

func (b *BFGS) Reset() {
	b.hessInv = nil
	b.prevX = nil
	b.prevGrad = nil
	b.jacobian = nil
}
