package optimize

import "github.com/pkg/errors"

// ObjectiveFunc evaluates the training objective at a parameter vector.
type ObjectiveFunc func(params []float64) (float64, error)

// ObjectiveJacobianFunc evaluates the objective and its gradient with respect to
// params. The returned gradient has len(params) entries.
type ObjectiveJacobianFunc func(params []float64) (float64, []float64, error)

// Problem bundles the functions an optimizer may query for one step. It is built
// fresh per training step because the batch behind it can change.
type Problem struct {
	objective         ObjectiveFunc
	objectiveJacobian ObjectiveJacobianFunc
}

func NewProblem(objective ObjectiveFunc, objectiveJacobian ObjectiveJacobianFunc) (Problem, error) {
	if objective == nil && objectiveJacobian == nil {
		return Problem{}, errors.New("problem needs an objective or an objective jacobian")
	}
	return Problem{objective: objective, objectiveJacobian: objectiveJacobian}, nil
}

func (p Problem) HasJacobian() bool {
	return p.objectiveJacobian != nil
}

func (p Problem) Objective(params []float64) (float64, error) {
	if p.objective != nil {
		return p.objective(params)
	}
	if p.objectiveJacobian == nil {
		return 0, errors.New("problem has no objective")
	}
	value, _, err := p.objectiveJacobian(params)
	return value, err
}

func (p Problem) ObjectiveJacobian(params []float64) (float64, []float64, error) {
	if p.objectiveJacobian == nil {
		return 0, nil, errors.New("problem has no jacobian")
	}
	value, jac, err := p.objectiveJacobian(params)
	if err != nil {
		return 0, nil, err
	}
	if len(jac) != len(params) {
		return 0, nil, errors.Errorf("jacobian has %d entries, want %d", len(jac), len(params))
	}
	return value, jac, nil
}
