package nn

import "math"

func relu(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func gaussian(x float64) float64 {
	return math.Exp(-(x * x))
}

func softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

func identityDerivative(_, _ float64) float64 { return 1 }

func reluDerivative(x, _ float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func tanhDerivative(_, y float64) float64 {
	return 1 - (y * y)
}

func sigmoidDerivative(_, y float64) float64 {
	return y * (1 - y)
}

// d/dx exp(-x^2) = -2x*exp(-x^2)
func gaussianDerivative(x, y float64) float64 {
	return -2 * x * y
}

func softplusDerivative(x, _ float64) float64 {
	return sigmoid(x)
}
