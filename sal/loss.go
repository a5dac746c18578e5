package sal

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const probEps = 1e-15

//Sigmoid maps a raw score into the (0, 1) range.
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

//LogitLoss provides the first and the second derivative of the binary logloss
//with respect to the raw score. They drive the Newton iterations of the logit fit.
type LogitLoss struct{}

//lossDer1 is the gradient of the logloss at one record: p - y.
func (LogitLoss) lossDer1(target, score float64) float64 {
	return Sigmoid(score) - target
}

//lossDer2 is the curvature of the logloss at one record: p * (1 - p).
func (LogitLoss) lossDer2(_, score float64) float64 {
	p := Sigmoid(score)
	return p * (1.0 - p)
}

//Logloss reports the mean negative log probability assigned to the true class.
//Probabilities are clamped away from zero to keep the value finite.
func Logloss(labels []int, probabilities *mat.Dense) float64 {
	total := 0.0
	for p, label := range labels {
		prob := probabilities.At(p, label)
		if prob < probEps {
			prob = probEps
		}
		total -= math.Log(prob)
	}
	return total / float64(len(labels))
}

//Accuracy reports the share of records whose most probable class matches the label.
func Accuracy(labels []int, probabilities *mat.Dense) float64 {
	hits := 0
	_, numClasses := probabilities.Dims()
	for p, label := range labels {
		best := 0
		for q := 1; q < numClasses; q++ {
			if probabilities.At(p, q) > probabilities.At(p, best) {
				best = q
			}
		}
		if best == label {
			hits++
		}
	}
	return float64(hits) / float64(len(labels))
}
