package sal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//LogitClassifier is a logistic regression fitted with Newton iterations.
//One weight column per class, combined one-vs-rest. The model fits no implicit
//intercept: callers wanting one include a constant feature column.
type LogitClassifier struct {
	Weights       *mat.Dense
	NumClasses    int
	NumIterations int
	RegLambda     float64
}

//NewLogitClassifier creates an untrained logit model.
func NewLogitClassifier(numIterations int, regLambda float64) *LogitClassifier {
	return &LogitClassifier{NumIterations: numIterations, RegLambda: regLambda}
}

//allocateOuterProducts precomputes the per record outer products of the feature rows.
//Newton iterations reweight this raw array by the loss curvature instead of
//recomputing the products every pass.
func allocateOuterProducts(features *mat.Dense) (*tensor.Dense, error) {
	h, d := features.Dims()

	rawHessian := tensor.New(tensor.WithShape(h, d, d), tensor.Of(tensor.Float64))
	for p := 0; p < h; p++ {
		for q := 0; q < d; q++ {
			for r := 0; r < d; r++ {
				if err := rawHessian.SetAt(features.At(p, q)*features.At(p, r), p, q, r); err != nil {
					return nil, err
				}
			}
		}
	}
	return rawHessian, nil
}

//Fit trains one weight column per class against the rest of the dataset.
func (clf *LogitClassifier) Fit(matrix SMatrix) error {
	h, d := matrix.validatedDimensions()
	if matrix.NumClasses < 2 {
		return fmt.Errorf("the dataset should contain at least 2 classes not %d", matrix.NumClasses)
	}

	rawHessian, err := allocateOuterProducts(matrix.Features)
	if err != nil {
		return err
	}

	clf.NumClasses = matrix.NumClasses
	clf.Weights = mat.NewDense(d, matrix.NumClasses, nil)

	for class := 0; class < matrix.NumClasses; class++ {
		weights, err := fitBinaryLogit(matrix, class, h, d, rawHessian, clf.NumIterations, clf.RegLambda)
		if err != nil {
			return fmt.Errorf("class %d: %w", class, err)
		}
		clf.Weights.SetCol(class, weights)
	}
	return nil
}

//fitBinaryLogit runs Newton iterations for one class-against-rest target.
func fitBinaryLogit(matrix SMatrix, class, h, d int, rawHessian *tensor.Dense, numIterations int, regLambda float64) ([]float64, error) {
	currentLoss := LogitLoss{}

	weight := mat.NewDense(d, 1, nil)
	scores := mat.NewDense(h, 1, nil)
	accumGrad := mat.NewDense(d, 1, nil)
	accumHess := mat.NewDense(d, d, nil)
	normHess := mat.NewDense(d, d, nil)
	inverseHess := mat.NewDense(d, d, nil)
	step := mat.NewDense(d, 1, nil)

	for iter := 0; iter < numIterations; iter++ {
		scores.Mul(matrix.Features, weight)
		flushIntermediate(d, accumGrad, accumHess)

		for p := 0; p < h; p++ {
			targetVal := 0.0
			if matrix.Labels[p] == class {
				targetVal = 1.0
			}
			scoreVal := scores.At(p, 0)
			der1 := currentLoss.lossDer1(targetVal, scoreVal)
			der2 := currentLoss.lossDer2(targetVal, scoreVal)

			for cp := 0; cp < d; cp++ {
				accumGrad.Set(cp, 0, accumGrad.At(cp, 0)+der1*matrix.Features.At(p, cp))
				for cq := 0; cq < d; cq++ {
					element, err := rawHessian.At(p, cp, cq)
					if err != nil {
						return nil, err
					}
					accumHess.Set(cp, cq, der2*element.(float64)+accumHess.At(cp, cq))
				}
			}
		}

		for cp := 0; cp < d; cp++ {
			for cq := 0; cq < d; cq++ {
				diagEye := 0.0
				if cp == cq {
					diagEye = regLambda
				}
				normHess.Set(cp, cq, accumHess.At(cp, cq)+diagEye)
			}
		}

		if err := inverseHess.Inverse(normHess); err != nil {
			return nil, fmt.Errorf("singular hessian on iteration %d: %w", iter, err)
		}
		step.Mul(inverseHess, accumGrad)
		weight.Sub(weight, step)

		for cp := 0; cp < d; cp++ {
			if math.IsNaN(weight.At(cp, 0)) || math.IsInf(weight.At(cp, 0), 0) {
				return nil, fmt.Errorf("diverged weights on iteration %d", iter)
			}
		}
	}

	result := make([]float64, d)
	for cp := 0; cp < d; cp++ {
		result[cp] = weight.At(cp, 0)
	}
	return result, nil
}

//flushIntermediate flushes the gradient and the hessian accumulators.
func flushIntermediate(d int, accumGrad, accumHess *mat.Dense) {
	for zeroIndP := 0; zeroIndP < d; zeroIndP++ {
		accumGrad.Set(zeroIndP, 0, 0)
		for zeroIndQ := 0; zeroIndQ < d; zeroIndQ++ {
			accumHess.Set(zeroIndP, zeroIndQ, 0)
		}
	}
}

//PredictProba applies the sigmoid to every class score and renormalizes each row
//so the one-vs-rest columns form a distribution.
func (clf *LogitClassifier) PredictProba(features *mat.Dense) (*mat.Dense, error) {
	if clf.Weights == nil {
		return nil, fmt.Errorf("the model is not fitted")
	}
	h, w := features.Dims()
	weightH, _ := clf.Weights.Dims()
	if w != weightH {
		return nil, fmt.Errorf("feature width %d does not match the fitted width %d", w, weightH)
	}

	scores := mat.NewDense(h, clf.NumClasses, nil)
	scores.Mul(features, clf.Weights)

	probabilities := mat.NewDense(h, clf.NumClasses, nil)
	for p := 0; p < h; p++ {
		total := 0.0
		for q := 0; q < clf.NumClasses; q++ {
			prob := Sigmoid(scores.At(p, q))
			probabilities.Set(p, q, prob)
			total += prob
		}
		if total > 0 {
			for q := 0; q < clf.NumClasses; q++ {
				probabilities.Set(p, q, probabilities.At(p, q)/total)
			}
		}
	}
	return probabilities, nil
}
