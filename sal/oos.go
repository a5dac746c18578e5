package sal

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

//Classifier is the contract every model pluggable into the estimator satisfies.
//Fit trains on the given dataset; PredictProba emits one probability row per record,
//one column per class.
type Classifier interface {
	Fit(matrix SMatrix) error
	PredictProba(features *mat.Dense) (*mat.Dense, error)
}

//DefaultNumFolds is used when OutOfSampleParams leaves NumFolds unset.
const DefaultNumFolds = 5

//OutOfSampleParams collect arguments required to run the out-of-sample estimator.
type OutOfSampleParams struct {
	Matrix        SMatrix
	NewClassifier func() Classifier
	NumFolds      int
	Stratified    bool
	Seed          int64
	ThreadsNum    int
}

//TaskEstimateFold trains one fold's classifier and fills the held-out rows of the
//shared output. Folds address disjoint row ranges, so no locking is needed.
type TaskEstimateFold struct {
	params    OutOfSampleParams
	fold      Fold
	output    *mat.Dense
	foldError *error
}

func (task *TaskEstimateFold) Run() {
	*task.foldError = estimateFold(task.params, task.fold, task.output)
}

//EstimateOutOfSample produces class membership probabilities for every record of the
//dataset such that each row was predicted by a model that never saw that row during
//training. The dataset is cut into NumFolds folds; for each fold a fresh classifier
//is trained on the remaining records and predicts the held-out ones. Any fold whose
//classifier fails to fit fails the whole call; no partial output is returned.
func EstimateOutOfSample(params OutOfSampleParams) (*mat.Dense, error) {
	if params.NewClassifier == nil {
		return nil, fmt.Errorf("nil classifier factory")
	}
	if params.Matrix.Features == nil {
		return nil, fmt.Errorf("nil feature matrix")
	}
	h, _ := params.Matrix.Features.Dims()
	if len(params.Matrix.Labels) != h {
		return nil, fmt.Errorf("feature height %d does not match label length %d", h, len(params.Matrix.Labels))
	}
	if params.Matrix.NumClasses < 2 {
		return nil, fmt.Errorf("the dataset should contain at least 2 classes not %d", params.Matrix.NumClasses)
	}
	numFolds := params.NumFolds
	if numFolds == 0 {
		numFolds = DefaultNumFolds
	}

	rng := rand.New(rand.NewSource(params.Seed))
	var folds []Fold
	var err error
	if params.Stratified {
		folds, err = MakeStratifiedFolds(params.Matrix.Labels, numFolds, rng)
	} else {
		folds, err = MakeFolds(h, numFolds, rng)
	}
	if err != nil {
		return nil, err
	}

	output := mat.NewDense(h, params.Matrix.NumClasses, nil)
	foldErrors := make([]error, len(folds))

	if params.ThreadsNum <= 1 {
		for f, fold := range folds {
			foldErrors[f] = estimateFold(params, fold, output)
		}
	} else {
		taskPool := NewPool(params.ThreadsNum)
		for f, fold := range folds {
			taskPool.AddTask(&TaskEstimateFold{params: params, fold: fold, output: output, foldError: &foldErrors[f]})
		}
		taskPool.Close()
		taskPool.WaitAll()
	}

	for f, foldError := range foldErrors {
		if foldError != nil {
			return nil, fmt.Errorf("fold %d: %w", f, foldError)
		}
	}

	return output, nil
}

//estimateFold trains a fresh classifier on the train part of one fold and writes the
//predicted probabilities into the output rows of the test part.
func estimateFold(params OutOfSampleParams, fold Fold, output *mat.Dense) error {
	clf := params.NewClassifier()

	if err := clf.Fit(params.Matrix.TakeRows(fold.Train)); err != nil {
		return err
	}

	heldOut := params.Matrix.TakeRows(fold.Test)
	probabilities, err := clf.PredictProba(heldOut.Features)
	if err != nil {
		return err
	}

	probH, probW := probabilities.Dims()
	if probH != len(fold.Test) {
		return fmt.Errorf("the classifier produced %d rows for %d held out records", probH, len(fold.Test))
	}
	if probW != params.Matrix.NumClasses {
		return fmt.Errorf("the classifier produced %d classes instead of %d", probW, params.Matrix.NumClasses)
	}

	for p, ind := range fold.Test {
		for q := 0; q < probW; q++ {
			output.Set(ind, q, probabilities.At(p, q))
		}
	}
	return nil
}
