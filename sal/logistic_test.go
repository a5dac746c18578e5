package sal

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func makeDense(t *testing.T, h, w int, values []float64) *mat.Dense {
	t.Helper()
	if len(values) != h*w {
		t.Fatalf("%d values for a %dx%d matrix", len(values), h, w)
	}
	return mat.NewDense(h, w, values)
}

//twoClusterMatrix builds a linearly separable dataset with an intercept column.
func twoClusterMatrix(t *testing.T) SMatrix {
	t.Helper()
	features := makeDense(t, 8, 2, []float64{
		1, -3.0,
		1, -2.5,
		1, -2.0,
		1, -1.5,
		1, 1.5,
		1, 2.0,
		1, 2.5,
		1, 3.0,
	})
	labels := []int{0, 0, 0, 0, 1, 1, 1, 1}
	matrix, err := NewSMatrix(features, labels)
	if err != nil {
		t.Fatalf("matrix: %v", err)
	}
	return matrix
}

func TestLogitSeparatesTwoClusters(t *testing.T) {
	matrix := twoClusterMatrix(t)

	clf := NewLogitClassifier(15, 1e-3)
	if err := clf.Fit(matrix); err != nil {
		t.Fatalf("fit: %v", err)
	}

	probabilities, err := clf.PredictProba(matrix.Features)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	accuracy := Accuracy(matrix.Labels, probabilities)
	if accuracy != 1.0 {
		t.Fatalf("accuracy = %.4f, want 1.0", accuracy)
	}
	for p := 0; p < Height(matrix.Features); p++ {
		rowSum := probabilities.At(p, 0) + probabilities.At(p, 1)
		if math.Abs(rowSum-1.0) > 1e-9 {
			t.Fatalf("row %d probabilities sum to %.6f, want 1", p, rowSum)
		}
	}

	logloss := Logloss(matrix.Labels, probabilities)
	if logloss > 0.3 {
		t.Fatalf("logloss = %.4f, want below 0.3 on separable data", logloss)
	}
}

func TestLogitThreeClasses(t *testing.T) {
	features := makeDense(t, 9, 3, []float64{
		1, -4.0, 0.1,
		1, -3.5, -0.2,
		1, -3.0, 0.0,
		1, 0.2, 4.0,
		1, -0.1, 3.5,
		1, 0.0, 3.0,
		1, 4.0, -0.1,
		1, 3.5, 0.2,
		1, 3.0, 0.0,
	})
	labels := []int{0, 0, 0, 1, 1, 1, 2, 2, 2}
	matrix, err := NewSMatrix(features, labels)
	if err != nil {
		t.Fatalf("matrix: %v", err)
	}

	clf := NewLogitClassifier(15, 1e-3)
	if err := clf.Fit(matrix); err != nil {
		t.Fatalf("fit: %v", err)
	}

	probabilities, err := clf.PredictProba(matrix.Features)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if accuracy := Accuracy(matrix.Labels, probabilities); accuracy != 1.0 {
		t.Fatalf("accuracy = %.4f, want 1.0", accuracy)
	}
}

func TestLogitUnfittedPredictFails(t *testing.T) {
	clf := NewLogitClassifier(10, 1e-3)
	if _, err := clf.PredictProba(makeDense(t, 1, 2, []float64{1, 0})); err == nil {
		t.Fatalf("expected an error from an unfitted model")
	}
}

func TestLogitFeatureWidthMismatch(t *testing.T) {
	matrix := twoClusterMatrix(t)
	clf := NewLogitClassifier(10, 1e-3)
	if err := clf.Fit(matrix); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if _, err := clf.PredictProba(makeDense(t, 1, 3, []float64{1, 0, 0})); err == nil {
		t.Fatalf("expected an error for a mismatched feature width")
	}
}
