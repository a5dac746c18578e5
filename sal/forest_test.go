package sal

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
)

//checkerboardMatrix builds a dataset a single axis-aligned split cannot separate.
func checkerboardMatrix(t *testing.T) SMatrix {
	t.Helper()
	features := makeDense(t, 12, 2, []float64{
		1, 1,
		1.2, 1.1,
		1.1, 0.9,
		4, 4,
		4.2, 4.1,
		3.9, 4.2,
		1, 4,
		1.1, 4.2,
		0.9, 3.9,
		4, 1,
		4.1, 1.2,
		4.2, 0.9,
	})
	labels := []int{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1}
	matrix, err := NewSMatrix(features, labels)
	if err != nil {
		t.Fatalf("matrix: %v", err)
	}
	return matrix
}

func TestClassTreePureLeaves(t *testing.T) {
	matrix := checkerboardMatrix(t)

	tree, err := NewClassTree(matrix, TreeParams{MaxDepth: 4, MinLeaf: 1}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("tree: %v", err)
	}

	probabilities, err := tree.PredictProba(matrix.Features)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for p, label := range matrix.Labels {
		if probabilities.At(p, label) != 1.0 {
			t.Fatalf("record %d got probability %.4f for its own class, want 1.0", p, probabilities.At(p, label))
		}
	}
}

func TestClassTreeThresholdBetweenDistinctValues(t *testing.T) {
	features := makeDense(t, 4, 1, []float64{1, 1, 3, 3})
	matrix, err := NewSMatrix(features, []int{0, 0, 1, 1})
	if err != nil {
		t.Fatalf("matrix: %v", err)
	}

	tree, err := NewClassTree(matrix, TreeParams{MaxDepth: 2, MinLeaf: 1}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	root := tree.TreeNodes[0]
	if root.IsLeaf() {
		t.Fatalf("the root should split the two value clusters")
	}
	if root.Threshold != 2.0 {
		t.Fatalf("root threshold = %v, want 2 (midpoint of 1 and 3)", root.Threshold)
	}
}

func TestForestFitAndPredict(t *testing.T) {
	matrix := checkerboardMatrix(t)

	clf := NewForestClassifier(ForestParams{NumTrees: 25, MaxDepth: 4, MinLeaf: 1, Seed: 9, ThreadsNum: 1})
	if err := clf.Fit(matrix); err != nil {
		t.Fatalf("fit: %v", err)
	}

	probabilities, err := clf.PredictProba(matrix.Features)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if accuracy := Accuracy(matrix.Labels, probabilities); accuracy < 0.9 {
		t.Fatalf("train accuracy = %.4f, want at least 0.9", accuracy)
	}
	for p := 0; p < Height(matrix.Features); p++ {
		rowSum := probabilities.At(p, 0) + probabilities.At(p, 1)
		if math.Abs(rowSum-1.0) > 1e-9 {
			t.Fatalf("row %d probabilities sum to %.6f, want 1", p, rowSum)
		}
	}
}

func TestForestParallelMatchesSerial(t *testing.T) {
	matrix := checkerboardMatrix(t)

	serial := NewForestClassifier(ForestParams{NumTrees: 10, MaxDepth: 4, MinLeaf: 1, Seed: 3, ThreadsNum: 1})
	if err := serial.Fit(matrix); err != nil {
		t.Fatalf("serial fit: %v", err)
	}
	parallel := NewForestClassifier(ForestParams{NumTrees: 10, MaxDepth: 4, MinLeaf: 1, Seed: 3, ThreadsNum: 4})
	if err := parallel.Fit(matrix); err != nil {
		t.Fatalf("parallel fit: %v", err)
	}

	serialProbabilities, err := serial.PredictProba(matrix.Features)
	if err != nil {
		t.Fatalf("serial predict: %v", err)
	}
	parallelProbabilities, err := parallel.PredictProba(matrix.Features)
	if err != nil {
		t.Fatalf("parallel predict: %v", err)
	}
	if !mat.EqualApprox(serialProbabilities, parallelProbabilities, 1e-12) {
		t.Fatalf("parallel forest differs from the serial one with the same seed")
	}
}

func TestForestSaveLoadRoundTrip(t *testing.T) {
	matrix := checkerboardMatrix(t)

	clf := NewForestClassifier(ForestParams{NumTrees: 5, MaxDepth: 3, MinLeaf: 1, Seed: 21, ThreadsNum: 1})
	if err := clf.Fit(matrix); err != nil {
		t.Fatalf("fit: %v", err)
	}

	modelPath := filepath.Join(t.TempDir(), "forest.json")
	if err := clf.Save(modelPath); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadForest(modelPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	original, err := clf.PredictProba(matrix.Features)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	restored, err := loaded.PredictProba(matrix.Features)
	if err != nil {
		t.Fatalf("predict after load: %v", err)
	}
	if !mat.EqualApprox(original, restored, 1e-12) {
		t.Fatalf("loaded forest predicts differently from the saved one")
	}
}

func TestForestInvalidParams(t *testing.T) {
	matrix := checkerboardMatrix(t)

	clf := NewForestClassifier(ForestParams{NumTrees: 0})
	if err := clf.Fit(matrix); err == nil {
		t.Fatalf("expected an error for zero trees")
	}

	unfitted := NewForestClassifier(ForestParams{NumTrees: 3})
	if _, err := unfitted.PredictProba(matrix.Features); err == nil {
		t.Fatalf("expected an error from an unfitted forest")
	}
}
