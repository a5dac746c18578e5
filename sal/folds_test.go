package sal

import (
	"math/rand"
	"testing"
)

func TestMakeFoldsPartition(t *testing.T) {
	folds, err := MakeFolds(10, 5, rand.New(rand.NewSource(17)))
	if err != nil {
		t.Fatalf("folds: %v", err)
	}
	if len(folds) != 5 {
		t.Fatalf("got %d folds, want 5", len(folds))
	}

	covered := make([]int, 10)
	for f, fold := range folds {
		if len(fold.Test) != 2 {
			t.Fatalf("fold %d test size = %d, want 2", f, len(fold.Test))
		}
		if len(fold.Train) != 8 {
			t.Fatalf("fold %d train size = %d, want 8", f, len(fold.Train))
		}
		for _, ind := range fold.Test {
			covered[ind]++
		}
		inTest := map[int]bool{}
		for _, ind := range fold.Test {
			inTest[ind] = true
		}
		for _, ind := range fold.Train {
			if inTest[ind] {
				t.Fatalf("fold %d contains index %d in both train and test", f, ind)
			}
		}
	}
	for ind, count := range covered {
		if count != 1 {
			t.Fatalf("index %d appears in %d test folds, want exactly 1", ind, count)
		}
	}
}

func TestMakeFoldsUnevenSizes(t *testing.T) {
	folds, err := MakeFolds(10, 3, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("folds: %v", err)
	}
	sizes := []int{len(folds[0].Test), len(folds[1].Test), len(folds[2].Test)}
	expected := []int{4, 3, 3}
	for f := range sizes {
		if sizes[f] != expected[f] {
			t.Fatalf("fold %d test size = %d, want %d", f, sizes[f], expected[f])
		}
	}
}

func TestMakeFoldsReproducible(t *testing.T) {
	first, err := MakeFolds(23, 4, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("folds: %v", err)
	}
	second, err := MakeFolds(23, 4, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("folds: %v", err)
	}
	for f := range first {
		if len(first[f].Test) != len(second[f].Test) {
			t.Fatalf("fold %d sizes differ between runs", f)
		}
		for p := range first[f].Test {
			if first[f].Test[p] != second[f].Test[p] {
				t.Fatalf("fold %d differs between runs with the same seed", f)
			}
		}
	}
}

func TestMakeFoldsInvalidInput(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := MakeFolds(10, 0, rng); err == nil {
		t.Fatalf("expected an error for zero folds")
	}
	if _, err := MakeFolds(10, -2, rng); err == nil {
		t.Fatalf("expected an error for a negative fold count")
	}
	if _, err := MakeFolds(10, 1, rng); err == nil {
		t.Fatalf("expected an error for a single fold: its train set would be empty")
	}
	if _, err := MakeStratifiedFolds([]int{0, 1, 0, 1}, 1, rng); err == nil {
		t.Fatalf("expected an error for a single stratified fold")
	}
	if _, err := MakeFolds(0, 3, rng); err == nil {
		t.Fatalf("expected an error for an empty index set")
	}
	if _, err := MakeFolds(3, 5, rng); err == nil {
		t.Fatalf("expected an error for more folds than records")
	}
	if _, err := MakeFolds(10, 3, nil); err == nil {
		t.Fatalf("expected an error for a nil generator")
	}
}

func TestMakeStratifiedFoldsBalance(t *testing.T) {
	labels := []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}
	folds, err := MakeStratifiedFolds(labels, 5, rand.New(rand.NewSource(11)))
	if err != nil {
		t.Fatalf("folds: %v", err)
	}

	covered := make([]int, len(labels))
	for f, fold := range folds {
		zeros, ones := 0, 0
		for _, ind := range fold.Test {
			covered[ind]++
			if labels[ind] == 0 {
				zeros++
			} else {
				ones++
			}
		}
		if zeros != 1 || ones != 1 {
			t.Fatalf("fold %d holds %d zeros and %d ones, want 1 and 1", f, zeros, ones)
		}
	}
	for ind, count := range covered {
		if count != 1 {
			t.Fatalf("index %d appears in %d test folds, want exactly 1", ind, count)
		}
	}
}
