package sal

import (
	"fmt"
	"math/rand"
)

//Fold determines one train/test partition of the record indices.
type Fold struct {
	Train []int
	Test  []int
}

//MakeFolds shuffles the indices 0..n-1 with the given generator and cuts them into
//numFolds folds whose sizes differ by at most one. Every index lands in exactly one
//test fold; the remaining indices form that fold's train set.
func MakeFolds(n, numFolds int, rng *rand.Rand) ([]Fold, error) {
	if numFolds < 2 {
		return nil, fmt.Errorf("the number of folds should be at least 2 not %d: a single fold leaves nothing to train on", numFolds)
	}
	if n <= 0 {
		return nil, fmt.Errorf("the number of records should be positive not %d", n)
	}
	if numFolds > n {
		return nil, fmt.Errorf("the number of folds %d exceeds the number of records %d", numFolds, n)
	}
	if rng == nil {
		return nil, fmt.Errorf("nil random generator")
	}

	order := rng.Perm(n)
	return cutIntoFolds(order, numFolds, n), nil
}

//MakeStratifiedFolds distributes each label's indices round-robin over the folds so
//the class proportions are approximately preserved. The generator shuffles within
//every label group and the fold assignment offset, keeping runs reproducible.
func MakeStratifiedFolds(labels []int, numFolds int, rng *rand.Rand) ([]Fold, error) {
	n := len(labels)
	if numFolds < 2 {
		return nil, fmt.Errorf("the number of folds should be at least 2 not %d: a single fold leaves nothing to train on", numFolds)
	}
	if n == 0 {
		return nil, fmt.Errorf("empty label vector")
	}
	if numFolds > n {
		return nil, fmt.Errorf("the number of folds %d exceeds the number of records %d", numFolds, n)
	}
	if rng == nil {
		return nil, fmt.Errorf("nil random generator")
	}

	byLabel := map[int][]int{}
	labelOrder := make([]int, 0)
	for ind, label := range labels {
		if _, seen := byLabel[label]; !seen {
			labelOrder = append(labelOrder, label)
		}
		byLabel[label] = append(byLabel[label], ind)
	}

	testSets := make([][]int, numFolds)
	next := rng.Intn(numFolds)
	for _, label := range labelOrder {
		group := byLabel[label]
		rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		for _, ind := range group {
			testSets[next] = append(testSets[next], ind)
			next = (next + 1) % numFolds
		}
	}

	folds := make([]Fold, numFolds)
	for f := 0; f < numFolds; f++ {
		folds[f].Test = testSets[f]
		folds[f].Train = complementOf(testSets[f], n)
	}
	return folds, nil
}

//cutIntoFolds slices a permutation of indices into numFolds contiguous chunks.
//The first n%numFolds folds receive one extra index.
func cutIntoFolds(order []int, numFolds, n int) []Fold {
	folds := make([]Fold, numFolds)
	base := n / numFolds
	extra := n % numFolds

	begin := 0
	for f := 0; f < numFolds; f++ {
		size := base
		if f < extra {
			size++
		}
		folds[f].Test = append([]int(nil), order[begin:begin+size]...)
		folds[f].Train = complementOf(folds[f].Test, n)
		begin += size
	}
	return folds
}

//complementOf returns all indices of 0..n-1 that are absent from the test set,
//in ascending order.
func complementOf(test []int, n int) []int {
	inTest := make([]bool, n)
	for _, ind := range test {
		inTest[ind] = true
	}
	train := make([]int, 0, n-len(test))
	for ind := 0; ind < n; ind++ {
		if !inTest[ind] {
			train = append(train, ind)
		}
	}
	return train
}
