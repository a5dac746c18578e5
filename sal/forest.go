package sal

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path"

	"github.com/goccy/go-graphviz"
	"gonum.org/v1/gonum/mat"
)

//ForestParams collect arguments required to construct a forest.
type ForestParams struct {
	NumTrees         int
	MaxDepth         int
	MinLeaf          int
	FeaturesPerSplit int
	Seed             int64
	ThreadsNum       int
}

//ForestClassifier is a bagged ensemble of classification trees. Every tree is grown
//on a bootstrap sample of the dataset with a random feature subset per split; the
//forest probability is the average of the per tree leaf distributions.
type ForestClassifier struct {
	Params     ForestParams
	NumClasses int
	Trees      []ClassTree
}

//NewForestClassifier creates an untrained forest.
func NewForestClassifier(params ForestParams) *ForestClassifier {
	return &ForestClassifier{Params: params}
}

//TaskTrainTree grows one tree of the forest on its own bootstrap sample.
type TaskTrainTree struct {
	matrix    SMatrix
	params    ForestParams
	seed      int64
	tree      *ClassTree
	treeError *error
}

func (task *TaskTrainTree) Run() {
	rng := rand.New(rand.NewSource(task.seed))
	sample := task.matrix.TakeRows(bootstrapIndices(Height(task.matrix.Features), rng))
	tree, err := NewClassTree(sample, TreeParams{
		MaxDepth:         task.params.MaxDepth,
		MinLeaf:          task.params.MinLeaf,
		FeaturesPerSplit: task.params.FeaturesPerSplit,
	}, rng)
	*task.tree = tree
	*task.treeError = err
}

//bootstrapIndices draws n record indices with replacement.
func bootstrapIndices(n int, rng *rand.Rand) []int {
	indices := make([]int, n)
	for p := 0; p < n; p++ {
		indices[p] = rng.Intn(n)
	}
	return indices
}

//Fit grows the configured number of trees. Per tree seeds are drawn up front from the
//forest seed, so the result does not depend on worker scheduling.
func (clf *ForestClassifier) Fit(matrix SMatrix) error {
	if clf.Params.NumTrees <= 0 {
		return fmt.Errorf("the number of trees should be positive not %d", clf.Params.NumTrees)
	}
	matrix.validatedDimensions()
	if matrix.NumClasses < 2 {
		return fmt.Errorf("the dataset should contain at least 2 classes not %d", matrix.NumClasses)
	}

	seedSource := rand.New(rand.NewSource(clf.Params.Seed))
	seeds := make([]int64, clf.Params.NumTrees)
	for t := range seeds {
		seeds[t] = seedSource.Int63()
	}

	clf.NumClasses = matrix.NumClasses
	clf.Trees = make([]ClassTree, clf.Params.NumTrees)
	treeErrors := make([]error, clf.Params.NumTrees)

	if clf.Params.ThreadsNum <= 1 {
		for t := 0; t < clf.Params.NumTrees; t++ {
			task := TaskTrainTree{matrix: matrix, params: clf.Params, seed: seeds[t], tree: &clf.Trees[t], treeError: &treeErrors[t]}
			task.Run()
		}
	} else {
		taskPool := NewPool(clf.Params.ThreadsNum)
		for t := 0; t < clf.Params.NumTrees; t++ {
			taskPool.AddTask(&TaskTrainTree{matrix: matrix, params: clf.Params, seed: seeds[t], tree: &clf.Trees[t], treeError: &treeErrors[t]})
		}
		taskPool.Close()
		taskPool.WaitAll()
	}

	for t, treeError := range treeErrors {
		if treeError != nil {
			return fmt.Errorf("tree %d: %w", t, treeError)
		}
	}
	return nil
}

//PredictProba averages the probability rows of all trees.
func (clf *ForestClassifier) PredictProba(features *mat.Dense) (*mat.Dense, error) {
	if len(clf.Trees) == 0 {
		return nil, fmt.Errorf("the forest is not fitted")
	}

	h, _ := features.Dims()
	probabilities := mat.NewDense(h, clf.NumClasses, nil)
	for _, tree := range clf.Trees {
		treeProbabilities, err := tree.PredictProba(features)
		if err != nil {
			return nil, err
		}
		probabilities.Add(probabilities, treeProbabilities)
	}
	probabilities.Scale(1.0/float64(len(clf.Trees)), probabilities)
	return probabilities, nil
}

//Save serializes the forest into an indented json file.
func (clf *ForestClassifier) Save(filename string) error {
	dest, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { HandleError(dest.Close()) }()

	modelByteRepr, err := json.MarshalIndent(clf, "", "  ")
	if err != nil {
		return err
	}

	_, err = dest.Write(modelByteRepr)
	return err
}

//LoadForest reads a forest saved by Save.
func LoadForest(filename string) (*ForestClassifier, error) {
	source, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() { HandleError(source.Close()) }()

	clf := &ForestClassifier{}
	decoder := json.NewDecoder(source)
	if err = decoder.Decode(clf); err != nil {
		return nil, err
	}
	return clf, nil
}

//RenderTrees draws every tree of the forest into the pictures directory.
func (clf *ForestClassifier) RenderTrees(dumpPrefix, figureType, picturesDirectory string) error {
	graphvizType, known := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]
	if !known {
		return fmt.Errorf("unknown figure type %q", figureType)
	}

	for graphInd, currentTree := range clf.Trees {
		filename := fmt.Sprintf("%s_%05d.%s", dumpPrefix, graphInd, figureType)
		graphViz, graph := currentTree.DrawGraph()
		if err := graphViz.RenderFilename(graph, graphvizType, path.Join(picturesDirectory, filename)); err != nil {
			return err
		}
	}
	return nil
}
