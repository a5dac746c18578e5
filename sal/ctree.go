package sal

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"gonum.org/v1/gonum/mat"
)

//TreeNode is a node of a classification tree. The tree is stored in an array.
//LeftIndex and RightIndex are equal to -1 when the current node is a leaf, otherwise
//they contain array indices of children. A leaf node contains LeafIndex that is an
//index of the LeafNodes array.
type TreeNode struct {
	TreeNodeId            int
	FeatureNumber         int
	Threshold             float64
	LeftIndex, RightIndex int // -1, -1 if it is a leaf
	LeafIndex             int // -1 if it is a non-leaf tree node
	NumberOfObjects       int
	CurrentImpurity       float64
}

//GraphDescription returns the description of a tree node for tree rendering as a graph
func (node TreeNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("#", node.NumberOfObjects))
	sb.WriteString(fmt.Sprintln("id: ", node.TreeNodeId))
	sb.WriteString(fmt.Sprintln("gini: ", node.CurrentImpurity))
	sb.WriteString(fmt.Sprintf("f_%d < %6.5f", node.FeatureNumber, node.Threshold))
	return sb.String()
}

//IsLeaf returns whether this node is a LeafNode.
func (node TreeNode) IsLeaf() bool {
	return node.LeafIndex != -1
}

//LeafNode stores the class frequency distribution of the records that reached the leaf.
type LeafNode struct {
	LeafNodeId      int
	Probabilities   []float64
	NumberOfObjects int
}

//GraphDescription returns the description of a leaf node for tree rendering as a graph
func (node LeafNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("id: ", node.LeafNodeId))
	sb.WriteString("[")
	for _, val := range node.Probabilities {
		sb.WriteString(fmt.Sprintf("  %6.2f,\n", val))
	}
	sb.WriteString("]\n")
	sb.WriteString(fmt.Sprintln(node.NumberOfObjects))
	return sb.String()
}

//newLeafNode counts class frequencies of the records that ended up in the leaf.
func newLeafNode(matrix SMatrix) *LeafNode {
	counts := make([]float64, matrix.NumClasses)
	for _, label := range matrix.Labels {
		counts[label]++
	}
	total := float64(len(matrix.Labels))
	for q := range counts {
		counts[q] /= total
	}
	return &LeafNode{LeafNodeId: -1, Probabilities: counts, NumberOfObjects: len(matrix.Labels)}
}

//TreeParams collect the knobs of one classification tree.
type TreeParams struct {
	MaxDepth         int
	MinLeaf          int
	FeaturesPerSplit int // 0 means all features
}

//ClassTree describes one classification tree.
type ClassTree struct {
	NumClasses int
	TreeNodes  []TreeNode
	LeafNodes  []LeafNode
}

//giniSplit contains results of the split selection algorithm for one node.
type giniSplit struct {
	featureIndex    int
	threshold       float64
	bestValue       float64
	currentImpurity float64
	validSplit      bool
	numberOfObjects int
}

//NewClassTree builds one classification tree on the given dataset.
func NewClassTree(matrix SMatrix, params TreeParams, rng *rand.Rand) (ClassTree, error) {
	h, _ := matrix.validatedDimensions()
	if h == 0 {
		return ClassTree{}, fmt.Errorf("empty dataset")
	}
	minLeaf := params.MinLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}

	tree := ClassTree{NumClasses: matrix.NumClasses, TreeNodes: make([]TreeNode, 0), LeafNodes: make([]LeafNode, 0)}
	tree.buildTree(matrix, params, minLeaf, 0, rng)
	return tree, nil
}

//buildTree recurrently builds a tree node and returns its array index.
func (tree *ClassTree) buildTree(matrix SMatrix, params TreeParams, minLeaf, currentDepth int, rng *rand.Rand) int {
	h, _ := matrix.Features.Dims()

	if currentDepth < params.MaxDepth && h >= 2*minLeaf && !isPure(matrix.Labels) {
		bestSplit := theBestGiniSplit(matrix, params.FeaturesPerSplit, minLeaf, rng)
		if bestSplit != nil {
			treeNodeId := len(tree.TreeNodes)
			tree.TreeNodes = append(tree.TreeNodes, TreeNode{
				TreeNodeId:      treeNodeId,
				FeatureNumber:   bestSplit.featureIndex,
				Threshold:       bestSplit.threshold,
				LeftIndex:       -1,
				RightIndex:      -1,
				LeafIndex:       -1,
				NumberOfObjects: bestSplit.numberOfObjects,
				CurrentImpurity: bestSplit.currentImpurity,
			})

			leftMatrix, rightMatrix := splitByThreshold(matrix, bestSplit.featureIndex, bestSplit.threshold)

			leftNodeId := tree.buildTree(leftMatrix, params, minLeaf, currentDepth+1, rng)
			tree.TreeNodes[treeNodeId].LeftIndex = leftNodeId

			rightNodeId := tree.buildTree(rightMatrix, params, minLeaf, currentDepth+1, rng)
			tree.TreeNodes[treeNodeId].RightIndex = rightNodeId

			return treeNodeId
		}
	}

	treeNodeId := len(tree.TreeNodes)
	tree.TreeNodes = append(tree.TreeNodes, TreeNode{TreeNodeId: treeNodeId, LeftIndex: -1, RightIndex: -1, LeafIndex: -1, NumberOfObjects: h})

	leafInfo := newLeafNode(matrix)
	leafNodeId := len(tree.LeafNodes)
	leafInfo.LeafNodeId = leafNodeId
	tree.TreeNodes[treeNodeId].LeafIndex = leafNodeId
	tree.LeafNodes = append(tree.LeafNodes, *leafInfo)
	return treeNodeId
}

//isPure reports whether all labels belong to one class.
func isPure(labels []int) bool {
	for _, label := range labels {
		if label != labels[0] {
			return false
		}
	}
	return true
}

//splitByThreshold cuts the dataset into records below and at-or-above the threshold
//of the chosen feature.
func splitByThreshold(matrix SMatrix, featureIndex int, threshold float64) (SMatrix, SMatrix) {
	h, _ := matrix.Features.Dims()
	leftIndices, rightIndices := make([]int, 0), make([]int, 0)
	for p := 0; p < h; p++ {
		if matrix.Features.At(p, featureIndex) < threshold {
			leftIndices = append(leftIndices, p)
		} else {
			rightIndices = append(rightIndices, p)
		}
	}
	return matrix.TakeRows(leftIndices), matrix.TakeRows(rightIndices)
}

//theBestGiniSplit scans candidate features and selects the threshold with the lowest
//weighted gini impurity. Thresholds are placed only between distinct feature values.
//When featuresPerSplit is positive, a random feature subset of that size is scanned.
func theBestGiniSplit(matrix SMatrix, featuresPerSplit, minLeaf int, rng *rand.Rand) *giniSplit {
	h, w := matrix.Features.Dims()

	candidates := make([]int, w)
	for q := 0; q < w; q++ {
		candidates[q] = q
	}
	if featuresPerSplit > 0 && featuresPerSplit < w {
		rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
		candidates = candidates[:featuresPerSplit]
	}

	rootCounts := make([]float64, matrix.NumClasses)
	for _, label := range matrix.Labels {
		rootCounts[label]++
	}

	best := giniSplit{currentImpurity: giniOf(rootCounts, float64(h)), numberOfObjects: h}
	firstTime := true

	leftCounts := make([]float64, matrix.NumClasses)
	rightCounts := make([]float64, matrix.NumClasses)

	for _, q := range candidates {
		featuresAs := columnArgsort(matrix.Features.ColView(q))

		for ind := range leftCounts {
			leftCounts[ind] = 0
			rightCounts[ind] = rootCounts[ind]
		}

		for hInd := 0; hInd < h-1; hInd++ {
			label := matrix.Labels[featuresAs[hInd]]
			leftCounts[label]++
			rightCounts[label]--

			leftSize := hInd + 1
			rightSize := h - leftSize
			if leftSize < minLeaf || rightSize < minLeaf {
				continue
			}
			if matrix.Features.At(featuresAs[hInd], q) == matrix.Features.At(featuresAs[hInd+1], q) {
				continue
			}

			currentValue := (float64(leftSize)*giniOf(leftCounts, float64(leftSize)) +
				float64(rightSize)*giniOf(rightCounts, float64(rightSize))) / float64(h)
			if firstTime || best.bestValue > currentValue {
				firstTime = false
				best.bestValue = currentValue
				best.featureIndex = q
				best.threshold = (matrix.Features.At(featuresAs[hInd], q) + matrix.Features.At(featuresAs[hInd+1], q)) / 2
				best.validSplit = true
			}
		}
	}

	if firstTime {
		return nil
	}
	return &best
}

//giniOf computes the gini impurity of one side of a split.
func giniOf(counts []float64, total float64) float64 {
	impurity := 1.0
	for _, count := range counts {
		share := count / total
		impurity -= share * share
	}
	return impurity
}

//PredictProba walks every record down the tree and emits the leaf distribution.
func (tree ClassTree) PredictProba(features *mat.Dense) (*mat.Dense, error) {
	if len(tree.TreeNodes) == 0 {
		return nil, fmt.Errorf("the tree is not fitted")
	}
	h, _ := features.Dims()
	probabilities := mat.NewDense(h, tree.NumClasses, nil)

	for p := 0; p < h; p++ {
		ind := 0
		for tree.TreeNodes[ind].LeafIndex == -1 {
			if features.At(p, tree.TreeNodes[ind].FeatureNumber) < tree.TreeNodes[ind].Threshold {
				ind = tree.TreeNodes[ind].LeftIndex
			} else {
				ind = tree.TreeNodes[ind].RightIndex
			}
		}
		probabilities.SetRow(p, tree.LeafNodes[tree.TreeNodes[ind].LeafIndex].Probabilities)
	}

	return probabilities, nil
}

//GetLeafDescription returns the description of a leaf node
func (tree ClassTree) GetLeafDescription(ind int) string {
	return tree.LeafNodes[tree.TreeNodes[ind].LeafIndex].GraphDescription()
}

//GetNodeDescription returns the description of a tree node
func (tree ClassTree) GetNodeDescription(ind int) string {
	return tree.TreeNodes[ind].GraphDescription()
}

func recurrentDraw(g *cgraph.Graph, tree ClassTree, nodeNumber int, parentNode *cgraph.Node) {
	currentNode, err := g.CreateNode(fmt.Sprint(tree.TreeNodes[nodeNumber].TreeNodeId))
	HandleError(err)

	if parentNode != nil {
		g.CreateEdge("", parentNode, currentNode)
	}

	if tree.TreeNodes[nodeNumber].IsLeaf() {
		currentNode.Set("label", tree.GetLeafDescription(nodeNumber))
		currentNode.Set("shape", "box")
	} else {
		currentNode.Set("label", tree.GetNodeDescription(nodeNumber))
		recurrentDraw(g, tree, tree.TreeNodes[nodeNumber].LeftIndex, currentNode)
		recurrentDraw(g, tree, tree.TreeNodes[nodeNumber].RightIndex, currentNode)
	}
}

func (tree ClassTree) DrawGraph() (*graphviz.Graphviz, *cgraph.Graph) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	HandleError(err)

	recurrentDraw(graph, tree, 0, nil)

	return graphViz, graph
}
