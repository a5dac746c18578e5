package sal

import (
	"log"
	"sort"

	"gonum.org/v1/gonum/mat"
)

//HandleError interrupts the program when err is not nil.
func HandleError(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

//Height returns the number of rows of a dense matrix.
func Height(m *mat.Dense) int {
	h, _ := m.Dims()
	return h
}

//columnArgsort returns indices that sort the given column vector in ascending order.
//The sort is stable so records with equal feature values keep their original order.
func columnArgsort(column mat.Vector) []int {
	indices := make([]int, column.Len())
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return column.AtVec(indices[i]) < column.AtVec(indices[j])
	})
	return indices
}
