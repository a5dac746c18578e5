package sal

import (
	"fmt"
	"log"
	"math"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

//SMatrix contains a supervised dataset: a feature matrix and an integer class label per record.
type SMatrix struct {
	Features    *mat.Dense
	Labels      []int
	NumClasses  int
	RecordIds   []int
	Description *string
}

//Sets a description for an SMatrix object
func (smatrix *SMatrix) SetDescription(description string) {
	smatrix.Description = &description
}

//NewSMatrix assembles a dataset from a feature matrix and a label vector and
//validates their consistency. NumClasses is derived from the largest label.
func NewSMatrix(features *mat.Dense, labels []int) (SMatrix, error) {
	if features == nil {
		return SMatrix{}, fmt.Errorf("nil feature matrix")
	}
	h, _ := features.Dims()
	if h == 0 {
		return SMatrix{}, fmt.Errorf("empty feature matrix")
	}
	if len(labels) != h {
		return SMatrix{}, fmt.Errorf("feature height %d does not match label length %d", h, len(labels))
	}

	numClasses := 0
	for i, label := range labels {
		if label < 0 {
			return SMatrix{}, fmt.Errorf("negative label %d at record %d", label, i)
		}
		if label+1 > numClasses {
			numClasses = label + 1
		}
	}

	recordIds := make([]int, h)
	for p := 0; p < h; p++ {
		recordIds[p] = p
	}

	return SMatrix{Features: features, Labels: labels, NumClasses: numClasses, RecordIds: recordIds}, nil
}

//ReadSMatrix reads the two components of a dataset and unites them into one SMatrix object.
//Labels are stored as a float column in npy format and converted to integers here.
func ReadSMatrix(fileNameFeatures, fileNameLabels string) (SMatrix, error) {
	log.Print("\ttry to load features <", fileNameFeatures, ">")
	features, err := ReadNpy(fileNameFeatures)
	if err != nil {
		return SMatrix{}, err
	}
	log.Print("\ttry to load labels <", fileNameLabels, ">")
	labelColumn, err := ReadNpy(fileNameLabels)
	if err != nil {
		return SMatrix{}, err
	}

	labelH, labelW := labelColumn.Dims()
	if labelW != 1 {
		return SMatrix{}, fmt.Errorf("the width of the label column should be 1 not %d", labelW)
	}
	labels := make([]int, labelH)
	for p := 0; p < labelH; p++ {
		raw := labelColumn.At(p, 0)
		label := int(math.Round(raw))
		if math.Abs(raw-float64(label)) > 1e-9 {
			return SMatrix{}, fmt.Errorf("non integral label %v at record %d", raw, p)
		}
		labels[p] = label
	}

	return NewSMatrix(features, labels)
}

//ReadNpy reads the content of an npy file into a dense matrix.
func ReadNpy(fileName string) (*mat.Dense, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer func() { HandleError(f.Close()) }()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, err
	}

	denseMat := &mat.Dense{}
	if err = r.Read(denseMat); err != nil {
		return nil, err
	}
	return denseMat, nil
}

//WriteNpy writes a dense matrix into an npy file.
func WriteNpy(fileName string, m *mat.Dense) error {
	dst, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer func() { HandleError(dst.Close()) }()
	return npyio.Write(dst, m)
}

//TakeRows materializes the subset of the dataset addressed by the given record indices.
func (smatrix SMatrix) TakeRows(indices []int) SMatrix {
	_, w := smatrix.Features.Dims()

	features := mat.NewDense(len(indices), w, nil)
	labels := make([]int, len(indices))
	recordIds := make([]int, len(indices))

	for p, ind := range indices {
		for q := 0; q < w; q++ {
			features.Set(p, q, smatrix.Features.At(ind, q))
		}
		labels[p] = smatrix.Labels[ind]
		recordIds[p] = smatrix.RecordIds[ind]
	}

	return SMatrix{Features: features, Labels: labels, NumClasses: smatrix.NumClasses, RecordIds: recordIds}
}

//validatedDimensions checks the consistency of the dataset and returns the height
//(the number of records) and the width (the number of features).
func (smatrix SMatrix) validatedDimensions() (h, w int) {
	h, w = smatrix.Features.Dims()
	if len(smatrix.Labels) != h {
		log.Panicf("the label length %d is not equal to the feature height %d", len(smatrix.Labels), h)
	}
	for _, label := range smatrix.Labels {
		if label < 0 || label >= smatrix.NumClasses {
			log.Panicf("label %d is out of the range of %d classes", label, smatrix.NumClasses)
		}
	}
	return h, w
}
