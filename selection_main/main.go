package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/tarstars/selection_analysis/sal"
)

func decodeConfig(srcConfig string, out interface{}) {
	file, err := os.Open(srcConfig)
	sal.HandleError(err)
	defer func() { sal.HandleError(file.Close()) }()

	decoder := json.NewDecoder(file)
	sal.HandleError(decoder.Decode(out))
}

type ForestConfig struct {
	NumTrees         int   `json:"num_trees"`
	MaxDepth         int   `json:"max_depth"`
	MinLeaf          int   `json:"min_leaf"`
	FeaturesPerSplit int   `json:"features_per_split"`
	Seed             int64 `json:"seed"`
	ThreadsNum       int   `json:"threads_num"`
}

func (config ForestConfig) params() sal.ForestParams {
	return sal.ForestParams{
		NumTrees:         config.NumTrees,
		MaxDepth:         config.MaxDepth,
		MinLeaf:          config.MinLeaf,
		FeaturesPerSplit: config.FeaturesPerSplit,
		Seed:             config.Seed,
		ThreadsNum:       config.ThreadsNum,
	}
}

type OosConfig struct {
	FeaturesFileName      string       `json:"filename_features"`
	LabelsFileName        string       `json:"filename_labels"`
	ProbabilitiesFileName string       `json:"filename_probabilities"`
	Classifier            string       `json:"classifier"`
	NumFolds              int          `json:"num_folds"`
	Stratified            bool         `json:"stratified"`
	Seed                  int64        `json:"seed"`
	ThreadsNum            int          `json:"threads_num"`
	NewtonIterations      int          `json:"newton_iterations"`
	RegLambda             float64      `json:"reg_lambda"`
	Forest                ForestConfig `json:"forest"`
}

func oos(srcConfig string) {
	var oosConfig OosConfig
	decodeConfig(srcConfig, &oosConfig)

	matrix, err := sal.ReadSMatrix(oosConfig.FeaturesFileName, oosConfig.LabelsFileName)
	sal.HandleError(err)

	var newClassifier func() sal.Classifier
	switch oosConfig.Classifier {
	case "logit":
		newClassifier = func() sal.Classifier {
			return sal.NewLogitClassifier(oosConfig.NewtonIterations, oosConfig.RegLambda)
		}
	case "forest":
		newClassifier = func() sal.Classifier {
			return sal.NewForestClassifier(oosConfig.Forest.params())
		}
	default:
		log.Fatal("unknown classifier kind ", oosConfig.Classifier)
	}

	probabilities, err := sal.EstimateOutOfSample(sal.OutOfSampleParams{
		Matrix:        matrix,
		NewClassifier: newClassifier,
		NumFolds:      oosConfig.NumFolds,
		Stratified:    oosConfig.Stratified,
		Seed:          oosConfig.Seed,
		ThreadsNum:    oosConfig.ThreadsNum,
	})
	sal.HandleError(err)

	log.Print("out of sample logloss = ", sal.Logloss(matrix.Labels, probabilities))
	log.Print("out of sample accuracy = ", sal.Accuracy(matrix.Labels, probabilities))

	sal.HandleError(sal.WriteNpy(oosConfig.ProbabilitiesFileName, probabilities))
}

type IntervalsConfig struct {
	EventsFileName    string   `json:"filename_events"`
	Categories        []string `json:"categories"`
	SnapshotFileName  string   `json:"filename_snapshots"`
	IntervalsFileName string   `json:"filename_intervals"`
	TargetCategory    string   `json:"target_category"`
	WeightsFileName   string   `json:"filename_weights"`
}

func intervals(srcConfig string) {
	var intervalsConfig IntervalsConfig
	decodeConfig(srcConfig, &intervalsConfig)

	var events []string
	decodeConfig(intervalsConfig.EventsFileName, &events)

	catalog := sal.NewCatalog(intervalsConfig.Categories)

	intervalEvents, err := sal.BuildIntervals(events, catalog)
	sal.HandleError(err)

	if intervalsConfig.IntervalsFileName != "" {
		dest, err := os.Create(intervalsConfig.IntervalsFileName)
		sal.HandleError(err)
		defer func() { sal.HandleError(dest.Close()) }()

		eventsByteRepr, err := json.MarshalIndent(intervalEvents, "", "  ")
		sal.HandleError(err)
		_, err = dest.Write(eventsByteRepr)
		sal.HandleError(err)
	}

	if intervalsConfig.SnapshotFileName != "" {
		snapshots, err := sal.BuildSnapshotMatrix(events, catalog)
		sal.HandleError(err)
		sal.HandleError(sal.WriteNpy(intervalsConfig.SnapshotFileName, snapshots))
	}

	if intervalsConfig.TargetCategory != "" {
		predictors, responses, err := sal.IntervalRegressionTable(events, catalog, intervalsConfig.TargetCategory)
		sal.HandleError(err)
		weights, err := sal.FitLeastSquares(predictors, responses)
		sal.HandleError(err)
		log.Print("interval regression weights for ", intervalsConfig.TargetCategory, " = ", weights)

		if intervalsConfig.WeightsFileName != "" {
			weightsByteRepr, err := json.MarshalIndent(weights, "", "  ")
			sal.HandleError(err)
			sal.HandleError(os.WriteFile(intervalsConfig.WeightsFileName, weightsByteRepr, 0o644))
		}
	}
}

type TrainConfig struct {
	FeaturesFileName string       `json:"filename_features"`
	LabelsFileName   string       `json:"filename_labels"`
	ModelFileName    string       `json:"filename_model"`
	Forest           ForestConfig `json:"forest"`
}

func train(srcConfig string) {
	var trainConfig TrainConfig
	decodeConfig(srcConfig, &trainConfig)

	matrix, err := sal.ReadSMatrix(trainConfig.FeaturesFileName, trainConfig.LabelsFileName)
	sal.HandleError(err)

	clf := sal.NewForestClassifier(trainConfig.Forest.params())
	sal.HandleError(clf.Fit(matrix))

	probabilities, err := clf.PredictProba(matrix.Features)
	sal.HandleError(err)
	log.Print("train logloss = ", sal.Logloss(matrix.Labels, probabilities))
	log.Print("train accuracy = ", sal.Accuracy(matrix.Labels, probabilities))

	sal.HandleError(clf.Save(trainConfig.ModelFileName))
}

type PredictConfig struct {
	FeaturesFileName      string `json:"filename_features"`
	ModelFileName         string `json:"filename_model"`
	ProbabilitiesFileName string `json:"filename_probabilities"`
}

func predict(srcConfig string) {
	var predictConfig PredictConfig
	decodeConfig(srcConfig, &predictConfig)

	features, err := sal.ReadNpy(predictConfig.FeaturesFileName)
	sal.HandleError(err)

	clf, err := sal.LoadForest(predictConfig.ModelFileName)
	sal.HandleError(err)

	probabilities, err := clf.PredictProba(features)
	sal.HandleError(err)

	sal.HandleError(sal.WriteNpy(predictConfig.ProbabilitiesFileName, probabilities))
}

type GraphConfig struct {
	ModelFileName     string `json:"filename_model"`
	FigureType        string `json:"figure_type"`
	PicturesDirectory string `json:"pictures_directory"`
	DumpPrefix        string `json:"dump_prefix"`
}

func graph(srcConfig string) {
	var graphConfig GraphConfig
	decodeConfig(srcConfig, &graphConfig)

	clf, err := sal.LoadForest(graphConfig.ModelFileName)
	sal.HandleError(err)
	sal.HandleError(clf.RenderTrees(graphConfig.DumpPrefix, graphConfig.FigureType, graphConfig.PicturesDirectory))
}

func main() {
	runMode := flag.String("mode", "oos", "you can select either 'oos', 'intervals', 'train', 'predict' or 'graph' modes")
	config := flag.String("config", "selection_config.json", "a config file for the run of the program")
	memprofile := flag.String("memprofile", "", "write memory profile to `file`")

	flag.Parse()

	modeFunc, known := map[string]func(string){
		"oos":       oos,
		"intervals": intervals,
		"train":     train,
		"predict":   predict,
		"graph":     graph,
	}[*runMode]
	if !known {
		log.Fatal("unknown mode ", *runMode)
	}
	modeFunc(*config)

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		sal.HandleError(err)
		defer func() { sal.HandleError(f.Close()) }()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal("could not write memory profile: ", err)
		}
	}
}
