package support

import (
	"context"
	"fmt"
	"image/color"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/arsl/internal/classifier"
	"github.com/MeKo-Tech/arsl/internal/dataset"
	"github.com/MeKo-Tech/arsl/internal/features"
	"github.com/MeKo-Tech/arsl/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

// aFeatureTable writes a separable feature table and registers it as
// {features}.
func (testCtx *TestContext) aFeatureTable(perClass int, classList string) error {
	classes := strings.Split(classList, ",")
	for i := range classes {
		classes[i] = strings.TrimSpace(classes[i])
	}

	x, y := testutil.ClusteredSamples(classes, perClass, features.Width, 11)
	table := dataset.New(features.Width)
	for i := range x {
		table.Add(x[i], y[i])
	}

	p := filepath.Join(testCtx.TempDir, "features.json")
	if err := dataset.Save(p, table); err != nil {
		return fmt.Errorf("failed to write feature table: %w", err)
	}
	testCtx.Paths["features"] = p
	return nil
}

// aClassifierMappingTheOpenPalmTo saves a 1-NN classifier that maps the
// open palm fixture to class and registers it as {classifier}.
func (testCtx *TestContext) aClassifierMappingTheOpenPalmTo(class string) error {
	model, err := palmClassifier(class)
	if err != nil {
		return err
	}
	p := filepath.Join(testCtx.TempDir, "classifier.json")
	if err := classifier.SaveArtifact(p, model, palmOptions()); err != nil {
		return fmt.Errorf("failed to save classifier: %w", err)
	}
	testCtx.Paths["classifier"] = p
	return nil
}

func palmOptions() classifier.Options {
	opts := classifier.DefaultOptions()
	opts.Algorithm = classifier.AlgorithmKNN
	opts.K = 1
	return opts
}

// palmClassifier fits a two-point classifier: the open palm maps to class,
// a far-away point maps to a different class.
func palmClassifier(class string) (classifier.Model, error) {
	palm, err := features.Extract(testutil.OpenPalmHand())
	if err != nil {
		return nil, err
	}
	other := make([]float64, features.Width)
	for i := range other {
		other[i] = 5
	}
	otherClass := "0"
	if class == otherClass {
		otherClass = "1"
	}
	return classifier.Fit(context.Background(), [][]float64{palm, other}, []string{class, otherClass}, palmOptions())
}

// aHandFrame writes a synthetic frame containing a hand and registers it
// under its base name.
func (testCtx *TestContext) aHandFrame(name string) error {
	size := testutil.SmallSize
	return testCtx.saveFrame(name, func() error {
		return imaging.Save(testutil.CreateHandImage(size.Width, size.Height), testCtx.path(name))
	})
}

// aBlankFrame writes a white frame without a hand.
func (testCtx *TestContext) aBlankFrame(name string) error {
	size := testutil.SmallSize
	return testCtx.saveFrame(name, func() error {
		return imaging.Save(testutil.CreateTestImage(size.Width, size.Height, color.White), testCtx.path(name))
	})
}

func (testCtx *TestContext) saveFrame(name string, save func() error) error {
	if err := save(); err != nil {
		return fmt.Errorf("failed to write frame %s: %w", name, err)
	}
	testCtx.Paths[strings.TrimSuffix(name, filepath.Ext(name))] = testCtx.path(name)
	return nil
}

// theReportShouldListClasses checks the per-class section of a JSON
// training report.
func (testCtx *TestContext) theReportShouldListClasses(count int) error {
	for i := range count {
		if err := testCtx.theJSONShouldContain("per_class." + strconv.Itoa(i)); err != nil {
			return err
		}
	}
	return nil
}

// RegisterDataSteps registers steps that generate input files.
func (testCtx *TestContext) RegisterDataSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a feature table with (\d+) samples for each of classes "([^"]*)"$`, testCtx.aFeatureTable)
	sc.Step(`^a classifier mapping the open palm to class "([^"]*)"$`, testCtx.aClassifierMappingTheOpenPalmTo)
	sc.Step(`^a hand frame "([^"]*)"$`, testCtx.aHandFrame)
	sc.Step(`^a blank frame "([^"]*)"$`, testCtx.aBlankFrame)
	sc.Step(`^the report should list (\d+) classes$`, testCtx.theReportShouldListClasses)
}
