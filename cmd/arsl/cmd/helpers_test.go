package cmd

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/arsl/internal/classifier"
	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/MeKo-Tech/arsl/internal/features"
	"github.com/MeKo-Tech/arsl/internal/landmarks"
	"github.com/MeKo-Tech/arsl/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of c and its subcommands to its default.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// setupCommandTest isolates a command test from the caller's environment and
// from earlier executions of the shared command tree.
func setupCommandTest(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", dir)

	resetFlags(rootCmd)
	cfgFile = ""
	globalConfig = nil
	detectorFactory = skinFactory
	t.Cleanup(func() {
		resetFlags(rootCmd)
		detectorFactory = nil
		globalConfig = nil
	})
}

// executeCommand runs the root command with args and returns stdout and
// stderr separately.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// skinFactory builds mock detectors that find the open palm fixture in
// skin-coloured frames.
func skinFactory(detector.Config) detector.Factory {
	return func() (detector.Detector, error) {
		m := detector.NewMock()
		m.DetectFunc = func(img image.Image) (landmarks.Detection, error) {
			if testutil.ContainsColor(img, testutil.SkinTone) {
				return landmarks.Detection{Hands: []landmarks.Hand{testutil.OpenPalmHand()}}, nil
			}
			return landmarks.Detection{}, nil
		}
		return m, nil
	}
}

// writeArtifact saves a 1-NN classifier that maps the open palm fixture to
// class "3" and returns its path.
func writeArtifact(t *testing.T) string {
	t.Helper()
	palm, err := features.Extract(testutil.OpenPalmHand())
	require.NoError(t, err)
	other := make([]float64, features.Width)
	for i := range other {
		other[i] = 5
	}

	opts := classifier.DefaultOptions()
	opts.Algorithm = classifier.AlgorithmKNN
	opts.K = 1
	model, err := classifier.Fit(context.Background(), [][]float64{palm, other}, []string{"3", "7"}, opts)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "classifier.json")
	require.NoError(t, classifier.SaveArtifact(path, model, opts))
	return path
}

// writeFrames saves a hand frame and a blank frame and returns their paths.
func writeFrames(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	hand := filepath.Join(dir, "hand.png")
	blank := filepath.Join(dir, "blank.png")
	size := testutil.SmallSize
	testutil.SaveImage(t, testutil.CreateHandImage(size.Width, size.Height), hand)
	testutil.SaveImage(t, testutil.CreateTestImage(size.Width, size.Height, color.White), blank)
	return hand, blank
}
