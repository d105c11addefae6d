package pipeline

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"

	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/MeKo-Tech/arsl/internal/features"
	"github.com/MeKo-Tech/arsl/internal/landmarks"
	"github.com/MeKo-Tech/arsl/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	handFrame  = testutil.CreateHandImage(32, 32)
	blankFrame = image.NewRGBA(image.Rect(0, 0, 32, 32))
)

// memoryLoader serves frames by path: "hand*" has a hand, "blank*" has none,
// "corrupt*" fails to load and "panic*" panics.
func memoryLoader(path string) (image.Image, error) {
	switch path[0] {
	case 'h':
		return handFrame, nil
	case 'b':
		return blankFrame, nil
	case 'p':
		panic("decoder crashed")
	default:
		return nil, errors.New("corrupt image")
	}
}

// skinFactory returns mock detectors finding a hand in skin-coloured frames.
func skinFactory(created *atomic.Int32, mocks chan<- *detector.Mock) detector.Factory {
	return func() (detector.Detector, error) {
		if created != nil {
			created.Add(1)
		}
		m := detector.NewMock()
		m.DetectFunc = func(img image.Image) (landmarks.Detection, error) {
			if testutil.ContainsColor(img, testutil.SkinTone) {
				return landmarks.Detection{Hands: []landmarks.Hand{testutil.OpenPalmHand()}}, nil
			}
			return landmarks.Detection{}, nil
		}
		if mocks != nil {
			mocks <- m
		}
		return m, nil
	}
}

func corpusTasks() []Task {
	return []Task{
		{Path: "hand-1", Label: "alef"},
		{Path: "blank-1", Label: "alef"},
		{Path: "hand-2", Label: "alef"},
		{Path: "hand-3", Label: "beh"},
		{Path: "corrupt-1", Label: "beh"},
		{Path: "panic-1", Label: "beh"},
		{Path: "hand-4", Label: "teh"},
	}
}

func TestExtractParallel_YieldAudit(t *testing.T) {
	tasks := corpusTasks()
	cfg := ParallelConfig{MaxWorkers: 3, Loader: memoryLoader}

	samples, stats, err := ExtractParallel(context.Background(), tasks, skinFactory(nil, nil), cfg)
	require.NoError(t, err)

	assert.Equal(t, 7, stats.Attempted)
	assert.Equal(t, 4, stats.Retained)
	assert.Equal(t, 1, stats.NoHand)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 3, stats.WorkerCount)
	require.Len(t, samples, stats.Retained)

	assert.Equal(t, ClassStats{Attempted: 3, Retained: 2, NoHand: 1}, stats.PerClass["alef"])
	assert.Equal(t, ClassStats{Attempted: 3, Retained: 1, Failed: 2}, stats.PerClass["beh"])
	assert.InDelta(t, 1.0, stats.PerClass["teh"].Yield(), 1e-9)

	want, err := features.Extract(testutil.OpenPalmHand())
	require.NoError(t, err)
	labels := make([]string, 0, len(samples))
	for _, s := range samples {
		assert.Len(t, s.Features, features.Width)
		assert.Equal(t, want, s.Features)
		labels = append(labels, s.Label)
	}
	// task order is preserved
	assert.Equal(t, []string{"alef", "alef", "beh", "teh"}, labels)
	assert.Equal(t, "hand-1", samples[0].Path)
}

func TestExtractParallel_OneDetectorPerWorker(t *testing.T) {
	var created atomic.Int32
	mocks := make(chan *detector.Mock, 8)
	tasks := make([]Task, 40)
	for i := range tasks {
		tasks[i] = Task{Path: "hand", Label: "x"}
	}

	_, stats, err := ExtractParallel(context.Background(), tasks, skinFactory(&created, mocks),
		ParallelConfig{MaxWorkers: 4, Loader: memoryLoader})
	require.NoError(t, err)
	close(mocks)

	assert.Equal(t, int32(4), created.Load())
	calls := 0
	for m := range mocks {
		assert.True(t, m.Closed(), "worker detectors are closed on exit")
		calls += m.Calls()
	}
	assert.Equal(t, 40, calls)
	assert.Equal(t, 40, stats.Retained)
}

func TestExtractParallel_WorkersCappedByTasks(t *testing.T) {
	var created atomic.Int32
	_, stats, err := ExtractParallel(context.Background(), []Task{{Path: "hand", Label: "a"}},
		skinFactory(&created, nil), ParallelConfig{MaxWorkers: 16, Loader: memoryLoader})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.WorkerCount)
	assert.Equal(t, int32(1), created.Load())
}

func TestExtractParallel_FactoryFailureAborts(t *testing.T) {
	var built atomic.Int32
	closed := make(chan *detector.Mock, 4)
	factory := func() (detector.Detector, error) {
		if built.Add(1) == 2 {
			return nil, errors.New("model missing")
		}
		m := detector.NewMock()
		closed <- m
		return m, nil
	}

	samples, _, err := ExtractParallel(context.Background(), corpusTasks(), factory,
		ParallelConfig{MaxWorkers: 3, Loader: memoryLoader})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model missing")
	assert.Nil(t, samples)

	close(closed)
	for m := range closed {
		assert.True(t, m.Closed())
		assert.Zero(t, m.Calls())
	}
}

func TestExtractParallel_DetectorErrorsAreDropped(t *testing.T) {
	factory := func() (detector.Detector, error) {
		m := detector.NewMock()
		m.SetError(errors.New("inference failed"))
		return m, nil
	}
	cb := &countingCallback{}

	samples, stats, err := ExtractParallel(context.Background(), corpusTasks()[:3], factory,
		ParallelConfig{MaxWorkers: 2, Loader: memoryLoader, ProgressCallback: cb})
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.Equal(t, 3, stats.Failed)
	assert.Equal(t, 3, cb.errors)
	assert.Equal(t, 3, cb.progress)
	assert.Equal(t, 1, cb.starts)
	assert.Equal(t, 1, cb.completes)
}

func TestExtractParallel_MalformedHandIsFailure(t *testing.T) {
	factory := func() (detector.Detector, error) {
		m := detector.NewMock()
		m.SetHands(landmarks.Hand{Points: make([]landmarks.Keypoint, 3)})
		return m, nil
	}
	_, stats, err := ExtractParallel(context.Background(), []Task{{Path: "hand", Label: "a"}}, factory,
		ParallelConfig{MaxWorkers: 1, Loader: memoryLoader})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
}

func TestExtractParallel_Errors(t *testing.T) {
	_, _, err := ExtractParallel(context.Background(), nil, skinFactory(nil, nil), DefaultParallelConfig())
	require.ErrorIs(t, err, ErrNoTasks)

	_, _, err = ExtractParallel(context.Background(), corpusTasks(), nil, DefaultParallelConfig())
	require.Error(t, err)
}

func TestExtractParallel_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := ExtractParallel(ctx, corpusTasks(), skinFactory(nil, nil),
		ParallelConfig{MaxWorkers: 2, Loader: memoryLoader})
	require.ErrorIs(t, err, context.Canceled)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "retained", OutcomeRetained.String())
	assert.Equal(t, "no_hand", OutcomeNoHand.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}

func TestDefaultParallelConfig(t *testing.T) {
	cfg := DefaultParallelConfig()
	assert.Positive(t, cfg.MaxWorkers)
	require.NotNil(t, cfg.Loader)

	_, err := cfg.Loader("does/not/exist.png")
	require.Error(t, err)
}
