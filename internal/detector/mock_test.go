package detector

import (
	"errors"
	"image"
	"testing"

	"github.com/MeKo-Tech/arsl/internal/landmarks"
	"github.com/MeKo-Tech/arsl/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_DefaultsToNoHand(t *testing.T) {
	m := NewMock()
	det, err := m.Detect(testutil.CreateHandImage(64, 48))
	require.NoError(t, err)
	assert.True(t, det.Empty())
	assert.Equal(t, 64, det.Width)
	assert.Equal(t, 48, det.Height)
	assert.Equal(t, 1, m.Calls())
}

func TestMock_ScriptedHands(t *testing.T) {
	m := NewMock()
	m.SetHands(testutil.OpenPalmHand())

	det, err := m.Detect(testutil.CreateHandImage(32, 32))
	require.NoError(t, err)
	hand, ok := det.First()
	require.True(t, ok)
	assert.Len(t, hand.Points, landmarks.NumLandmarks)
}

func TestMock_ErrorsAndClose(t *testing.T) {
	m := NewMock()
	_, err := m.Detect(nil)
	require.Error(t, err)

	boom := errors.New("boom")
	m.SetError(boom)
	_, err = m.Detect(testutil.CreateHandImage(8, 8))
	require.ErrorIs(t, err, boom)

	require.NoError(t, m.Close())
	assert.True(t, m.Closed())
	_, err = m.Detect(testutil.CreateHandImage(8, 8))
	require.ErrorIs(t, err, ErrClosed)
}

func TestMock_DetectFunc(t *testing.T) {
	m := NewMock()
	m.DetectFunc = func(img image.Image) (landmarks.Detection, error) {
		if testutil.ContainsColor(img, testutil.SkinTone) {
			return landmarks.Detection{Hands: []landmarks.Hand{testutil.OpenPalmHand()}}, nil
		}
		return landmarks.Detection{}, nil
	}

	det, err := m.Detect(testutil.CreateHandImage(64, 64))
	require.NoError(t, err)
	assert.False(t, det.Empty())

	det, err = m.Detect(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	assert.True(t, det.Empty())
}

func TestMock_ImplementsDetector(t *testing.T) {
	var _ Detector = NewMock()
	var _ Detector = (*HandDetector)(nil)
}
