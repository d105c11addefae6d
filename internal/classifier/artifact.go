package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/MeKo-Tech/arsl/internal/utils"
)

// ArtifactVersion is the current artifact format version.
const ArtifactVersion = 1

var (
	// ErrArtifactNotFound is returned when the artifact file does not exist.
	ErrArtifactNotFound = errors.New("classifier artifact not found")
	// ErrIncompatibleArtifact is returned when an artifact cannot serve the current feature layout.
	ErrIncompatibleArtifact = errors.New("incompatible classifier artifact")
)

// Metadata describes a persisted model.
type Metadata struct {
	FormatVersion int       `json:"format_version"`
	Algorithm     string    `json:"algorithm"`
	FeatureWidth  int       `json:"feature_width"`
	Classes       []string  `json:"classes"`
	CreatedAt     time.Time `json:"created_at"`
	Params        Options   `json:"params"`
}

type artifactFile struct {
	Metadata
	Model json.RawMessage `json:"model"`
}

type stateful interface {
	state() any
}

// SaveArtifact writes m to path, replacing any existing file.
func SaveArtifact(path string, m Model, opts Options) error {
	s, ok := m.(stateful)
	if !ok {
		return fmt.Errorf("model %T cannot be persisted", m)
	}
	raw, err := json.Marshal(s.state())
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	opts.Algorithm = m.Algorithm()
	file := artifactFile{
		Metadata: Metadata{
			FormatVersion: ArtifactVersion,
			Algorithm:     m.Algorithm(),
			FeatureWidth:  m.FeatureWidth(),
			Classes:       m.Classes(),
			CreatedAt:     time.Now().UTC(),
			Params:        opts,
		},
		Model: raw,
	}

	err = utils.WriteFileAtomic(path, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(file)
	})
	if err != nil {
		return fmt.Errorf("failed to write classifier artifact: %w", err)
	}
	slog.Debug("Saved classifier artifact", "path", path, "algorithm", m.Algorithm(), "classes", len(file.Classes))
	return nil
}

// LoadArtifact reads a model from path and checks it was trained on vectors
// of width featureWidth.
func LoadArtifact(path string, featureWidth int) (Model, Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Metadata{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, Metadata{}, fmt.Errorf("failed to open classifier artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	var file artifactFile
	if err := json.NewDecoder(f).Decode(&file); err != nil {
		return nil, Metadata{}, fmt.Errorf("%w: %w", ErrIncompatibleArtifact, err)
	}
	meta := file.Metadata

	if meta.FormatVersion != ArtifactVersion {
		return nil, meta, fmt.Errorf("%w: format version %d, want %d",
			ErrIncompatibleArtifact, meta.FormatVersion, ArtifactVersion)
	}
	if meta.FeatureWidth != featureWidth {
		return nil, meta, fmt.Errorf("%w: feature width %d, want %d",
			ErrIncompatibleArtifact, meta.FeatureWidth, featureWidth)
	}
	if len(meta.Classes) == 0 {
		return nil, meta, fmt.Errorf("%w: no classes", ErrIncompatibleArtifact)
	}
	if !slices.IsSorted(meta.Classes) || len(slices.Compact(slices.Clone(meta.Classes))) != len(meta.Classes) {
		return nil, meta, fmt.Errorf("%w: class list must be sorted and unique", ErrIncompatibleArtifact)
	}

	var m Model
	switch meta.Algorithm {
	case AlgorithmRandomForest:
		var s forestState
		if err := json.Unmarshal(file.Model, &s); err != nil {
			return nil, meta, fmt.Errorf("%w: %w", ErrIncompatibleArtifact, err)
		}
		m, err = restoreForest(s, meta)
	case AlgorithmKNN:
		var s knnState
		if err := json.Unmarshal(file.Model, &s); err != nil {
			return nil, meta, fmt.Errorf("%w: %w", ErrIncompatibleArtifact, err)
		}
		m, err = restoreKNN(s, meta)
	default:
		return nil, meta, fmt.Errorf("%w: %w: %q", ErrIncompatibleArtifact, ErrUnknownAlgorithm, meta.Algorithm)
	}
	if err != nil {
		return nil, meta, err
	}

	slog.Debug("Loaded classifier artifact", "path", path, "algorithm", meta.Algorithm,
		"classes", len(meta.Classes), "created_at", meta.CreatedAt)
	return m, meta, nil
}
