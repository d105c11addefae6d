// Package models resolves the on-disk locations of the palm detection and
// hand landmark models and the classifier artifact.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model file names.
const (
	PalmDetection      = "palm_detection.onnx"
	HandLandmark       = "hand_landmark.onnx"
	ClassifierArtifact = "classifier.json"
)

// Model type categories for the organized directory structure.
const (
	TypeDetection  = "detection"
	TypeLandmark   = "landmark"
	TypeClassifier = "classifier"
)

// DefaultModelsDir is the models directory relative to the project root.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "ARSL_MODELS_DIR"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root (go.mod not found)")
}

// ModelInfo contains metadata about a model file.
type ModelInfo struct {
	Name        string
	Type        string
	Description string
	Filename    string
}

// GetModelsDir returns the models directory.
// Priority: 1. explicit modelsDir, 2. environment variable, 3. project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath resolves a filename to models/<type>/<filename> when that
// file exists, otherwise to the flat models/<filename>.
func ResolveModelPath(modelsDir, modelType, filename string) string {
	baseDir := GetModelsDir(modelsDir)
	if modelType != "" {
		organized := filepath.Join(baseDir, modelType, filename)
		if _, err := os.Stat(organized); err == nil {
			return organized
		}
	}
	return filepath.Join(baseDir, filename)
}

// GetPalmDetectionModelPath returns the path of the palm detection model.
func GetPalmDetectionModelPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeDetection, PalmDetection)
}

// GetHandLandmarkModelPath returns the path of the hand landmark model.
func GetHandLandmarkModelPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeLandmark, HandLandmark)
}

// GetClassifierPath returns the path of the classifier artifact.
func GetClassifierPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeClassifier, ClassifierArtifact)
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// ListAvailableModels returns the model files the application uses.
func ListAvailableModels() []ModelInfo {
	return []ModelInfo{
		{
			Name:        "palm-detection",
			Type:        TypeDetection,
			Description: "MediaPipe palm detector locating hands before landmarking",
			Filename:    PalmDetection,
		},
		{
			Name:        "hand-landmark",
			Type:        TypeLandmark,
			Description: "MediaPipe hand landmark network (21 keypoints)",
			Filename:    HandLandmark,
		},
		{
			Name:        "glyph-classifier",
			Type:        TypeClassifier,
			Description: "Glyph classifier trained on extracted features",
			Filename:    ClassifierArtifact,
		},
	}
}
