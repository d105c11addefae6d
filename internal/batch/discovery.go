package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MeKo-Tech/arsl/internal/pipeline"
	"golang.org/x/text/unicode/norm"
)

// ErrNoImages is returned when the corpus holds no sample files.
var ErrNoImages = errors.New("no image files found")

// discoverCorpus lists (file, label) tasks under root. Every directory
// directly under root is a class named after the directory; every regular
// file directly inside it is a sample, hidden files included, so stray files
// such as .DS_Store count as attempted and fail to load. Hidden class
// directories, files at the root level, symlinks and nested directories are
// ignored. Labels are NFC-normalised so composed
// and decomposed directory names map to the same class.
func discoverCorpus(root string, includePatterns, excludePatterns []string) ([]pipeline.Task, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus root %s is not a directory", root)
	}

	classDirs, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus root: %w", err)
	}

	var tasks []pipeline.Task
	for _, entry := range classDirs {
		if !entry.IsDir() || isHidden(entry.Name()) {
			continue
		}
		label := norm.NFC.String(entry.Name())
		files, err := discoverInClass(filepath.Join(root, entry.Name()), includePatterns, excludePatterns)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			tasks = append(tasks, pipeline.Task{Path: f, Label: label})
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Label != tasks[j].Label {
			return tasks[i].Label < tasks[j].Label
		}
		return tasks[i].Path < tasks[j].Path
	})
	return tasks, nil
}

// discoverInClass lists the sample files of one class directory.
func discoverInClass(dir string, includePatterns, excludePatterns []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read class directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
	}
	return files, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// shouldIncludeFile determines if a file should be included based on include/exclude patterns.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	// no include patterns means everything not excluded
	if len(includePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern checks if a file's base name matches any of the given patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
