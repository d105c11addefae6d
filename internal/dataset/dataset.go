// Package dataset persists the feature table produced by batch extraction
// and consumed by training.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"time"

	"github.com/MeKo-Tech/arsl/internal/utils"
)

// FormatVersion is the current feature table format version.
const FormatVersion = 1

var (
	// ErrEmptyTable is returned when a table holds no samples.
	ErrEmptyTable = errors.New("feature table is empty")
	// ErrMalformedTable is returned for tables that fail structural checks.
	ErrMalformedTable = errors.New("malformed feature table")
)

// Table is a set of (feature vector, class label) pairs. Row order carries no meaning.
type Table struct {
	FormatVersion int         `json:"format_version"`
	FeatureWidth  int         `json:"feature_width"`
	CreatedAt     time.Time   `json:"created_at"`
	Data          [][]float64 `json:"data"`
	Labels        []string    `json:"labels"`
	Stats         *Stats      `json:"stats,omitempty"`
}

// Stats records how the table was produced.
type Stats struct {
	RunID     string `json:"run_id,omitempty"`
	Attempted int    `json:"attempted"`
	Retained  int    `json:"retained"`
}

// New creates an empty table for vectors of the given width.
func New(width int) *Table {
	return &Table{FormatVersion: FormatVersion, FeatureWidth: width}
}

// Add appends one sample.
func (t *Table) Add(vector []float64, label string) {
	t.Data = append(t.Data, vector)
	t.Labels = append(t.Labels, label)
}

// Len returns the number of samples.
func (t *Table) Len() int {
	return len(t.Data)
}

// Classes returns the distinct labels in sorted order.
func (t *Table) Classes() []string {
	out := slices.Clone(t.Labels)
	slices.Sort(out)
	return slices.Compact(out)
}

// ClassCounts returns the number of samples per label.
func (t *Table) ClassCounts() map[string]int {
	counts := make(map[string]int)
	for _, l := range t.Labels {
		counts[l]++
	}
	return counts
}

// Validate checks alignment of data and labels and that every vector has
// exactly width values. width <= 0 checks against the table's own width.
func (t *Table) Validate(width int) error {
	if width <= 0 {
		width = t.FeatureWidth
	}
	if len(t.Data) != len(t.Labels) {
		return fmt.Errorf("%w: %d vectors but %d labels", ErrMalformedTable, len(t.Data), len(t.Labels))
	}
	if t.FeatureWidth != width {
		return fmt.Errorf("%w: declared feature width %d, want %d", ErrMalformedTable, t.FeatureWidth, width)
	}
	for i, row := range t.Data {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrMalformedTable, i, len(row), width)
		}
	}
	return nil
}

// Sort orders rows by label, then lexically by vector, giving a stable file
// for identical inputs regardless of worker completion order.
func (t *Table) Sort() {
	idx := make([]int, len(t.Data))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if t.Labels[ia] != t.Labels[ib] {
			return t.Labels[ia] < t.Labels[ib]
		}
		return slices.Compare(t.Data[ia], t.Data[ib]) < 0
	})

	data := make([][]float64, len(idx))
	labels := make([]string, len(idx))
	for i, j := range idx {
		data[i] = t.Data[j]
		labels[i] = t.Labels[j]
	}
	t.Data, t.Labels = data, labels
}

// Save writes the table to path, fully replacing any previous file.
func Save(path string, t *Table) error {
	if err := t.Validate(0); err != nil {
		return err
	}
	out := *t
	out.FormatVersion = FormatVersion
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	if out.Data == nil {
		out.Data = [][]float64{}
		out.Labels = []string{}
	}

	err := utils.WriteFileAtomic(path, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(out)
	})
	if err != nil {
		return fmt.Errorf("failed to write feature table: %w", err)
	}
	return nil
}

// Load reads a table from path and validates its structure.
func Load(path string) (*Table, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open feature table: %w", err)
	}
	defer func() { _ = f.Close() }()

	var t Table
	if err := json.NewDecoder(f).Decode(&t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTable, err)
	}
	if t.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: format version %d, want %d", ErrMalformedTable, t.FormatVersion, FormatVersion)
	}
	if err := t.Validate(0); err != nil {
		return nil, err
	}
	if t.Len() == 0 {
		return nil, ErrEmptyTable
	}
	return &t, nil
}
