package trainer

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MeKo-Tech/arsl/internal/common"
)

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ClassMetrics are the test-set scores of one class.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report is the evaluation of a training run on its held-out split.
type Report struct {
	Algorithm   string                  `json:"algorithm"`
	Accuracy    float64                 `json:"accuracy"`
	Classes     []string                `json:"classes"`
	PerClass    map[string]ClassMetrics `json:"per_class"`
	MacroAvg    ClassMetrics            `json:"macro_avg"`
	WeightedAvg ClassMetrics            `json:"weighted_avg"`
	Confusion   [][]int                 `json:"confusion_matrix"` // rows true, columns predicted
	TrainSize   int                     `json:"train_size"`
	TestSize    int                     `json:"test_size"`
	ModelPath   string                  `json:"model_path,omitempty"`
	Duration    time.Duration           `json:"duration_ns"`
	Stages      []common.Stage          `json:"stages,omitempty"`
}

// Evaluate scores predictions against the truth. classes lists every label
// to report on; labels outside it are ignored in the matrix.
func Evaluate(truth, predicted, classes []string) *Report {
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}

	confusion := make([][]int, len(classes))
	for i := range confusion {
		confusion[i] = make([]int, len(classes))
	}
	correct := 0
	for i := range truth {
		if truth[i] == predicted[i] {
			correct++
		}
		ti, ok1 := index[truth[i]]
		pi, ok2 := index[predicted[i]]
		if ok1 && ok2 {
			confusion[ti][pi]++
		}
	}

	r := &Report{
		Classes:   classes,
		PerClass:  make(map[string]ClassMetrics, len(classes)),
		Confusion: confusion,
		TestSize:  len(truth),
	}
	if len(truth) > 0 {
		r.Accuracy = float64(correct) / float64(len(truth))
	}

	total := 0
	for i, c := range classes {
		tp := confusion[i][i]
		predictedAs, support := 0, 0
		for j := range classes {
			predictedAs += confusion[j][i]
			support += confusion[i][j]
		}
		m := ClassMetrics{
			Precision: ratio(tp, predictedAs),
			Recall:    ratio(tp, support),
			Support:   support,
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.PerClass[c] = m

		r.MacroAvg.Precision += m.Precision
		r.MacroAvg.Recall += m.Recall
		r.MacroAvg.F1 += m.F1
		r.WeightedAvg.Precision += m.Precision * float64(support)
		r.WeightedAvg.Recall += m.Recall * float64(support)
		r.WeightedAvg.F1 += m.F1 * float64(support)
		total += support
	}

	if n := float64(len(classes)); n > 0 {
		r.MacroAvg.Precision /= n
		r.MacroAvg.Recall /= n
		r.MacroAvg.F1 /= n
	}
	r.MacroAvg.Support = total
	if total > 0 {
		r.WeightedAvg.Precision /= float64(total)
		r.WeightedAvg.Recall /= float64(total)
		r.WeightedAvg.F1 /= float64(total)
	}
	r.WeightedAvg.Support = total
	return r
}

// ratio returns a/b, or 0 when b is 0.
func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// Format renders the report as text or JSON.
func (r *Report) Format(format string) (string, error) {
	switch format {
	case FormatJSON:
		bts, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", err
		}
		return string(bts) + "\n", nil
	case FormatText, "":
		return r.formatText(), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatText renders a per-class table followed by the confusion matrix.
func (r *Report) formatText() string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "Algorithm: %s\n", r.Algorithm)
	_, _ = fmt.Fprintf(&b, "Train/test: %d/%d\n", r.TrainSize, r.TestSize)
	_, _ = fmt.Fprintf(&b, "Accuracy: %.4f\n\n", r.Accuracy)

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "\tprecision\trecall\tf1-score\tsupport\t")
	for _, c := range r.Classes {
		m := r.PerClass[c]
		_, _ = fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%d\t\n", c, m.Precision, m.Recall, m.F1, m.Support)
	}
	_, _ = fmt.Fprintln(tw, "\t\t\t\t\t")
	_, _ = fmt.Fprintf(tw, "accuracy\t\t\t%.2f\t%d\t\n", r.Accuracy, r.TestSize)
	for _, row := range []struct {
		name string
		m    ClassMetrics
	}{{"macro avg", r.MacroAvg}, {"weighted avg", r.WeightedAvg}} {
		_, _ = fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%d\t\n", row.name, row.m.Precision, row.m.Recall, row.m.F1, row.m.Support)
	}
	_ = tw.Flush()

	b.WriteString("\nConfusion matrix (rows: true, columns: predicted)\n")
	tw = tabwriter.NewWriter(&b, 0, 4, 1, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintf(tw, "\t%s\t\n", strings.Join(r.Classes, "\t"))
	for i, c := range r.Classes {
		cells := make([]string, len(r.Confusion[i]))
		for j, v := range r.Confusion[i] {
			cells[j] = fmt.Sprint(v)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t\n", c, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	return b.String()
}
