package trainer

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genLabels produces label lists where every class has at least two rows.
func genLabels() gopter.Gen {
	return gen.SliceOfN(8, gen.IntRange(2, 30)).Map(func(sizes []int) []string {
		var labels []string
		for c, n := range sizes {
			for range n {
				labels = append(labels, fmt.Sprintf("class_%d", c))
			}
		}
		return labels
	})
}

func TestStratifiedSplit_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("train and test are disjoint and cover every row", prop.ForAll(
		func(labels []string, seed uint64) bool {
			split, err := StratifiedSplit(labels, 0.2, seed)
			if err != nil {
				return false
			}
			seen := make(map[int]bool, len(labels))
			for _, i := range append(append([]int(nil), split.Train...), split.Test...) {
				if seen[i] || i < 0 || i >= len(labels) {
					return false
				}
				seen[i] = true
			}
			return len(seen) == len(labels)
		},
		genLabels(),
		gen.UInt64(),
	))

	properties.Property("every class appears in both parts", prop.ForAll(
		func(labels []string, seed uint64) bool {
			split, err := StratifiedSplit(labels, 0.2, seed)
			if err != nil {
				return false
			}
			inTrain, inTest := map[string]bool{}, map[string]bool{}
			for _, i := range split.Train {
				inTrain[labels[i]] = true
			}
			for _, i := range split.Test {
				inTest[labels[i]] = true
			}
			for _, l := range labels {
				if !inTrain[l] || !inTest[l] {
					return false
				}
			}
			return true
		},
		genLabels(),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
