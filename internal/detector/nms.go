package detector

import (
	"math"
	"sort"
)

const (
	nmsMethodHard     = "hard"
	nmsMethodWeighted = "weighted"
)

// suppressPalms dispatches to the configured NMS method.
func suppressPalms(palms []palm, method string, iouThreshold float64) []palm {
	if method == nmsMethodHard {
		return nonMaxSuppression(palms, iouThreshold)
	}
	return weightedNonMaxSuppression(palms, iouThreshold)
}

// nonMaxSuppression performs standard greedy Non-Maximum Suppression.
func nonMaxSuppression(palms []palm, iouThreshold float64) []palm {
	if len(palms) <= 1 {
		return palms
	}

	indices := sortPalmsByScore(palms)
	suppressed := make([]bool, len(palms))
	kept := make([]palm, 0, len(palms))

	for _, a := range indices {
		if suppressed[a] {
			continue
		}
		kept = append(kept, palms[a])

		for _, b := range indices {
			if suppressed[b] || a == b {
				continue
			}
			if computeIoU(palms[a].Box, palms[b].Box) > iouThreshold {
				suppressed[b] = true
			}
		}
	}

	return kept
}

// weightedNonMaxSuppression clusters palms around the best remaining one and
// replaces each cluster by its score-weighted mean. The cluster keeps the
// best score. Clusters are the same ones hard NMS would suppress.
func weightedNonMaxSuppression(palms []palm, iouThreshold float64) []palm {
	if len(palms) <= 1 {
		return palms
	}

	indices := sortPalmsByScore(palms)
	used := make([]bool, len(palms))
	kept := make([]palm, 0, len(palms))

	for _, a := range indices {
		if used[a] {
			continue
		}
		var cluster []palm
		for _, b := range indices {
			if used[b] {
				continue
			}
			if a == b || computeIoU(palms[a].Box, palms[b].Box) > iouThreshold {
				used[b] = true
				cluster = append(cluster, palms[b])
			}
		}
		merged := blendPalms(cluster)
		merged.Score = palms[a].Score
		kept = append(kept, merged)
	}

	return kept
}

// blendPalms returns the score-weighted mean box and keypoints of cluster.
func blendPalms(cluster []palm) palm {
	if len(cluster) == 1 {
		return cluster[0]
	}

	var out palm
	var total float64
	for _, p := range cluster {
		w := p.Score
		total += w
		out.Box.MinX += w * p.Box.MinX
		out.Box.MinY += w * p.Box.MinY
		out.Box.MaxX += w * p.Box.MaxX
		out.Box.MaxY += w * p.Box.MaxY
		for k := range out.Keypoints {
			out.Keypoints[k].X += w * p.Keypoints[k].X
			out.Keypoints[k].Y += w * p.Keypoints[k].Y
		}
	}
	if total <= 0 {
		return cluster[0]
	}

	out.Box.MinX /= total
	out.Box.MinY /= total
	out.Box.MaxX /= total
	out.Box.MaxY /= total
	for k := range out.Keypoints {
		out.Keypoints[k].X /= total
		out.Keypoints[k].Y /= total
	}
	return out
}

// sortPalmsByScore returns the palm indices ordered by descending score.
// Ties keep input order.
func sortPalmsByScore(palms []palm) []int {
	indices := make([]int, len(palms))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return palms[indices[i]].Score > palms[indices[j]].Score
	})
	return indices
}

// computeIoU computes Intersection over Union (IoU) for two boxes.
func computeIoU(a, b box) float64 {
	intersectionLeft := math.Max(a.MinX, b.MinX)
	intersectionTop := math.Max(a.MinY, b.MinY)
	intersectionRight := math.Min(a.MaxX, b.MaxX)
	intersectionBottom := math.Min(a.MaxY, b.MaxY)

	if intersectionLeft >= intersectionRight || intersectionTop >= intersectionBottom {
		return 0.0
	}

	intersectionArea := (intersectionRight - intersectionLeft) * (intersectionBottom - intersectionTop)
	unionArea := a.Width()*a.Height() + b.Width()*b.Height() - intersectionArea

	if unionArea <= 0 {
		return 0.0
	}

	return intersectionArea / unionArea
}
