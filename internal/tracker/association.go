package tracker

import (
	hg "github.com/charles-haynes/munkres"
	"github.com/pkg/errors"

	"github.com/anprsight/vision-core/internal/detect"
)

// AssociationMode selects the algorithm used to resolve ambiguous
// (multi-candidate) track-to-detection association.
type AssociationMode string

const (
	// Greedy is spec.md §4.2's default: for each track in ascending id
	// order, claim the highest-IoU unclaimed detection above
	// iou_threshold, ties broken by detection index ascending.
	Greedy AssociationMode = "greedy"
	// Hungarian resolves the same cost matrix via optimal (minimum
	// cost) bipartite assignment, ground in the teacher's Munkres-based
	// BuildMatchingMatrix/HA.Execute() step.
	Hungarian AssociationMode = "hungarian"
)

// match pairs a track index with a detection index.
type match struct {
	trackIdx, detIdx int
}

// associateGreedy implements spec.md §4.2 step 2 exactly: tracks are
// scanned in ascending id order (the caller guarantees tracks is sorted
// that way), and each claims the highest-IoU unclaimed detection
// exceeding iouThreshold, ties broken by ascending detection index.
func associateGreedy(tracks []*Track, dets []detect.Detection, iouThreshold float64) []match {
	claimed := make([]bool, len(dets))
	matches := make([]match, 0, len(tracks))

	for ti, tr := range tracks {
		bestIdx := -1
		bestIoU := iouThreshold
		for di, d := range dets {
			if claimed[di] {
				continue
			}
			iou := tr.Box.IoU(d.Box)
			if iou > bestIoU {
				bestIoU = iou
				bestIdx = di
			}
		}
		if bestIdx >= 0 {
			claimed[bestIdx] = true
			matches = append(matches, match{trackIdx: ti, detIdx: bestIdx})
		}
	}
	return matches
}

// associateHungarian resolves the same association problem via optimal
// bipartite assignment. The cost matrix is 1-IoU (the teacher's -IoU
// shifted non-negative, since Munkres here also minimizes), with any
// pairing not exceeding iouThreshold excluded from consideration by giving it
// a cost of 1 (equivalent to "no match", since the algorithm still
// needs a square-ish matrix to solve).
func associateHungarian(tracks []*Track, dets []detect.Detection, iouThreshold float64) ([]match, error) {
	if len(tracks) == 0 || len(dets) == 0 {
		return nil, nil
	}

	costs := make([][]float64, len(tracks))
	ious := make([][]float64, len(tracks))
	for i, tr := range tracks {
		row := make([]float64, len(dets))
		iouRow := make([]float64, len(dets))
		for j, d := range dets {
			iou := tr.Box.IoU(d.Box)
			iouRow[j] = iou
			if iou > iouThreshold {
				row[j] = 1 - iou
			} else {
				row[j] = 1
			}
		}
		costs[i] = row
		ious[i] = iouRow
	}

	ha, err := hg.NewHungarianAlgorithm(costs)
	if err != nil {
		return nil, errors.Wrap(err, "building hungarian assignment")
	}
	assignment := ha.Execute()

	matches := make([]match, 0, len(tracks))
	for ti, di := range assignment {
		if di < 0 || di >= len(dets) {
			continue
		}
		if ious[ti][di] <= iouThreshold {
			continue
		}
		matches = append(matches, match{trackIdx: ti, detIdx: di})
	}
	return matches, nil
}
