package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/engine"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/models"
)

// ReadKeypoints decodes the keypoint sets document: a JSON array of sets,
// one per court observation. Sets come back sorted by frame index; the court
// detector usually emits one at frame 0 and more after camera cuts.
func ReadKeypoints(r io.Reader) ([]models.KeypointSet, error) {
	var sets []models.KeypointSet
	dec := json.NewDecoder(r)
	if err := dec.Decode(&sets); err != nil {
		return nil, fmt.Errorf("decode keypoint sets: %w", err)
	}

	for i, ks := range sets {
		if ks.FrameIndex < 0 {
			return nil, fmt.Errorf("keypoint set %d: negative frame index %d", i, ks.FrameIndex)
		}
	}
	sort.SliceStable(sets, func(i, j int) bool {
		return sets[i].FrameIndex < sets[j].FrameIndex
	})
	return sets, nil
}

// BuildFrames merges frame-grouped detections and keypoint sets into the
// ordered frame sequence the pipeline consumes. A keypoint set whose frame
// has no detections still yields a frame, so calibration is never skipped.
func BuildFrames(dets map[int][]models.Detection, keypoints []models.KeypointSet) []engine.Frame {
	frameSet := make(map[int]bool, len(dets))
	for f := range dets {
		frameSet[f] = true
	}
	for _, ks := range keypoints {
		frameSet[ks.FrameIndex] = true
	}

	frames := make([]int, 0, len(frameSet))
	for f := range frameSet {
		frames = append(frames, f)
	}
	sort.Ints(frames)

	kpByFrame := make(map[int]*models.KeypointSet, len(keypoints))
	for i := range keypoints {
		kpByFrame[keypoints[i].FrameIndex] = &keypoints[i]
	}

	out := make([]engine.Frame, 0, len(frames))
	for _, f := range frames {
		out = append(out, engine.Frame{
			Index:      f,
			Detections: dets[f],
			Keypoints:  kpByFrame[f],
		})
	}
	return out
}
