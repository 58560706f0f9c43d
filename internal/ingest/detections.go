package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/models"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/observability"
)

// maxLineBytes bounds one JSONL line; detector lines are tiny, so anything
// near this is corrupt input.
const maxLineBytes = 1 << 20

// ReadDetections decodes a JSONL stream of detections, one object per line,
// grouped by frame in ascending order. Malformed lines and boxes are
// discarded with a log entry; a frame index going backwards fails the whole
// stream since the upstream detector writes frames sequentially.
func ReadDetections(r io.Reader, log *slog.Logger) (map[int][]models.Detection, error) {
	if log == nil {
		log = slog.Default()
	}

	out := make(map[int][]models.Detection)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	lastFrame := -1
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		var det models.Detection
		if err := json.Unmarshal(line, &det); err != nil {
			observability.DetectionsDiscarded.WithLabelValues("malformed").Inc()
			log.Warn("discarding malformed detection line", "line", lineNo, "error", err)
			continue
		}
		if err := validateDetection(det); err != nil {
			observability.DetectionsDiscarded.WithLabelValues("malformed").Inc()
			log.Warn("discarding invalid detection", "line", lineNo, "frame", det.FrameIndex, "error", err)
			continue
		}
		if det.FrameIndex < lastFrame {
			return nil, fmt.Errorf("line %d: frame %d after frame %d, detections must be frame-ordered", lineNo, det.FrameIndex, lastFrame)
		}
		lastFrame = det.FrameIndex
		out[det.FrameIndex] = append(out[det.FrameIndex], det)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read detections: %w", err)
	}
	return out, nil
}

func validateDetection(d models.Detection) error {
	switch d.Class {
	case models.ClassPlayer, models.ClassBall:
	default:
		return fmt.Errorf("unknown class %q", d.Class)
	}
	if d.FrameIndex < 0 {
		return fmt.Errorf("negative frame index %d", d.FrameIndex)
	}
	for _, v := range d.BBox {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite bbox")
		}
	}
	if d.BBox[2] <= 0 || d.BBox[3] <= 0 {
		return fmt.Errorf("non-positive bbox area")
	}
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", d.Confidence)
	}
	return nil
}
