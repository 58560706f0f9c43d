package action

import (
	"context"
	"errors"
)

// NoAction is the label the classifier emits for windows without a
// recognizable stroke. Windows scored NoAction never enter the timeline.
const NoAction = "no_action"

// ErrUnavailable means the scorer cannot serve requests at all (model not
// loaded, backend gone). The pipeline drops the window and keeps going.
var ErrUnavailable = errors.New("action scorer unavailable")

// Score is one classifier verdict for one window.
type Score struct {
	Label      string
	Confidence float64
}

// Scorer classifies a window summary. Implementations must be safe for
// concurrent use: the engine calls Score from a worker pool. A ctx deadline
// bounds each call; an expired ctx drops the window, never the run.
type Scorer interface {
	Score(ctx context.Context, f FeatureSummary) (Score, error)
}
