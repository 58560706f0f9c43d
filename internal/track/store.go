package track

import (
	"fmt"
	"sort"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/config"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/models"
)

// Store owns every track of one analysis run, terminated ones included: the
// report assembler needs full histories after the frame loop finishes. The
// engine is the only mutator, so the store carries no lock.
type Store struct {
	cfg    config.TrackingConfig
	tracks map[uint64]*Track
	nextID uint64

	spawned    int
	terminated int
}

// NewStore creates an empty track store.
func NewStore(cfg config.TrackingConfig) *Store {
	return &Store{
		cfg:    cfg,
		tracks: make(map[uint64]*Track),
		nextID: 1,
	}
}

// Spawn creates a tentative track from an unmatched detection. Returns nil
// when the track limit is reached.
func (s *Store) Spawn(class models.ObjectClass, obs Obs, frame int) *Track {
	if s.aliveCount() >= s.cfg.MaxTracks {
		return nil
	}
	t := &Track{
		ID:         s.nextID,
		Class:      class,
		State:      StateTentative,
		Hits:       1,
		FirstFrame: frame,
		LastFrame:  frame,
		X:          obs.Pixel.X,
		Y:          obs.Pixel.Y,
		P: [16]float64{
			10, 0, 0, 0,
			0, 10, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		},
		processNoisePos:  s.cfg.ProcessNoisePos,
		processNoiseVel:  s.cfg.ProcessNoiseVel,
		measurementNoise: s.cfg.MeasurementNoise,
	}
	t.History = append(t.History, Point{Frame: frame, Pixel: obs.Pixel, BBox: obs.BBox, Court: obs.Court})
	s.nextID++
	s.tracks[t.ID] = t
	s.spawned++
	return t
}

// Observe commits a matched detection to a track: Kalman update, lifecycle
// promotion, history append. Frames must be committed in strictly increasing
// order per track.
func (s *Store) Observe(t *Track, obs Obs, frame int) error {
	if frame <= t.LastFrame {
		return fmt.Errorf("track %d: frame %d not after %d", t.ID, frame, t.LastFrame)
	}
	if !t.Alive() {
		return fmt.Errorf("track %d: observation on terminated track", t.ID)
	}

	t.update(obs.Pixel)
	t.Hits++
	t.Misses = 0
	t.LastFrame = frame

	switch t.State {
	case StateTentative:
		if t.Hits >= s.cfg.HitsToConfirm {
			t.State = StateConfirmed
		}
	case StateLost:
		// A re-association restores the track without restarting
		// confirmation.
		t.State = StateConfirmed
	}

	t.History = append(t.History, Point{Frame: frame, Pixel: obs.Pixel, BBox: obs.BBox, Court: obs.Court, Speed: obs.Speed})
	return nil
}

// Miss records a frame without an association for the track. Tentative
// tracks are discarded outright; confirmed tracks get a grace window.
func (s *Store) Miss(t *Track) {
	if !t.Alive() {
		return
	}
	t.Hits = 0
	t.Misses++

	switch t.State {
	case StateTentative:
		t.State = StateTerminated
		s.terminated++
	case StateConfirmed:
		t.State = StateLost
	case StateLost:
		if t.Misses > s.cfg.GraceWindow {
			t.State = StateTerminated
			s.terminated++
		}
	}
}

// Active returns alive tracks of a class, ordered by ID so every caller sees
// the same iteration order.
func (s *Store) Active(class models.ObjectClass) []*Track {
	out := make([]*Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		if t.Class == class && t.Alive() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Confirmed returns alive confirmed tracks of a class, ordered by ID.
func (s *Store) Confirmed(class models.ObjectClass) []*Track {
	out := make([]*Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		if t.Class == class && t.State == StateConfirmed {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every track ever spawned, terminated included, ordered by ID.
func (s *Store) All() []*Track {
	out := make([]*Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a track by ID, or nil.
func (s *Store) Get(id uint64) *Track {
	return s.tracks[id]
}

// Counts returns lifetime spawn and termination totals.
func (s *Store) Counts() (spawned, terminated int) {
	return s.spawned, s.terminated
}

func (s *Store) aliveCount() int {
	n := 0
	for _, t := range s.tracks {
		if t.Alive() {
			n++
		}
	}
	return n
}
