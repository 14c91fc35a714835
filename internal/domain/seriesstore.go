package domain

import (
	"context"
	"sort"
	"sync"
	"time"

	"mtmon/internal/bus"
	"mtmon/internal/events"
)

const defaultSeriesCapacity = 50

// Sample is one (timestamp, value) point of a telemetry series.
type Sample struct {
	At    time.Time
	Value float64
}

// SeriesStore keeps fixed-capacity rolling sample windows, one per
// monitored variable, for live charts. Insertion order equals arrival
// order; once a series is at capacity the oldest sample is evicted.
type SeriesStore struct {
	mu       sync.RWMutex
	capacity int
	series   map[string]*ringSeries
}

type ringSeries struct {
	samples []Sample
	start   int
	count   int
}

func NewSeriesStore(capacity int) *SeriesStore {
	if capacity <= 0 {
		capacity = defaultSeriesCapacity
	}

	return &SeriesStore{
		capacity: capacity,
		series:   make(map[string]*ringSeries),
	}
}

// SeriesID names the buffer for one machine variable.
func SeriesID(machineID, metric string) string {
	return machineID + "." + metric
}

// Start feeds the store from machine-data bus events until ctx ends.
func (s *SeriesStore) Start(ctx context.Context, b bus.MessageBus) {
	sub := b.Subscribe(events.TopicMachineData)
	go func() {
		defer b.Unsubscribe(sub, events.TopicMachineData)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub:
				if !ok {
					return
				}
				data, ok := msg.(MachineData)
				if !ok {
					continue
				}
				s.AppendSample(data)
			}
		}
	}()
}

// AppendSample appends every chartable metric of one telemetry sample.
func (s *SeriesStore) AppendSample(data MachineData) {
	at := data.Timestamp.OrNow()
	for metric, value := range data.Metrics() {
		s.Append(SeriesID(data.MachineID, metric), at, value)
	}
}

// Append adds one point to the named series, creating the series with
// the configured capacity if it does not exist yet.
func (s *SeriesStore) Append(seriesID string, at time.Time, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.series[seriesID]
	if !ok {
		r = &ringSeries{samples: make([]Sample, s.capacity)}
		s.series[seriesID] = r
	}

	sample := Sample{At: at, Value: value}
	if r.count < len(r.samples) {
		r.samples[(r.start+r.count)%len(r.samples)] = sample
		r.count++

		return
	}
	// Full: overwrite the oldest slot and advance the window.
	r.samples[r.start] = sample
	r.start = (r.start + 1) % len(r.samples)
}

// Snapshot returns the series content oldest-first as an independent
// copy. A missing series yields nil.
func (s *SeriesStore) Snapshot(seriesID string) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.series[seriesID]
	if !ok {
		return nil
	}

	out := make([]Sample, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.samples[(r.start+i)%len(r.samples)]
	}

	return out
}

// Len reports the current sample count of the named series.
func (s *SeriesStore) Len(seriesID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.series[seriesID]
	if !ok {
		return 0
	}

	return r.count
}

// SeriesIDs lists all live series sorted by name.
func (s *SeriesStore) SeriesIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.series))
	for id := range s.series {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// Drop discards the named series when the owning chart is torn down.
func (s *SeriesStore) Drop(seriesID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.series, seriesID)
}
