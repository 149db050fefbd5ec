package events

import (
	"sync"
)

// Record is one bus event flattened for the control API: the Kind names
// the event, the remaining fields carry whichever payload that kind
// has.
type Record struct {
	Kind       string `json:"kind" enum:"signal_locked,signal_lost,cable_removed,timing_changed,resync_done" doc:"Event kind"`
	Timestamp  string `json:"timestamp" doc:"Event timestamp"`
	Mode       string `json:"mode,omitempty" doc:"Catalog name of the mode, for lock and timing events"`
	TimingH    uint32 `json:"timing_h,omitempty" doc:"Total pixels per line including blanking"`
	TimingV    uint32 `json:"timing_v,omitempty" doc:"Total lines including blanking"`
	Width      uint32 `json:"width,omitempty" doc:"Visible width"`
	Height     uint32 `json:"height,omitempty" doc:"Visible height"`
	DurationMs int64  `json:"duration_ms,omitempty" doc:"Resync wall time"`
	Restarted  bool   `json:"restarted,omitempty" doc:"Whether the resync restarted DMA"`
}

// Recorder subscribes to every event type on a bus and keeps the most
// recent events in a fixed-size ring for the control API.
type Recorder struct {
	mu      sync.RWMutex
	records []Record
	head    int
	count   int
	unsubs  []func()
}

// NewRecorder attaches a recorder holding up to size events to bus.
func NewRecorder(bus *Bus, size int) *Recorder {
	r := &Recorder{records: make([]Record, size)}
	r.unsubs = []func(){
		bus.Subscribe(func(e SignalLockedEvent) {
			r.add(Record{
				Kind: "signal_locked", Timestamp: e.Timestamp,
				Mode: e.Mode, TimingH: e.TimingH, TimingV: e.TimingV,
				Width: e.Width, Height: e.Height,
			})
		}),
		bus.Subscribe(func(e SignalLostEvent) {
			r.add(Record{Kind: "signal_lost", Timestamp: e.Timestamp})
		}),
		bus.Subscribe(func(e CableRemovedEvent) {
			r.add(Record{Kind: "cable_removed", Timestamp: e.Timestamp})
		}),
		bus.Subscribe(func(e TimingChangedEvent) {
			r.add(Record{
				Kind: "timing_changed", Timestamp: e.Timestamp,
				Mode: e.Mode, TimingH: e.TimingH, TimingV: e.TimingV,
			})
		}),
		bus.Subscribe(func(e ResyncDoneEvent) {
			r.add(Record{
				Kind: "resync_done", Timestamp: e.Timestamp,
				DurationMs: e.DurationMs, Restarted: e.Restarted,
			})
		}),
	}
	return r
}

func (r *Recorder) add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[r.head] = rec
	r.head = (r.head + 1) % len(r.records)
	if r.count < len(r.records) {
		r.count++
	}
}

// Recent returns the recorded events in chronological order.
func (r *Recorder) Recent() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.count == 0 {
		return nil
	}
	out := make([]Record, r.count)
	if r.count < len(r.records) {
		copy(out, r.records[:r.count])
	} else {
		n := copy(out, r.records[r.head:])
		copy(out[n:], r.records[:r.head])
	}
	return out
}

// Count returns the number of recorded events.
func (r *Recorder) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Close detaches the recorder from the bus.
func (r *Recorder) Close() {
	for _, u := range r.unsubs {
		u()
	}
}
