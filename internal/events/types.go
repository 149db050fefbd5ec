package events

// Event type constants for kelindar/event.
const (
	TypeSignalLocked uint32 = iota + 1
	TypeSignalLost
	TypeCableRemoved
	TypeTimingChanged
	TypeResyncDone
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SignalLockedEvent fires when the monitor transitions from unlocked to
// locked, after the format lookup.
type SignalLockedEvent struct {
	Mode      string `json:"mode" example:"1920x1080p60" doc:"Catalog name of the detected mode, empty if not cataloged"`
	TimingH   uint32 `json:"timing_h" doc:"Total pixels per line including blanking"`
	TimingV   uint32 `json:"timing_v" doc:"Total lines including blanking"`
	Width     uint32 `json:"width" doc:"Visible width"`
	Height    uint32 `json:"height" doc:"Visible height"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for SignalLockedEvent.
func (e SignalLockedEvent) Type() uint32 { return TypeSignalLocked }

// SignalLostEvent fires when lock drops but the timing hints still show
// a seated cable.
type SignalLostEvent struct {
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for SignalLostEvent.
func (e SignalLostEvent) Type() uint32 { return TypeSignalLost }

// CableRemovedEvent fires once the no-timing debounce confirms the cable
// is gone.
type CableRemovedEvent struct {
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for CableRemovedEvent.
func (e CableRemovedEvent) Type() uint32 { return TypeCableRemoved }

// TimingChangedEvent fires when a locked signal changes resolution or
// rate without dropping lock first (quick replug, mode switch).
type TimingChangedEvent struct {
	Mode      string `json:"mode" doc:"Catalog name of the new mode, empty if not cataloged"`
	TimingH   uint32 `json:"timing_h" doc:"New total pixels per line"`
	TimingV   uint32 `json:"timing_v" doc:"New total lines"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for TimingChangedEvent.
func (e TimingChangedEvent) Type() uint32 { return TypeTimingChanged }

// ResyncDoneEvent fires after a DMA resync sequence completes.
type ResyncDoneEvent struct {
	DurationMs int64  `json:"duration_ms" doc:"Wall time of the stop/resize/restart sequence"`
	Restarted  bool   `json:"restarted" doc:"Whether DMA was restarted (streaming clients present)"`
	Timestamp  string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for ResyncDoneEvent.
func (e ResyncDoneEvent) Type() uint32 { return TypeResyncDone }
