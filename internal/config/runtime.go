package config

import (
	"strings"
	"sync/atomic"
)

// EOTFOverride forces the reported transfer function.
type EOTFOverride int

const (
	EOTFAuto EOTFOverride = iota
	EOTFForceSDR
	EOTFForcePQ
	EOTFForceHLG
)

// QuantOverride forces the reported quantization range.
type QuantOverride int

const (
	QuantAuto QuantOverride = iota
	QuantForceLimited
	QuantForceFull
)

// Runtime holds the live-tunable toggles. Values are read on hot paths
// (every placeholder frame, every format query), so readers take an
// immutable snapshot instead of locking.
type Runtime struct {
	Verbose      bool
	StatusImages bool // status graphics vs plain color bars
	ForceEOTF    EOTFOverride
	ForceQuant   QuantOverride
}

// RuntimeStore publishes Runtime snapshots atomically.
type RuntimeStore struct {
	p atomic.Pointer[Runtime]
}

// NewRuntimeStore creates a store holding rt.
func NewRuntimeStore(rt Runtime) *RuntimeStore {
	s := &RuntimeStore{}
	s.p.Store(&rt)
	return s
}

// Load returns the current snapshot. The returned value must not be
// mutated.
func (s *RuntimeStore) Load() Runtime { return *s.p.Load() }

// Store replaces the snapshot.
func (s *RuntimeStore) Store(rt Runtime) { s.p.Store(&rt) }

// RuntimeFromOptions builds the initial snapshot from loaded options.
func RuntimeFromOptions(opts *Options) Runtime {
	return Runtime{
		Verbose:      opts.Verbose,
		StatusImages: opts.StatusImages,
		ForceEOTF:    ParseEOTFOverride(opts.ForceEOTF),
		ForceQuant:   ParseQuantOverride(opts.ForceQuantization),
	}
}

// ParseEOTFOverride maps the config string to an override; unknown
// values mean auto.
func ParseEOTFOverride(s string) EOTFOverride {
	switch strings.ToLower(s) {
	case "sdr":
		return EOTFForceSDR
	case "pq", "hdr", "hdr-pq":
		return EOTFForcePQ
	case "hlg":
		return EOTFForceHLG
	default:
		return EOTFAuto
	}
}

// ParseQuantOverride maps the config string to an override; unknown
// values mean auto.
func ParseQuantOverride(s string) QuantOverride {
	switch strings.ToLower(s) {
	case "limited":
		return QuantForceLimited
	case "full":
		return QuantForceFull
	default:
		return QuantAuto
	}
}
