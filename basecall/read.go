package basecall

import "strings"

// Read is one raw nanopore read as delivered by the signal source.  It is
// immutable once ingested; the pipeline owns it until all of its chunks have
// been stitched.
type Read struct {
	// ID uniquely identifies the read.
	ID string
	// Channel is the device channel the read was acquired on.
	Channel int
	// Start is the acquisition start time, in device sample-clock ticks.
	Start int64
	// Signal is the ordered raw current trace.
	Signal []float32
}

// Flags annotates a stitched read with non-fatal conditions.
type Flags uint8

const (
	// FlagIncomplete is set when at least one chunk of the read failed
	// inference or decoding; the emitted sequence skips the failed region.
	FlagIncomplete Flags = 1 << iota
	// FlagLowConfidenceJoin is set when at least one overlap join fell back
	// to a hard cut because no acceptable alignment was found.
	FlagLowConfidenceJoin
)

func (f Flags) String() string {
	if f == 0 {
		return "-"
	}
	var parts []string
	if f&FlagIncomplete != 0 {
		parts = append(parts, "incomplete")
	}
	if f&FlagLowConfidenceJoin != 0 {
		parts = append(parts, "low_confidence_join")
	}
	return strings.Join(parts, ",")
}

// StitchedRead is the final call for one read: the full base sequence with
// per-base Phred-style qualities.  It is immutable once produced.
type StitchedRead struct {
	ID      string
	Channel int
	Start   int64
	Seq     string
	// Quals holds one numeric quality value per base of Seq, clamped to
	// [Opts.QualMin, Opts.QualMax].
	Quals []byte
	Flags Flags
}
