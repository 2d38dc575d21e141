package basecall

import "time"

type Opts struct {
	// ChunkLen is the window length L, in raw signal samples.  Every chunk
	// handed to inference is exactly this long; the final chunk of a read is
	// reflect-padded up to it.
	ChunkLen int
	// ChunkOverlap is the overlap V, in samples, shared between consecutive
	// chunks of one read.  Must satisfy 0 <= V < L.
	ChunkOverlap int
	// BeamWidth is the number of candidate sequences kept per timestep during
	// decoding.  1 degenerates to greedy argmax decoding.
	BeamWidth int
	// RowSumTolerance bounds how far an emission row's probability mass may
	// stray from 1 before the chunk is rejected as malformed.
	RowSumTolerance float64

	// BatchSize is the number of chunks per inference batch.
	BatchSize int
	// BatchSlack is the max difference, in samples, between chunk lengths
	// sharing one length bucket in the batcher.
	BatchSlack int
	// BatchMaxWait bounds how long the batcher may hold a partial batch before
	// flushing it.  This is the pipeline's only timed suspension point.
	BatchMaxWait time.Duration

	// MinJoinIdentity is the alignment identity at or above which an overlap
	// join is cut at the alignment midpoint.
	MinJoinIdentity float64
	// HardCutIdentity is the identity below which overlap alignment is
	// abandoned entirely in favor of a deterministic hard cut at the nominal
	// overlap midpoint.  Identities between HardCutIdentity and
	// MinJoinIdentity keep the overlap bases from the higher-confidence side.
	HardCutIdentity float64
	// MaxJoinEdits caps the edit distance explored when aligning the two
	// sides of an overlap.  0 derives it from the overlap call length.
	MaxJoinEdits int

	// QualMin and QualMax clamp the Phred-style per-base quality values.
	QualMin int
	QualMax int

	// DecodeParallelism is the number of decoder workers. 0 means NumCPU.
	DecodeParallelism int
	// StitchParallelism is the number of stitcher workers. Reads are sharded
	// across workers by id; chunk order within a read is always serialized.
	// 0 means NumCPU.
	StitchParallelism int
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	ChunkLen:        4000,
	ChunkOverlap:    400,
	BeamWidth:       5,
	RowSumTolerance: 0.01,
	BatchSize:       32,
	BatchSlack:      0,
	BatchMaxWait:    50 * time.Millisecond,
	MinJoinIdentity: 0.8,
	HardCutIdentity: 0.5,
	MaxJoinEdits:    0, // derived from the overlap call length
	QualMin:         1,
	QualMax:         50,
}
