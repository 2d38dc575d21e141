package basecall

// Stats represents high-level counters for one pipeline run.
type Stats struct {
	// Reads is the # of reads accepted into the pipeline.
	Reads int
	// RejectedReads is the # of reads refused before entry (bad chunk
	// config or empty signal).
	RejectedReads int
	// Chunks is the total # of chunks produced by the chunker.
	Chunks int
	// Batches is the # of inference batches submitted.
	Batches int
	// PartialBatches is the # of batches flushed below target size by the
	// max-wait timer or end of input.
	PartialBatches int
	// RetriedBatches is the # of batches retried after an inference failure.
	RetriedBatches int
	// FailedBatches is the # of batches that failed after the retry.
	FailedBatches int
	// FailedChunks is the # of chunks failed by inference or decoding.
	FailedChunks int
	// StitchedReads is the # of reads fully stitched and emitted.
	StitchedReads int
	// IncompleteReads is the # of emitted reads flagged incomplete.
	IncompleteReads int
	// LowConfidenceJoins is the total # of hard-cut joins across all reads.
	LowConfidenceJoins int
	// CancelledReads is the # of reads dropped by cancellation.
	CancelledReads int
}

// Merge adds the field values of the two Stats objects and creates new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.Reads += o.Reads
	s.RejectedReads += o.RejectedReads
	s.Chunks += o.Chunks
	s.Batches += o.Batches
	s.PartialBatches += o.PartialBatches
	s.RetriedBatches += o.RetriedBatches
	s.FailedBatches += o.FailedBatches
	s.FailedChunks += o.FailedChunks
	s.StitchedReads += o.StitchedReads
	s.IncompleteReads += o.IncompleteReads
	s.LowConfidenceJoins += o.LowConfidenceJoins
	s.CancelledReads += o.CancelledReads
	return s
}
