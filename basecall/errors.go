package basecall

import "errors"

var (
	// ErrInvalidChunkConfig is returned when the chunk length or overlap is
	// out of range.  The read is rejected before entering the pipeline.
	ErrInvalidChunkConfig = errors.New("invalid chunk config")
	// ErrEmptySignal is returned for a read with zero signal samples.
	ErrEmptySignal = errors.New("empty signal")
	// ErrMalformedEmissions is returned by the decoder when an emission
	// matrix has zero timesteps or a probability row that does not sum to ~1.
	ErrMalformedEmissions = errors.New("malformed emission matrix")
	// ErrInference marks an inference backend failure.  The batch is retried
	// once; after that every chunk in it is failed and the owning reads
	// proceed incomplete.
	ErrInference = errors.New("inference failure")
)
