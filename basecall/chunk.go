package basecall

// Chunk is one fixed-length window of a read's raw signal.  Chunks of a read
// start at i*(L-V) and cover the signal with no gaps; only the last chunk may
// carry reflect padding.
type Chunk struct {
	// ReadID is a non-owning back-reference to the parent read.
	ReadID string
	// Index is the chunk's position within the read's chunk sequence.
	Index int
	// NumChunks is the total number of chunks the read was split into.
	NumChunks int
	// Start is the offset of Signal[0] within the read's signal.
	Start int
	// Pad is the number of trailing samples of Signal that are reflect
	// padding rather than real signal.  Nonzero only for the last chunk.
	Pad int
	// LeadingOverlap and TrailingOverlap are the number of samples shared
	// with the previous and next chunk, respectively.
	LeadingOverlap  int
	TrailingOverlap int
	// Signal has length Opts.ChunkLen exactly.
	Signal []float32
}

// ChunkRead splits a read's signal into the minimal number of overlapping
// fixed-length windows fully covering it.  It returns ErrInvalidChunkConfig
// if L <= 0 or V is not in [0, L), and ErrEmptySignal for a read with no
// samples.
func ChunkRead(r *Read, opts Opts) ([]Chunk, error) {
	l, v := opts.ChunkLen, opts.ChunkOverlap
	if l <= 0 || v < 0 || v >= l {
		return nil, ErrInvalidChunkConfig
	}
	n := len(r.Signal)
	if n == 0 {
		return nil, ErrEmptySignal
	}
	stride := l - v
	num := 1
	if n > l {
		num = (n-l+stride-1)/stride + 1
	}
	chunks := make([]Chunk, 0, num)
	for i := 0; i < num; i++ {
		start := i * stride
		c := Chunk{
			ReadID:    r.ID,
			Index:     i,
			NumChunks: num,
			Start:     start,
		}
		if i > 0 {
			c.LeadingOverlap = v
		}
		if i < num-1 {
			c.TrailingOverlap = v
		}
		if end := start + l; end <= n {
			c.Signal = r.Signal[start:end]
		} else {
			c.Pad = end - n
			c.Signal = ReflectPad(r.Signal[start:], l)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// ReflectPad extends sig to length by mirroring it around its last sample,
// bouncing back and forth if the deficit exceeds the signal.  Reflection
// avoids the step edge that zero padding would put in front of the decoder
// at read ends.  A one-sample signal is extended by repetition.
func ReflectPad(sig []float32, length int) []float32 {
	out := make([]float32, length)
	m := copy(out, sig)
	if m >= length {
		return out
	}
	if m == 1 {
		for i := 1; i < length; i++ {
			out[i] = sig[0]
		}
		return out
	}
	src, step := m-2, -1
	for i := m; i < length; i++ {
		out[i] = sig[src]
		if src == 0 && step < 0 {
			step = 1
		} else if src == m-1 && step > 0 {
			step = -1
		}
		src += step
	}
	return out
}
