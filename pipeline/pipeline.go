// Package pipeline assembles the basecalling stages into a concurrent
// dataflow: reads are chunked, chunks are batched for inference, emission
// matrices are decoded in parallel, and per-read calls are regrouped,
// stitched, quality scored and written to a sink.
package pipeline

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/syncqueue"
	"github.com/grailbio/base/traverse"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/suhas-arun/bonito/basecall"
)

// Pipeline runs the signal-to-sequence dataflow.  Create one with New, then
// call Run once.  Cancel may be called concurrently with Run.
type Pipeline struct {
	opts basecall.Opts
	inf  basecall.Inferer
	sink Sink

	mu    sync.Mutex
	reads map[string]*readState
	stats basecall.Stats

	err errors.Once
}

// readState tracks one in-flight read.  Decode workers finish chunks in
// arbitrary order; the ordered queue re-serializes them by chunk index for
// the stitch worker.  The queue capacity equals the chunk count, so inserts
// never block and decode workers can never deadlock against a stalled
// stitcher.
type readState struct {
	id        string
	channel   int
	start     int64
	numChunks int
	oq        *syncqueue.OrderedQueue
	cancelled int32 // set atomically by Cancel
}

// New creates a pipeline that sends batches to inf and finished reads to
// sink.  Zero parallelism values in opts default to runtime.NumCPU.
func New(opts basecall.Opts, inf basecall.Inferer, sink Sink) *Pipeline {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.DecodeParallelism <= 0 {
		opts.DecodeParallelism = runtime.NumCPU()
	}
	if opts.StitchParallelism <= 0 {
		opts.StitchParallelism = runtime.NumCPU()
	}
	return &Pipeline{
		opts:  opts,
		inf:   inf,
		sink:  sink,
		reads: make(map[string]*readState),
	}
}

// Cancel marks the read for abandonment.  Chunks already in flight complete
// whatever stage they are in, but no further decode or stitch work is spent
// on them and nothing is written to the sink.  Cancelling an unknown or
// already-finished read is a no-op.
func (p *Pipeline) Cancel(readID string) {
	p.mu.Lock()
	rs := p.reads[readID]
	p.mu.Unlock()
	if rs != nil {
		atomic.StoreInt32(&rs.cancelled, 1)
	}
}

// decodeItem is one chunk's inference result.  em is nil when the batch
// failed and the chunk must be recorded as a failed call.
type decodeItem struct {
	chunk basecall.Chunk
	em    *basecall.EmissionMatrix
}

// Run consumes reads until the channel closes and all in-flight work
// drains, then returns the accumulated counters.  Sink errors are latched
// and returned after the drain; they do not abort the run.
func (p *Pipeline) Run(ctx context.Context, reads <-chan *basecall.Read) (basecall.Stats, error) {
	chunkCh := make(chan basecall.Chunk, 4*p.opts.BatchSize)
	batchCh := make(chan Batch, 2)
	decodeCh := make(chan decodeItem, 4*p.opts.BatchSize)
	shardChs := make([]chan *readState, p.opts.StitchParallelism)
	for i := range shardChs {
		shardChs[i] = make(chan *readState, 64)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b := &batcher{
			target:  p.opts.BatchSize,
			slack:   p.opts.BatchSlack,
			maxWait: p.opts.BatchMaxWait,
			in:      chunkCh,
			out:     batchCh,
		}
		p.mergeStats(b.run())
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(decodeCh)
		p.runInfer(ctx, batchCh, decodeCh)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = traverse.Each(p.opts.DecodeParallelism, func(int) error {
			p.runDecode(decodeCh)
			return nil
		})
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = traverse.Each(len(shardChs), func(shard int) error {
			p.runStitch(ctx, shardChs[shard])
			return nil
		})
	}()

	var stats basecall.Stats
	for r := range reads {
		chunks, err := basecall.ChunkRead(r, p.opts)
		if err != nil {
			log.Error.Printf("read %s: rejected: %v", r.ID, err)
			stats.RejectedReads++
			continue
		}
		rs := &readState{
			id:        r.ID,
			channel:   r.Channel,
			start:     r.Start,
			numChunks: len(chunks),
			oq:        syncqueue.NewOrderedQueue(len(chunks)),
		}
		p.mu.Lock()
		p.reads[r.ID] = rs
		p.mu.Unlock()
		// All chunks of a read go to one stitch worker, picked by hashing
		// the read id.
		shardChs[farm.Hash64([]byte(r.ID))%uint64(len(shardChs))] <- rs
		stats.Reads++
		stats.Chunks += len(chunks)
		for _, c := range chunks {
			chunkCh <- c
		}
	}
	close(chunkCh)
	for _, ch := range shardChs {
		close(ch)
	}
	p.mergeStats(stats)
	wg.Wait()

	p.mu.Lock()
	all := p.stats
	p.mu.Unlock()
	return all, p.err.Err()
}

// runInfer drains the batch channel through the inference backend.  A
// failed submission is retried once; if the retry also fails, every chunk
// in the batch is forwarded with a nil matrix so the reads still complete.
func (p *Pipeline) runInfer(ctx context.Context, batches <-chan Batch, out chan<- decodeItem) {
	var stats basecall.Stats
	for batch := range batches {
		ems, err := p.submit(ctx, &batch, &stats)
		if err != nil {
			log.Error.Printf("inference: batch of %d chunks failed after retry: %v", len(batch.Chunks), err)
			stats.FailedBatches++
			stats.FailedChunks += len(batch.Chunks)
			for _, c := range batch.Chunks {
				out <- decodeItem{chunk: c}
			}
			continue
		}
		for i := range batch.Chunks {
			out <- decodeItem{chunk: batch.Chunks[i], em: &ems[i]}
		}
	}
	p.mergeStats(stats)
}

func (p *Pipeline) submit(ctx context.Context, b *Batch, stats *basecall.Stats) ([]basecall.EmissionMatrix, error) {
	sigs := b.Signals()
	ems, err := p.inf.Infer(ctx, sigs)
	if err != nil {
		stats.RetriedBatches++
		log.Error.Printf("inference: retrying batch of %d chunks: %v", len(b.Chunks), err)
		ems, err = p.inf.Infer(ctx, sigs)
	}
	if err != nil {
		return nil, err
	}
	if len(ems) != len(b.Chunks) {
		return nil, basecall.ErrInference
	}
	return ems, nil
}

// runDecode turns emission matrices into chunk calls and hands them to the
// owning read's ordered queue.  Chunks of cancelled reads and chunks whose
// batch failed are inserted as failed placeholders so the queue still fills.
func (p *Pipeline) runDecode(in <-chan decodeItem) {
	dec := basecall.NewDecoder(p.opts.BeamWidth, p.opts.RowSumTolerance)
	var stats basecall.Stats
	for item := range in {
		p.mu.Lock()
		rs := p.reads[item.chunk.ReadID]
		p.mu.Unlock()
		if rs == nil {
			continue
		}
		call := basecall.ChunkCall{
			ReadID:    item.chunk.ReadID,
			Index:     item.chunk.Index,
			NumChunks: item.chunk.NumChunks,
			Failed:    true,
		}
		if item.em != nil && atomic.LoadInt32(&rs.cancelled) == 0 {
			c, err := dec.Decode(item.chunk, item.em)
			if err != nil {
				log.Error.Printf("read %s chunk %d: decode: %v", item.chunk.ReadID, item.chunk.Index, err)
				stats.FailedChunks++
			} else {
				call = c
			}
		}
		if err := rs.oq.Insert(call.Index, call); err != nil {
			log.Error.Printf("read %s chunk %d: %v", call.ReadID, call.Index, err)
		}
	}
	p.mergeStats(stats)
}

// runStitch collects the ordered chunk calls for each read on its shard,
// stitches and scores them, and writes the result to the sink.
func (p *Pipeline) runStitch(ctx context.Context, in <-chan *readState) {
	stitcher := basecall.NewStitcher(p.opts)
	scorer := basecall.NewQualityScorer(p.opts)
	var stats basecall.Stats
	for rs := range in {
		calls := make([]basecall.ChunkCall, 0, rs.numChunks)
		for len(calls) < rs.numChunks {
			entry, ok, err := rs.oq.Next()
			if err != nil || !ok {
				break
			}
			calls = append(calls, entry.(basecall.ChunkCall))
		}
		p.mu.Lock()
		delete(p.reads, rs.id)
		p.mu.Unlock()
		if atomic.LoadInt32(&rs.cancelled) != 0 {
			stats.CancelledReads++
			continue
		}
		if len(calls) < rs.numChunks {
			continue
		}
		asm := stitcher.Stitch(calls)
		quals := scorer.Score(asm)
		sr := &basecall.StitchedRead{
			ID:      rs.id,
			Channel: rs.channel,
			Start:   rs.start,
			Seq:     gunsafe.BytesToString(asm.Seq),
			Quals:   quals,
		}
		if asm.Incomplete {
			sr.Flags |= basecall.FlagIncomplete
			stats.IncompleteReads++
		}
		for _, j := range asm.Joins {
			if j.LowConfidence {
				sr.Flags |= basecall.FlagLowConfidenceJoin
				stats.LowConfidenceJoins++
			}
		}
		stats.StitchedReads++
		if err := p.sink.Write(ctx, sr); err != nil {
			p.err.Set(err)
		}
	}
	p.mergeStats(stats)
}

func (p *Pipeline) mergeStats(s basecall.Stats) {
	p.mu.Lock()
	p.stats = p.stats.Merge(s)
	p.mu.Unlock()
}
