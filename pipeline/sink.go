package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/biogo/store/llrb"
	"github.com/suhas-arun/bonito/basecall"
)

// Sink consumes finished reads.  Write may be called concurrently from
// multiple stitch workers and must be safe for that.
type Sink interface {
	Write(ctx context.Context, r *basecall.StitchedRead) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, r *basecall.StitchedRead) error

// Write implements Sink.
func (f SinkFunc) Write(ctx context.Context, r *basecall.StitchedRead) error {
	return f(ctx, r)
}

type sortedRead struct {
	r *basecall.StitchedRead
}

func (s sortedRead) Compare(c llrb.Comparable) int {
	o := c.(sortedRead)
	if s.r.Start != o.r.Start {
		if s.r.Start < o.r.Start {
			return -1
		}
		return 1
	}
	return strings.Compare(s.r.ID, o.r.ID)
}

// SortedSink buffers completed reads in memory and, on Flush, forwards them
// to the destination sink ordered by acquisition start time, then read id.
// Stitch workers finish reads in nondeterministic order; sorting here gives
// downstream consumers a stable stream.
type SortedSink struct {
	dst Sink

	mu   sync.Mutex
	tree llrb.Tree
}

// NewSortedSink returns a SortedSink forwarding to dst.
func NewSortedSink(dst Sink) *SortedSink {
	return &SortedSink{dst: dst}
}

// Write implements Sink.  It never fails; errors surface from Flush.
func (s *SortedSink) Write(ctx context.Context, r *basecall.StitchedRead) error {
	s.mu.Lock()
	s.tree.Insert(sortedRead{r})
	s.mu.Unlock()
	return nil
}

// Flush writes the buffered reads to the destination sink in sorted order
// and empties the buffer.
func (s *SortedSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	reads := make([]*basecall.StitchedRead, 0, s.tree.Len())
	s.tree.Do(func(c llrb.Comparable) bool {
		reads = append(reads, c.(sortedRead).r)
		return false
	})
	s.tree = llrb.Tree{}
	s.mu.Unlock()
	for _, r := range reads {
		if err := s.dst.Write(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
