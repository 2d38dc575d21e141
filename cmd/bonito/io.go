package main

import (
	"bytes"
	"context"
	"encoding/gob"
	"io"
	"strings"
	"sync"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/base/tsv"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/suhas-arun/bonito/basecall"
	"github.com/suhas-arun/bonito/pipeline"
)

func init() {
	recordiozstd.Init()
}

// Recordio header key and value identifying the dump layout, bumped on
// incompatible record changes.
const (
	formatVersionKey    = "bonito/format-version"
	signalFormatVersion = "signal/1"
	calledFormatVersion = "called/1"
)

func marshalRead(scratch []byte, v interface{}) ([]byte, error) {
	buf := bytes.NewBuffer(scratch[:0])
	if err := gob.NewEncoder(buf).Encode(v.(*basecall.Read)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalRead(in []byte) (interface{}, error) {
	r := &basecall.Read{}
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(r); err != nil {
		return nil, err
	}
	return r, nil
}

// writeSignals writes the reads to path as a zstd-compressed recordio signal
// dump.
func writeSignals(ctx context.Context, path string, reads []*basecall.Read) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "create signal dump %s", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Marshal:      marshalRead,
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(formatVersionKey, signalFormatVersion)
	w.AddHeader(recordio.KeyTrailer, true)
	for _, r := range reads {
		w.Append(r)
	}
	return errors.Wrapf(w.Finish(), "write signal dump %s", path)
}

// scanSignals streams the reads in the signal dump at path to out, closing
// out when the dump is exhausted.
func scanSignals(ctx context.Context, path string, out chan<- *basecall.Read) (err error) {
	defer close(out)
	in, err := file.Open(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "open signal dump %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	scanner := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{
		Unmarshal: unmarshalRead,
	})
	for scanner.Scan() {
		out <- scanner.Get().(*basecall.Read)
	}
	return errors.Wrapf(scanner.Err(), "scan signal dump %s", path)
}

func marshalCalled(scratch []byte, v interface{}) ([]byte, error) {
	buf := bytes.NewBuffer(scratch[:0])
	if err := gob.NewEncoder(buf).Encode(v.(*basecall.StitchedRead)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// rioSink appends called reads to a zstd recordio dump.
type rioSink struct {
	mu sync.Mutex
	w  recordio.Writer
}

func (s *rioSink) Write(_ context.Context, r *basecall.StitchedRead) error {
	s.mu.Lock()
	s.w.Append(r)
	s.mu.Unlock()
	return nil
}

// createCalledRio opens a called-read recordio destination at path.
func createCalledRio(ctx context.Context, path string) (*rioSink, func() error, error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "create called dump %s", path)
	}
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Marshal:      marshalCalled,
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(formatVersionKey, calledFormatVersion)
	w.AddHeader(recordio.KeyTrailer, true)
	sink := &rioSink{w: w}
	closeFn := func() error {
		err := errors.Wrapf(sink.w.Finish(), "write called dump %s", path)
		if e := out.Close(ctx); err == nil {
			err = e
		}
		return err
	}
	return sink, closeFn, nil
}

// multiSink fans every read out to each child sink.
type multiSink []pipeline.Sink

func (m multiSink) Write(ctx context.Context, r *basecall.StitchedRead) error {
	for _, s := range m {
		if err := s.Write(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// tsvSink writes called reads as TSV rows.  Qualities are rendered as a
// FASTQ-style string, each byte the quality value plus 33.
type tsvSink struct {
	mu sync.Mutex
	w  *tsv.Writer
}

func newTSVSink(w io.Writer) (*tsvSink, error) {
	tw := tsv.NewWriter(w)
	tw.WriteString("ID\tCHANNEL\tSTART\tFLAGS\tSEQ\tQUAL")
	if err := tw.EndLine(); err != nil {
		return nil, err
	}
	return &tsvSink{w: tw}, nil
}

func (s *tsvSink) Write(_ context.Context, r *basecall.StitchedRead) error {
	var qual strings.Builder
	qual.Grow(len(r.Quals))
	for _, q := range r.Quals {
		qual.WriteByte(q + 33)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.WriteString(r.ID)
	s.w.WriteInt64(int64(r.Channel))
	s.w.WriteInt64(r.Start)
	s.w.WriteString(r.Flags.String())
	s.w.WriteString(r.Seq)
	s.w.WriteString(qual.String())
	return s.w.EndLine()
}

func (s *tsvSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

// createCalledOutput opens the called-read TSV destination, gzipping when
// the path ends in .gz.
func createCalledOutput(ctx context.Context, path string) (*tsvSink, func() error, error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "create output %s", path)
	}
	var (
		w  io.Writer = out.Writer(ctx)
		gz *gzip.Writer
	)
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(w)
		w = gz
	}
	sink, err := newTSVSink(w)
	if err != nil {
		_ = out.Close(ctx)
		return nil, nil, err
	}
	closeFn := func() error {
		err := sink.Flush()
		if gz != nil {
			if e := gz.Close(); err == nil {
				err = e
			}
		}
		if e := out.Close(ctx); err == nil {
			err = e
		}
		return err
	}
	return sink, closeFn, nil
}
