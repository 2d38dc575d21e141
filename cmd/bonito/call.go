package main

import (
	"flag"
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/suhas-arun/bonito/basecall"
	"github.com/suhas-arun/bonito/infersim"
	"github.com/suhas-arun/bonito/pipeline"
	"v.io/x/lib/cmdline"
)

func newCmdCall() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "call",
		Short: "Basecall a signal dump",
		Long: `
Call reads a recordio signal dump, basecalls every read in it, and writes the
called sequences as TSV.  An output path ending in .gz is gzip compressed.`,
		ArgsName: "signals.rio output.tsv[.gz]",
	}
	configFlag := cmd.Flags.String("config", "", "TOML file overriding the default basecalling options.")
	beamFlag := cmd.Flags.Int("beam-width", basecall.DefaultOpts.BeamWidth,
		"Number of beams kept per decoding step. 1 selects greedy decoding.")
	batchFlag := cmd.Flags.Int("batch-size", basecall.DefaultOpts.BatchSize,
		"Target number of chunks per inference batch.")
	chunkLenFlag := cmd.Flags.Int("chunk-len", basecall.DefaultOpts.ChunkLen,
		"Chunk length, in samples.")
	overlapFlag := cmd.Flags.Int("chunk-overlap", basecall.DefaultOpts.ChunkOverlap,
		"Overlap between neighboring chunks, in samples.")
	rioFlag := cmd.Flags.String("rio-output", "",
		"If set, also write the called reads as a zstd recordio dump at this path.")
	sortFlag := cmd.Flags.Bool("sort", false,
		"Buffer all output in memory and sort it by read start time before writing.")
	peakProbFlag := cmd.Flags.Float64("peak-prob", 0.9,
		"Probability mass the simulated backend places on the called symbol.")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("call takes signal and output pathname arguments, but got %v", argv)
		}
		ctx := vcontext.Background()
		opts, err := loadOpts(ctx, *configFlag)
		if err != nil {
			return err
		}
		// Flags set on the command line win over the config file.
		cmd.ParsedFlags.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "beam-width":
				opts.BeamWidth = *beamFlag
			case "batch-size":
				opts.BatchSize = *batchFlag
			case "chunk-len":
				opts.ChunkLen = *chunkLenFlag
			case "chunk-overlap":
				opts.ChunkOverlap = *overlapFlag
			}
		})

		sink, closeSink, err := createCalledOutput(ctx, argv[1])
		if err != nil {
			return err
		}
		var (
			pipeSink pipeline.Sink = sink
			closeRio func() error
			sortSink *pipeline.SortedSink
		)
		if *rioFlag != "" {
			var rio *rioSink
			if rio, closeRio, err = createCalledRio(ctx, *rioFlag); err != nil {
				_ = closeSink()
				return err
			}
			pipeSink = multiSink{sink, rio}
		}
		if *sortFlag {
			sortSink = pipeline.NewSortedSink(pipeSink)
			pipeSink = sortSink
		}
		backend := infersim.NewBackend()
		backend.PeakProb = *peakProbFlag

		readCh := make(chan *basecall.Read, 64)
		scanErrCh := make(chan error, 1)
		go func() {
			scanErrCh <- scanSignals(ctx, argv[0], readCh)
		}()
		stats, err := pipeline.New(opts, backend, pipeSink).Run(ctx, readCh)
		if e := <-scanErrCh; err == nil {
			err = e
		}
		if err == nil && sortSink != nil {
			err = sortSink.Flush(ctx)
		}
		if e := closeSink(); err == nil {
			err = e
		}
		if closeRio != nil {
			if e := closeRio(); err == nil {
				err = e
			}
		}
		log.Printf("called %d reads in %d chunks and %d batches: %d incomplete, %d cancelled, %d rejected",
			stats.StitchedReads, stats.Chunks, stats.Batches,
			stats.IncompleteReads, stats.CancelledReads, stats.RejectedReads)
		return err
	})
	return cmd
}
