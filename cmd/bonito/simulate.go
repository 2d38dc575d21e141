package main

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"github.com/suhas-arun/bonito/basecall"
	"github.com/suhas-arun/bonito/infersim"
	"v.io/x/lib/cmdline"
)

func newCmdSimulate() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "simulate",
		Short: "Generate a synthetic signal dump",
		Long: `
Simulate writes a recordio signal dump of synthetic reads with known base
sequences, for exercising the basecalling pipeline end to end.`,
		ArgsName: "signals.rio",
	}
	numFlag := cmd.Flags.Int("num-reads", 100, "Number of reads to generate.")
	minFlag := cmd.Flags.Int("min-bases", 50, "Minimum read length, in bases.")
	maxFlag := cmd.Flags.Int("max-bases", 500, "Maximum read length, in bases.")
	spbFlag := cmd.Flags.Int("samples-per-base", infersim.DefaultSamplesPerBase,
		"Signal samples emitted per base.")
	seedFlag := cmd.Flags.Int64("seed", 1, "Random seed.")
	truthFlag := cmd.Flags.String("truth", "",
		"If set, also write a TSV mapping read ids to their true sequences.")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("simulate takes one pathname argument, but got %v", argv)
		}
		if *minFlag <= 0 || *maxFlag < *minFlag {
			return fmt.Errorf("invalid read length range [%d, %d]", *minFlag, *maxFlag)
		}
		ctx := vcontext.Background()
		rng := rand.New(rand.NewSource(*seedFlag))
		reads := make([]*basecall.Read, 0, *numFlag)
		truth := make(map[string]string, *numFlag)
		for i := 0; i < *numFlag; i++ {
			n := *minFlag + rng.Intn(*maxFlag-*minFlag+1)
			r, seq := infersim.GenerateRead(rng, n, *spbFlag)
			reads = append(reads, r)
			truth[r.ID] = seq
		}
		if err := writeSignals(ctx, argv[0], reads); err != nil {
			return err
		}
		if *truthFlag != "" {
			if err := writeTruth(ctx, *truthFlag, reads, truth); err != nil {
				return err
			}
		}
		log.Printf("wrote %d simulated reads to %s", len(reads), argv[0])
		return nil
	})
	return cmd
}

func writeTruth(ctx context.Context, path string, reads []*basecall.Read, truth map[string]string) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("ID\tSEQ")
	if err = w.EndLine(); err != nil {
		return err
	}
	for _, r := range reads {
		w.WriteString(r.ID)
		w.WriteString(truth[r.ID])
		if err = w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}
