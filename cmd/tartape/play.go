package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/distr1/tartape"
	"github.com/distr1/tartape/internal/player"
	"github.com/distr1/tartape/internal/stream"
)

func cmdPlay(args []string) error {
	fset := flag.NewFlagSet("play", flag.ExitOnError)
	root := fset.String("root", ".", "directory holding the tape to play")
	startOffset := fset.Uint64("start-offset", 0, "resume byte offset (0 plays from the beginning)")
	chunkSize := fset.Int("chunk-size", tartape.DefaultChunkSize, "maximum content bytes per data event")
	fastVerify := fset.Bool("fast-verify", true, "spot-check instead of fully verifying before playing")
	out := fset.String("out", "", "write the stream to this path instead of stdout")
	if err := fset.Parse(args); err != nil {
		return err
	}

	p, err := player.Open(*root)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := interruptibleContext()
	defer cancel()

	events, errc, err := p.Play(ctx,
		tartape.WithStartOffset(*startOffset),
		tartape.WithChunkSize(*chunkSize),
		tartape.WithFastVerify(*fastVerify))
	if err != nil {
		return err
	}

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	// A progress line only makes sense on an interactive terminal; piped
	// output (into a file, or another process) gets none, matching how a
	// redirected `tar` invocation behaves.
	showProgress := isatty.IsTerminal(os.Stderr.Fd()) && *out != ""
	var written uint64

	for e := range events {
		if len(e.Bytes) > 0 {
			if _, err := w.Write(e.Bytes); err != nil {
				return tartape.NewIOError("writing stream output", err)
			}
			written += uint64(len(e.Bytes))
		}
		if showProgress && e.Kind == stream.FileEnd {
			fmt.Fprintf(os.Stderr, "\r%s: %d bytes written", e.ArcPath, written)
		}
	}
	if showProgress {
		fmt.Fprintln(os.Stderr)
	}

	return <-errc
}
