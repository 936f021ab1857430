// Command tartape records and plays back deterministic, resumable,
// integrity-checked TAR streams.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// verbs mirrors distri's own top-level command dispatcher: one entry
// per subcommand, each owning its own flag.FlagSet.
var verbs = map[string]func(args []string) error{
	"record": cmdRecord,
	"play":   cmdPlay,
	"verify": cmdVerify,
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("tartape: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	verb, ok := verbs[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "tartape: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err := verb(os.Args[2:]); err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: tartape <record|play|verify> [flags]")
}

// interruptibleContext returns a context canceled on SIGINT/SIGTERM, so a
// "play" in progress can stop its producer goroutine and let the deferred
// player.Close run instead of leaving the tape's bbolt file locked.
func interruptibleContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		signal.Stop(sig) // a second signal falls through to the default handler
		cancel()
	}()
	return ctx, cancel
}
