package main

import (
	"flag"
	"fmt"

	"github.com/distr1/tartape"
	"github.com/distr1/tartape/internal/recorder"
)

func cmdRecord(args []string) error {
	fset := flag.NewFlagSet("record", flag.ExitOnError)
	anonymize := fset.Bool("anonymize", true, "replace owner uid/gid/uname/gname with 0/0/root/root")
	root := fset.String("root", ".", "directory to record")
	if err := fset.Parse(args); err != nil {
		return err
	}

	rec, err := recorder.New(*root, tartape.WithAnonymize(*anonymize))
	if err != nil {
		return err
	}

	fingerprint, err := rec.Commit()
	if err != nil {
		return err
	}

	fmt.Printf("recorded %s (fingerprint %s)\n", *root, fingerprint)
	return nil
}
