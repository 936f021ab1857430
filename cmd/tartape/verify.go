package main

import (
	"flag"
	"fmt"

	"github.com/distr1/tartape/internal/player"
)

func cmdVerify(args []string) error {
	fset := flag.NewFlagSet("verify", flag.ExitOnError)
	root := fset.String("root", ".", "directory holding the tape to verify")
	spotCheck := fset.Int("spot-check", 0, "check only a uniform random sample of this many tracks (0 = full verify)")
	if err := fset.Parse(args); err != nil {
		return err
	}

	p, err := player.Open(*root)
	if err != nil {
		return err
	}
	defer p.Close()

	if *spotCheck > 0 {
		if err := p.SpotCheck(*spotCheck); err != nil {
			return err
		}
		fmt.Printf("spot-check of %d tracks under %s passed\n", *spotCheck, *root)
		return nil
	}

	if err := p.Verify(); err != nil {
		return err
	}
	fmt.Printf("full verify of %s passed\n", *root)
	return nil
}
