// Command crx2rnx recovers a plain RINEX observation file from a
// Compact RINEX (CRINEX) file, transparently decompressing a leading
// LZW (.Z) layer if present.
package main

import (
	"io"
	"log"
	"os"

	"github.com/rumkex/crxgo/pkg/source"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "crx2rnx",
		Usage: "decompress a Compact RINEX (and optionally .Z-wrapped) observation file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output RINEX file path (defaults to the CRX2RNX naming convention)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln("[fatal]", err)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one input file is required", 1)
	}

	opts := &Options{InFile: c.Args().Get(0), OutFile: c.String("output")}

	if opts.OutFile == "" {
		outFile, err := outFileFor(opts.InFile)
		if err != nil {
			return err
		}

		opts.OutFile = outFile
	}

	if err := validateOptions(opts); err != nil {
		return err
	}

	log.Println("[info] decoding", opts.InFile, "->", opts.OutFile)

	if err := decode(opts); err != nil {
		return err
	}

	log.Println("[info] finished")
	return nil
}

func decode(opts *Options) error {
	fi, err := os.Open(opts.InFile)
	if err != nil {
		return err
	}

	defer fi.Close()

	fo, err := os.Create(opts.OutFile)
	if err != nil {
		return err
	}

	defer fo.Close()

	r, err := source.Open(fi)
	if err != nil {
		return err
	}

	_, err = io.Copy(fo, r)
	if err != nil && err != io.EOF {
		return err
	}

	return nil
}
