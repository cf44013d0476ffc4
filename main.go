// megalink - bank-switched megarom linker
//
// Usage: megalink [flags] game.rom main.rel video.rel support.lib ...
//
// Positional arguments are dispatched by extension: .rom names the output
// image (default out.rom), .rel is a relocatable object, .lib is an ar
// archive of objects pulled in on demand.
//
// Flags:
//   -l level   Log verbosity threshold (0=trace, 1=progress, 2=warnings)

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	level := flag.Int("l", 1, "log verbosity threshold (0=trace, 1=progress, 2=warnings)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] file.rom file.rel ... file.lib ...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "megalink — links relocatable objects into a bank-switched megarom image\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	log := newLogger(slogLevel(*level))
	ld := newLinker(log)
	romName := "out.rom"

	for _, arg := range flag.Args() {
		switch filepath.Ext(arg) {
		case ".rom":
			log.Info("rom name", "file", arg)
			romName = arg

		case ".rel":
			log.Info("processing object", "file", arg)
			mod, err := readObjectFile(arg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "megalink: %v\n", err)
				os.Exit(1)
			}
			ld.addModule(mod)

		case ".lib":
			log.Info("processing library", "file", arg)
			mods, err := readLibrary(arg, log)
			if err != nil {
				fmt.Fprintf(os.Stderr, "megalink: %v\n", err)
				os.Exit(1)
			}
			for _, mod := range mods {
				ld.addModule(mod)
			}

		default:
			log.Warn("ignoring argument with unknown extension", "file", arg)
		}
	}

	res, err := ld.link()
	if err != nil {
		fmt.Fprintf(os.Stderr, "megalink: %v\n", err)
		os.Exit(1)
	}

	if err := writeOutputs(romName, res.ROM, ld.store); err != nil {
		fmt.Fprintf(os.Stderr, "megalink: %v\n", err)
		os.Exit(1)
	}

	ramStart := res.Context.Config["RAM_START"]
	log.Info(fmt.Sprintf("Using %d bytes of ram, from 0x%04X to 0x%04X.",
		res.Context.RAMPtr-ramStart, ramStart, res.Context.RAMPtr))
	log.Info("link successful", "rom", romName, "size", len(res.ROM))
}
