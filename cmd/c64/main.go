// Command c64 drives a machine.C64 from the command line: load a ROM set
// plus an optional program image and run it for a bounded number of cycles,
// optionally tracing each instruction boundary. There is no display or audio
// output here -- a real frontend is an explicit out-of-scope collaborator
// (spec §1); this is the same kind of minimal run-loop shim the teacher's
// Atari frontend was before its SDL window/audio plumbing is stripped out.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/jmchacon/c64core/disasm"
	"github.com/jmchacon/c64core/loader"
	"github.com/jmchacon/c64core/machine"
	"github.com/jmchacon/c64core/vic"
)

var (
	kernalPath = flag.String("kernal", "", "path to an 8192 byte KERNAL ROM image")
	basicPath  = flag.String("basic", "", "path to an 8192 byte BASIC ROM image")
	charPath   = flag.String("char", "", "path to a 4096 byte character ROM image")
	prgPath    = flag.String("prg", "", "optional .prg image to load into RAM before running")
	sysAddr    = flag.Uint("sys", 0, "if nonzero, set the CPU's PC here after loading -prg instead of running the KERNAL's own reset sequence")
	standard   = flag.String("standard", "pal", "raster standard: pal or ntsc")
	cycles     = flag.Uint64("cycles", 1_000_000, "number of phi2 cycles to run")
	trace      = flag.Bool("trace", false, "disassemble and print every instruction boundary")
	debug      = flag.Bool("debug", false, "enable per-chip debug logging")
)

func readROM(path string, size int, name string) []uint8 {
	if path == "" {
		log.Fatalf("-%s is required", name)
	}
	b, err := ioutil.ReadFile(path)
	if err != nil {
		log.Fatalf("reading %s ROM: %v", name, err)
	}
	if len(b) != size {
		log.Fatalf("%s ROM %q is %d bytes, want %d", name, path, len(b), size)
	}
	return b
}

func main() {
	flag.Parse()

	std := vic.PAL
	switch *standard {
	case "pal":
		std = vic.PAL
	case "ntsc":
		std = vic.NTSC
	default:
		log.Fatalf("-standard must be pal or ntsc, got %q", *standard)
	}

	def := &machine.C64Def{
		Kernal:   readROM(*kernalPath, 8192, "kernal"),
		Basic:    readROM(*basicPath, 8192, "basic"),
		Char:     readROM(*charPath, 4096, "char"),
		Standard: std,
		Debug:    *debug,
	}

	c, err := machine.Init(def)
	if err != nil {
		log.Fatalf("machine.Init: %v", err)
	}

	if *prgPath != "" {
		raw, err := ioutil.ReadFile(*prgPath)
		if err != nil {
			log.Fatalf("reading -prg: %v", err)
		}
		prg, err := loader.LoadPRG(raw)
		if err != nil {
			log.Fatalf("loader.LoadPRG: %v", err)
		}
		loader.Place(c.RAM(), prg.Addr, prg.Data)
		if *sysAddr != 0 {
			loader.PresetZeroPage(c.RAM())
			c.CPU().PC = uint16(*sysAddr)
		}
	}

	for i := uint64(0); i < *cycles; i++ {
		if *trace && c.CPU().InstructionDone() {
			line, _ := disasm.Step(c.CPU().PC, c.RAM())
			fmt.Println(line)
		}
		if err := c.Tick(); err != nil {
			fmt.Fprintf(os.Stderr, "tick %d: %v\n", i, err)
			os.Exit(1)
		}
	}
}
