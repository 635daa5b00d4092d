package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bgmkit/bgm"
	"github.com/bgmkit/bgm/logger"
	"github.com/bgmkit/bgm/version"
)

func main() {
	config := MakeConfig()
	safe := flag.Bool("n", false, "Never overwrite files; if file already exists and would be overwritten, give an error.")
	help := flag.Bool("h", false, "Show help.")
	jsonOut := flag.Bool("j", false, "Convert .bin files to .json.")
	yamlOut := flag.Bool("y", false, "Convert .bin files to .yml.")
	binOut := flag.Bool("b", false, "Write .bin even when the input is a .bin (re-encode).")
	check := flag.Bool("c", false, "Do not write files; check that each .bin encodes back to identical bytes.")
	info := flag.Bool("i", false, "Do not write files; print a summary of each song.")
	strict := flag.Bool("strict", false, "Reject .bin files whose declared size does not match the file.")
	outPath := flag.String("o", "", "Directory or filename where to write the output. Extension is ignored. By default, output is placed in the working directory.")
	logLevel := flag.String("l", config.LogLevel, "Log level: debug, info, warn or error.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String())
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	if err := logger.Init(os.Stderr, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if config.YmlError != nil {
		slog.Warn("could not read user config, using defaults", "err", config.YmlError)
	}
	switch {
	case *jsonOut:
		config.Format = "json"
	case *yamlOut:
		config.Format = "yml"
	}
	if *safe {
		config.Overwrite = false
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	c := converter{
		config:  config,
		outPath: *outPath,
		binOut:  *binOut,
		decoder: bgm.Decoder{Strict: *strict, Logger: logger.Get()},
		stdout:  os.Stdout,
	}
	switch {
	case *check:
		c.mode = modeCheck
	case *info:
		c.mode = modeInfo
	}

	retval := 0
	for _, param := range flag.Args() {
		files := []string{param}
		if st, err := os.Stat(param); err == nil && st.IsDir() {
			files = nil
			for _, pattern := range []string{"*.bin", "*.yml", "*.json"} {
				matches, err := filepath.Glob(filepath.Join(param, pattern))
				if err != nil {
					fmt.Fprintf(os.Stderr, "could not glob the path %v: %v\n", param, err)
					retval = 1
					continue
				}
				files = append(files, matches...)
			}
		}
		for _, file := range files {
			if err := c.process(file); err != nil {
				fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
				retval = 1
			}
		}
	}
	os.Exit(retval)
}

type mode int

const (
	modeConvert mode = iota
	modeCheck
	modeInfo
)

type converter struct {
	config  Config
	mode    mode
	outPath string
	binOut  bool
	decoder bgm.Decoder
	stdout  io.Writer
}

func (c *converter) process(filename string) error {
	input, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("could not read file %v: %v", filename, err)
	}
	isBinary := bytes.HasPrefix(input, []byte(bgm.Magic))
	var song *bgm.Bgm
	if isBinary {
		song, err = c.decoder.Decode(bytes.NewReader(input))
	} else {
		song, err = parseText(filename, input)
	}
	if err != nil {
		return err
	}

	switch c.mode {
	case modeCheck:
		if !isBinary {
			return fmt.Errorf("round-trip check needs a .bin file")
		}
		return checkRoundTrip(song, input)
	case modeInfo:
		printInfo(c.stdout, filename, song)
		return nil
	}

	if isBinary && !c.binOut {
		var text []byte
		if c.config.Format == "json" {
			text, err = bgm.ToJSON(song)
		} else {
			text, err = bgm.ToYAML(song)
		}
		if err != nil {
			return fmt.Errorf("could not marshal the song as %v: %v", c.config.Format, err)
		}
		return c.output(filename, "."+c.config.Format, text)
	}
	if c.config.Shrink {
		shrink(song)
	}
	bin, err := bgm.Encode(song)
	if err != nil {
		return fmt.Errorf("encoding failed: %v", err)
	}
	return c.output(filename, ".bin", bin)
}

// parseText reads JSON for .json files and for anything starting with '{',
// YAML otherwise.
func parseText(filename string, input []byte) (*bgm.Bgm, error) {
	trimmed := bytes.TrimSpace(input)
	if filepath.Ext(filename) == ".json" || bytes.HasPrefix(trimmed, []byte("{")) {
		song, err := bgm.FromJSON(input)
		if err != nil {
			return nil, fmt.Errorf("song could not be unmarshaled as .json: %v", err)
		}
		return song, nil
	}
	song, err := bgm.FromYAML(input)
	if err != nil {
		return nil, fmt.Errorf("song could not be unmarshaled as .yml: %v", err)
	}
	return song, nil
}

func checkRoundTrip(song *bgm.Bgm, original []byte) error {
	encoded, err := bgm.Encode(song)
	if err != nil {
		return fmt.Errorf("encoding failed: %v", err)
	}
	if bytes.Equal(encoded, original) {
		return nil
	}
	n := min(len(encoded), len(original))
	for i := range n {
		if encoded[i] != original[i] {
			return fmt.Errorf("re-encoded file differs at %#x: got %#02x, want %#02x", i, encoded[i], original[i])
		}
	}
	return fmt.Errorf("re-encoded file is %#x bytes, original is %#x", len(encoded), len(original))
}

func shrink(song *bgm.Bgm) {
	for _, tl := range song.TrackLists {
		for i := range tl.Tracks {
			tl.Tracks[i].Commands.Shrink()
		}
	}
}

func (c *converter) output(filename string, extension string, contents []byte) error {
	_, name := filepath.Split(filename)
	var dir string
	if c.outPath != "" {
		// check if it's an already existing directory and the user just forgot trailing slash
		if info, err := os.Stat(c.outPath); err == nil && info.IsDir() {
			dir = c.outPath
		} else {
			outdir, outname := filepath.Split(c.outPath)
			if outdir != "" {
				dir = outdir
			}
			if outname != "" {
				name = outname
			}
		}
	}
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("could not get working directory, specify the output directory explicitly: %v", err)
		}
	}
	name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
	f := filepath.Join(dir, name)
	original, err := os.ReadFile(f)
	if err == nil {
		if bytes.Equal(original, contents) {
			return nil // no need to update
		}
		if !c.config.Overwrite {
			return fmt.Errorf("file %v would be overwritten", f)
		}
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("could not create output directory %v: %v", dir, err)
	}
	if err := os.WriteFile(f, contents, 0644); err != nil {
		return fmt.Errorf("could not write file %v: %v", f, err)
	}
	slog.Info("wrote", "file", f, "bytes", len(contents))
	return nil
}

func printInfo(w io.Writer, filename string, song *bgm.Bgm) {
	fmt.Fprintf(w, "%s: %q\n", filename, song.Name)
	for i, v := range song.Variations {
		if v == nil {
			continue
		}
		fmt.Fprintf(w, "  variation %d: %d segment ops\n", i, len(v.Segments))
	}
	for _, id := range song.SortedTrackListIDs() {
		tl := song.TrackLists[id]
		fmt.Fprintf(w, "  track list %d", id)
		if tl.Pos != nil {
			fmt.Fprintf(w, " @ %#x", *tl.Pos)
		}
		fmt.Fprintln(w)
		for j, t := range tl.Tracks {
			if t.Commands.IsEmpty() {
				continue
			}
			lo, hi := t.Commands.PitchRange()
			fmt.Fprintf(w, "    track %2d %-12q len %5d polyphony %d (%s) pitches [%#x, %#x)\n",
				j, t.Name, t.Commands.PlaybackTime(), t.Commands.MaxPolyphony(), t.Polyphony.Kind, lo, hi)
		}
	}
	for i, ins := range song.Instruments {
		name, ok := bgm.InstrumentName(ins.ID())
		if !ok {
			name = "?"
		}
		fmt.Fprintf(w, "  instrument %2d: bank %#02x patch %#02x %s\n", i, ins.Bank, ins.Patch, name)
	}
	fmt.Fprintf(w, "  %d drums\n", len(song.Drums))
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "BGM converter. Converts .bin songs to .yml or .json and back.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
