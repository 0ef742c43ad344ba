package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/INLOpen/onecd/scanner"
	"github.com/INLOpen/onecd/sys"
)

// cmdScanMarkers runs the fallback pattern scanner over an explicit byte
// range. The structured decoder is bypassed entirely: the scan works even on
// containers whose header or directory is unreadable, which is the point.
// As a diagnostic tool it always exits 0; findings (or the lack of them)
// carry no correctness claim.
func cmdScanMarkers(args []string) int {
	fs := flag.NewFlagSet("scan-markers", flag.ExitOnError)
	markersCSV := fs.String("markers", "", "comma-separated ASCII markers to search for")
	offset := fs.Int64("offset", 0, "start of the byte window")
	length := fs.Int64("length", 0, "window length (0 = to end of file)")
	contextBytes := fs.Int("context", 0, "context bytes around each hit (0 = config default)")
	cf := addCommonFlags(fs)
	path := parseCommand(fs, args)

	cfg, logger, err := cf.setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitOK
	}

	var markers [][]byte
	for _, m := range strings.Split(*markersCSV, ",") {
		if m != "" {
			markers = append(markers, []byte(m))
		}
	}
	if len(markers) == 0 {
		for _, m := range cfg.Scanner.Markers {
			markers = append(markers, []byte(m))
		}
	}
	if len(markers) == 0 {
		fmt.Fprintln(os.Stderr, "no markers given (use -markers or the config's scanner.markers)")
		return exitOK
	}

	if path == "" {
		fmt.Fprintln(os.Stderr, "missing container path argument")
		return exitOK
	}
	file, err := sys.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitOK
	}
	defer file.Close()

	window := *length
	if window == 0 {
		stat, err := file.Stat()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitOK
		}
		window = stat.Size() - *offset
	}

	ctxBytes := *contextBytes
	if ctxBytes == 0 {
		ctxBytes = cfg.Scanner.ContextBytes
	}
	findings, err := scanner.Scan(context.Background(), file, *offset, window, markers, scanner.Options{
		ContextBytes: ctxBytes,
	})
	if err != nil {
		logger.Warn("scan stopped early", "error", err)
	}

	for _, f := range findings {
		fmt.Printf("%#010x  %-16q  %q\n", f.Offset, f.Marker, f.Context)
	}
	fmt.Fprintf(os.Stderr, "%d occurrence(s) of %d marker(s) in [%d, +%d)\n",
		len(findings), len(markers), *offset, window)
	return exitOK
}
