// Command onecd is a standalone reader for 1CD-style container files:
// schema listing, row dumping and the fallback marker scanner.
//
// Exit codes: 0 success, 2 container unreadable, 3 table not found.
package main

import (
	"fmt"
	"os"
)

const usage = `Usage: onecd <command> [flags]

Commands:
  read-schema   <container> [--table NAME]        list tables or one table's columns
  dump-rows     <container> --table NAME          emit decoded rows as JSON lines
                [--limit N] [--resolve-blobs]
  scan-markers  <container> --markers a,b,c       fallback pattern scan over a byte range
                [--offset O] [--length L] [--context N]
  stats         <container> [--workers N]         parallel per-table row/gap counts

Global flags (every command):
  --config FILE     YAML config file
  --log-level LVL   debug | info | warn | error
`

const (
	exitOK         = 0
	exitUnreadable = 2
	exitNotFound   = 3
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(exitUnreadable)
	}

	var code int
	switch os.Args[1] {
	case "read-schema":
		code = cmdReadSchema(os.Args[2:])
	case "dump-rows":
		code = cmdDumpRows(os.Args[2:])
	case "scan-markers":
		code = cmdScanMarkers(os.Args[2:])
	case "stats":
		code = cmdStats(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		code = exitUnreadable
	}
	os.Exit(code)
}
