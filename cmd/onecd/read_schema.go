package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/INLOpen/onecd/core"
)

func cmdReadSchema(args []string) int {
	fs := flag.NewFlagSet("read-schema", flag.ExitOnError)
	tableName := fs.String("table", "", "print one table's column list instead of the table listing")
	cf := addCommonFlags(fs)
	path := parseCommand(fs, args)

	cfg, logger, err := cf.setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUnreadable
	}
	c, err := openContainer(path, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUnreadable
	}
	defer c.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	defer w.Flush()

	if *tableName == "" {
		fmt.Fprintln(w, "NAME\tSTATUS\tROWS\tCOLUMNS")
		for _, t := range c.Tables() {
			name := t.Name
			if name == "" {
				name = fmt.Sprintf("(entry #%d)", t.Ordinal)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", name, t.Status, t.RowCount, len(t.Columns))
		}
		return exitOK
	}

	ts, err := c.Schema(*tableName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, core.ErrTableNotFound) {
			return exitNotFound
		}
		return exitUnreadable
	}

	fmt.Fprintf(os.Stdout, "table %s: %d rows, row size %d bytes\n", ts.Name, ts.RowCount, ts.RowSize())
	fmt.Fprintln(w, "COLUMN\tTAG\tLENGTH\tINLINE BYTES")
	for _, col := range ts.Columns {
		tag := string(col.Type)
		if !col.Type.Known() {
			tag += " (unknown)"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", col.Name, tag, col.Length, col.InlineSize())
	}
	return exitOK
}
