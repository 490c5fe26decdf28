package main

import (
	"fmt"
	"io"
	"os"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "--version" || cmd == "-version" {
		fmt.Printf("gviewer %s - text, ANSI art and binary viewer\n", version)
		return
	}
	if cmd == "--help" || cmd == "-h" || cmd == "help" {
		printUsage(os.Stdout)
		return
	}

	var err error
	args := os.Args[2:]
	switch cmd {
	case "cat":
		err = cmdCat(args, os.Stdout)
	case "view":
		err = cmdView(args)
	case "browse":
		err = cmdBrowse(args, os.Stdout)
	case "select":
		err = cmdSelect(args, os.Stdout)
	case "table":
		err = cmdTable(args, os.Stdout)
	case "sauce":
		err = cmdSauce(args, os.Stdout)
	case "serve":
		err = cmdServe(args)
	case "passwd":
		err = cmdPasswd(args, os.Stdin, os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `gviewer %s - text, ANSI art and binary viewer

Usage: gviewer <command> [options] [args]

Commands:
  cat      Render a file to stdout
  view     Open a file in the full-screen pager
  browse   Browse a directory, view files and select them
  select   Select files in a directory by glob pattern
  table    Print the CP437 to Unicode table
  sauce    Show the SAUCE record of a file
  serve    Serve the browser over SSH
  passwd   Set or remove an SSH viewer password

Common Options:
  -config DIR     Config directory (default: %s)
  -mode NAME      Input mode: ASCII, UTF8, CP437 or an IANA charset name
  -display NAME   Display mode: text, binary, hex
  -tab N          Tab size
  -wrap           Wrap long lines
  -legacy-utf8    Emit the historical lead byte for code points past U+FFFF
  -member NAME    Read NAME from the archive given as FILE
  -debug          Enable debug logging
  -log FILE       Append logs to FILE

Examples:
  gviewer cat -mode CP437 logo.ans
  gviewer view -follow /var/log/syslog
  gviewer view -member FILE_ID.DIZ release.zip
  gviewer select -u '*.bak' ~/src
  gviewer passwd -config /etc/gviewer sysop
  gviewer serve -config /etc/gviewer
`, version, defaultConfigDir())
}
