// Command qpiped is a mutually-authenticated QUIC tunneling proxy. It
// supports four operations: generating a client key and CSR, signing a CSR
// into a portable package, running the client side of a tunnel, and
// running the server.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"
)

const usage = `qpiped: mutually-authenticated QUIC tunneling proxy

Usage:
  qpiped keygen [-out-csr path] [-out-key path]
  qpiped issue [-state dir] <csr-file>
  qpiped connect -source <bind_addr:port> -target <host:port> [-key path] [-rate bytes/sec] <server_addr:port>
  qpiped serve [-state dir] [-sans host1,host2,...] [-api bind_addr:port] [-rate bytes/sec] [bind_addr:port]

Flags go before the positional argument.
`

const defaultStateDir = "./qpiped-state"

// splitCSV splits a comma-separated flag value, trimming whitespace and
// dropping empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "keygen", "gen-client":
		err = runKeygen(os.Args[2:])
	case "issue":
		err = runIssue(os.Args[2:])
	case "connect":
		err = runConnect(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stderr, usage)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "qpiped: unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}

	if err != nil {
		log.Printf("qpiped: %v", err)
		os.Exit(1)
	}
}
