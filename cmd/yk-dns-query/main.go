// yk-dns-query is a small companion client: it sends one DNS query to a
// resolver and prints the decoded response sections.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/wire"
)

func main() {
	var (
		server    = flag.String("server", "127.0.0.1:10053", "resolver address to query")
		typeName  = flag.String("type", "A", "record type to query (A, AAAA, CNAME or NS)")
		recursive = flag.Bool("recursive", true, "request recursive resolution")
		timeout   = flag.Duration("timeout", 5*time.Second, "time to wait for the response")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <hostname>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := query(*server, *typeName, flag.Arg(0), *recursive, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func query(server, typeName, hostname string, recursive bool, timeout time.Duration) error {
	rrtype, ok := wire.TypeFromString(typeName)
	if !ok {
		return fmt.Errorf("unknown record type %q", typeName)
	}

	conn, err := net.Dial("udp", server)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", server, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	request := wire.NewQuery(rrtype, hostname, recursive)
	if _, err := conn.Write(request.Encode()); err != nil {
		return fmt.Errorf("sending query: %w", err)
	}

	buf := make([]byte, 2048)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("receiving response: %w", err)
	}

	response, err := wire.DecodeMessage(buf[:n])
	if err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if response.ID != request.ID {
		return fmt.Errorf("response ID %#04x does not match query ID %#04x", response.ID, request.ID)
	}

	fmt.Printf(";; %s %s @%s -> %s (transaction %#04x)\n",
		typeName, hostname, server, response.RCode, response.ID)
	printSection("ANSWER", response.Answers)
	printSection("AUTHORITY", response.Authority)
	printSection("ADDITIONAL", response.Additional)
	return nil
}

func printSection(title string, records []*wire.Record) {
	if len(records) == 0 {
		return
	}
	fmt.Printf("\n;; %s\n", title)
	for _, r := range records {
		fmt.Printf("%-30s %6d %-6s %s\n", r.Name, r.TTL, r.Type, r.Value)
	}
}
