// Command keysclient posts an exposure file to a running keys server and
// copies the result stream to stdout.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"keyslookup/internal/adapters/exposure"
)

var (
	server    = flag.String("server", "http://localhost:8080", "keys server base url")
	inPath    = flag.String("in", "", "exposure file (csv, xlsx or json)")
	format    = flag.String("format", "csv", "result format: csv or ndjson")
	countries = flag.String("countries", "", "comma-separated country codes to keep")
	timeout   = flag.Duration("timeout", 10*time.Minute, "request timeout")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "keysclient:", err)
		os.Exit(1)
	}
}

func run() error {
	if *inPath == "" {
		return fmt.Errorf("-in is required")
	}
	f, err := os.Open(*inPath)
	if err != nil {
		return err
	}
	defer f.Close()

	client := resty.New().
		SetBaseURL(*server).
		SetTimeout(*timeout)

	req := client.R().
		SetDoNotParseResponse(true).
		SetQueryParam("format", *format).
		SetQueryParam("input", exposure.FormatFromPath(*inPath)).
		SetBody(f)
	if *countries != "" {
		req.SetQueryParamsFromValues(map[string][]string{"country": strings.Split(*countries, ",")})
	}

	resp, err := req.Post("/lookup")
	if err != nil {
		return err
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		msg, _ := io.ReadAll(body)
		return fmt.Errorf("server returned %s: %s", resp.Status(), strings.TrimSpace(string(msg)))
	}
	if _, err := io.Copy(os.Stdout, body); err != nil {
		return err
	}
	if msg := resp.RawResponse.Trailer.Get("X-Lookup-Error"); msg != "" {
		return fmt.Errorf("lookup aborted: %s", msg)
	}
	return nil
}
