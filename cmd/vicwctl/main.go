// Command vicwctl is a small CLI companion to vicwd, following the
// teacher's cmd/embedctl shape: parse flags, hit one HTTP endpoint, print
// the JSON result. It supports the three operator actions that don't need a
// full chat client: trigger /ingest, dump /stats, and force a /reset.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	addr := envOr("VICWCTL_ADDR", "http://localhost:8089")

	switch os.Args[1] {
	case "ingest":
		runIngest(os.Args[2:], addr)
	case "stats":
		runStats(os.Args[2:], addr)
	case "reset":
		runReset(os.Args[2:], addr)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: vicwctl <ingest|stats|reset> [flags]")
	fmt.Fprintln(os.Stderr, "  ingest -document <text> [-stdin] [-meta k=v,...]")
	fmt.Fprintln(os.Stderr, "  stats  [-session <id>]")
	fmt.Fprintln(os.Stderr, "  reset  [-session <id>]")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runIngest(args []string, addr string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	document := fs.String("document", "", "document text to ingest")
	stdin := fs.Bool("stdin", false, "read document text from STDIN")
	meta := fs.String("meta", "", "comma-separated k=v metadata pairs")
	fs.Parse(args)

	text := *document
	if *stdin {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("read stdin: %v", err)
		}
		text = string(b)
	}
	if text == "" {
		log.Fatal("no document provided; use -document or -stdin")
	}

	payload := map[string]any{"document": text}
	if *meta != "" {
		metadata := make(map[string]string)
		for _, pair := range strings.Split(*meta, ",") {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				log.Fatalf("bad -meta pair %q; want k=v", pair)
			}
			metadata[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
		payload["metadata"] = metadata
	}
	body, _ := json.Marshal(payload)
	postJSON(addr+"/ingest", body)
}

func runStats(args []string, addr string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	session := fs.String("session", "", "session id")
	fs.Parse(args)

	url := addr + "/stats"
	if *session != "" {
		url += "?session_id=" + *session
	}
	getJSON(url)
}

func runReset(args []string, addr string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	session := fs.String("session", "", "session id")
	fs.Parse(args)

	body, _ := json.Marshal(map[string]any{"session_id": *session})
	postJSON(addr+"/reset", body)
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

func postJSON(url string, body []byte) {
	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	printResponse(resp)
}

func getJSON(url string) {
	resp, err := httpClient.Get(url)
	if err != nil {
		log.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	printResponse(resp)
}

func printResponse(resp *http.Response) {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("read response: %v", err)
	}
	if resp.StatusCode/100 != 2 {
		log.Fatalf("%s: %s", resp.Status, string(b))
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, b, "", "  ") == nil {
		fmt.Println(pretty.String())
		return
	}
	fmt.Println(string(b))
}
