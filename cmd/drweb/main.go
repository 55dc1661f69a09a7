// Command drweb evaluates a single query document against its start_url and
// prints the resulting record tree as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/starlitlog/dr-web-engine/config"
	"github.com/starlitlog/dr-web-engine/driver/rod"
	"github.com/starlitlog/dr-web-engine/evaluator"
	"github.com/starlitlog/dr-web-engine/queryfile"
)

func main() {
	strict := flag.Bool("strict", false, "fail the whole run on any step error instead of soft-failing with diagnostics")
	noBrowser := flag.Bool("no-browser", false, "never launch a browser; fail queries that need one instead of escalating")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: drweb [-strict] [-no-browser] <query-file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := config.Load()

	q, err := queryfile.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "drweb: %v\n", err)
		os.Exit(1)
	}

	var browser *rod.Browser
	if !*noBrowser {
		browser, err = rod.NewBrowser(rod.Config{
			Headless:             cfg.Browser.Headless,
			NoSandbox:            cfg.Browser.NoSandbox,
			BrowserBin:           cfg.Browser.BrowserBin,
			Proxy:                cfg.Browser.DefaultProxy,
			MaxPages:             cfg.Browser.MaxPages,
			BlockedResourceTypes: cfg.Browser.BlockedResourceTypes,
			Stealth:              cfg.Browser.Stealth,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "drweb: failed to launch browser: %v\n", err)
			os.Exit(1)
		}
		defer browser.Close()
	}

	ev := evaluator.New(evaluator.Options{
		Browser:   browser,
		HTTPProxy: cfg.Browser.DefaultProxy,
		Eval:      cfg.Eval,
		LLM:       cfg.LLM,
		Logger:    slog.Default(),
	})

	result, err := ev.Run(context.Background(), q, *strict || cfg.Eval.Strict)
	if err != nil {
		fmt.Fprintf(os.Stderr, "drweb: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result.Records); err != nil {
		fmt.Fprintf(os.Stderr, "drweb: failed to encode result: %v\n", err)
		os.Exit(1)
	}
}
