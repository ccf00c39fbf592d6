package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/raember/spoofbot"
	"github.com/raember/spoofbot/archive"
	"github.com/raember/spoofbot/cache/file"
)

// Demo: fetch a URL twice through the file cache (the second fetch is served
// from disk), or replay a recorded archive when one is given.
//
//	go run ./cmd https://example.com
//	go run ./cmd session.har https://example.com
func main() {
	ctx := context.Background()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	browser := spoofbot.StaticBrowser{
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
		Headers: http.Header{
			"Accept":          []string{"text/html,application/xhtml+xml"},
			"Accept-Language": []string{"en-US,en;q=0.5"},
		},
		Order: []string{"User-Agent", "Accept", "Accept-Language"},
	}

	args := os.Args[1:]
	if len(args) == 2 {
		if err := replay(ctx, logger, browser, args[0], args[1]); err != nil {
			panic(err)
		}
		return
	}
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: demo [archive.har] <url>")
		os.Exit(2)
	}

	store, err := file.New(".cache")
	if err != nil {
		panic(err)
	}

	wrap, err := spoofbot.New(store, nil, logger)
	if err != nil {
		panic(err)
	}
	transport := wrap(http.DefaultTransport)
	client := &http.Client{Transport: transport}

	for i := 0; i < 2; i++ {
		if err := fetch(ctx, client, browser, args[0]); err != nil {
			panic(err)
		}
		fmt.Printf("hit=%v\n", transport.Hit())
	}
}

func replay(ctx context.Context, logger *slog.Logger, browser spoofbot.Browser, path, url string) error {
	arc, err := archive.LoadFile(path)
	if err != nil {
		return err
	}

	policy := archive.DefaultMatchPolicy()
	policy.MatchHeaders = false
	policy.MatchHeaderOrder = false

	transport := spoofbot.NewReplay(arc, &policy, logger)
	transport.SetHeaderOrder(browser.HeaderOrder())

	client := &http.Client{Transport: transport}
	return fetch(ctx, client, browser, url)
}

func fetch(ctx context.Context, client *http.Client, browser spoofbot.Browser, url string) error {
	req, err := browser.NewRequest(ctx, http.MethodGet, url)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s: %d bytes\n", resp.Status, url, n)
	return nil
}
