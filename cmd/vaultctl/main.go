// Package main provides vaultctl, a command line client for the vaultmark
// control API.
//
// Usage:
//
//	vaultctl [--addr http://127.0.0.1:8787] sync
//	vaultctl authorize
//	vaultctl callback 'vaultmark://oauth/callback?code=...&state=...'
//	vaultctl status
//	vaultctl logout
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultAddr = "http://127.0.0.1:8787"

type messageData struct {
	Message string `json:"message"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vaultctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	addr := fs.String("addr", envOr("VAULTMARK_ADDR", defaultAddr), "Control API base URL")
	timeout := fs.Duration("timeout", 2*time.Minute, "Request timeout")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(stderr)
		return 2
	}

	c := newClient(*addr, *timeout)
	ctx := context.Background()

	out, err := dispatch(ctx, c, fs.Arg(0), fs.Args()[1:])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, out)
	return 0
}

func dispatch(ctx context.Context, c *client, cmd string, rest []string) (string, error) {
	switch cmd {
	case "sync":
		var res messageData
		if err := c.do(ctx, http.MethodPost, "/api/v1/sync", nil, &res); err != nil {
			return "", err
		}
		return res.Message, nil

	case "authorize":
		var res struct {
			AuthorizationURL string `json:"authorization_url"`
		}
		if err := c.do(ctx, http.MethodPost, "/api/v1/auth/authorize", nil, &res); err != nil {
			return "", err
		}
		return "Open this URL in your browser to connect your account:\n" + res.AuthorizationURL, nil

	case "callback":
		if len(rest) != 1 {
			return "", fmt.Errorf("usage: vaultctl callback <redirect-uri>")
		}
		var res messageData
		body := map[string]string{"uri": rest[0]}
		if err := c.do(ctx, http.MethodPost, "/api/v1/auth/callback", body, &res); err != nil {
			return "", err
		}
		return res.Message, nil

	case "logout":
		var res messageData
		if err := c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, &res); err != nil {
			return "", err
		}
		return res.Message, nil

	case "status":
		var authStatus, syncStatus json.RawMessage
		if err := c.do(ctx, http.MethodGet, "/api/v1/auth/status", nil, &authStatus); err != nil {
			return "", err
		}
		if err := c.do(ctx, http.MethodGet, "/api/v1/sync/status", nil, &syncStatus); err != nil {
			return "", err
		}
		buf, err := json.MarshalIndent(map[string]json.RawMessage{
			"auth": authStatus,
			"sync": syncStatus,
		}, "", "  ")
		if err != nil {
			return "", err
		}
		return string(buf), nil

	default:
		return "", fmt.Errorf("unknown command %q", cmd)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: vaultctl [--addr URL] <sync|authorize|callback <uri>|status|logout>")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
