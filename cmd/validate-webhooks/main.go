package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/marcelsud/webhook-dispatch/config"
	"github.com/marcelsud/webhook-dispatch/subscriptions"
	"github.com/marcelsud/webhook-dispatch/webhook/urlguard"
)

/* validate-webhooks - Standalone CLI tool to validate a webhook seed file
 * Usage: go run cmd/validate-webhooks/main.go [webhooks.yaml]
 * Resolves every URL, so it needs DNS to pass
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	seedFile := "webhooks.yaml"
	if len(os.Args) > 1 {
		seedFile = os.Args[1]
	}

	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Validating webhook file: %s\n", seedFile)
	fmt.Println(strings.Repeat("-", 50))

	loader := subscriptions.NewLoader(cfg.TimeoutBounds())
	if err := loader.Load(seedFile); err != nil {
		fmt.Fprintf(os.Stderr, "VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	guard := urlguard.New(urlguard.WithAllowedSchemes(cfg.Schemes()...))

	subs := loader.List()
	failed := 0
	for i, sub := range subs {
		fmt.Printf("\n%d. Webhook: %s\n", i+1, sub.Name)
		fmt.Printf("   URL:     %s\n", sub.URL)
		fmt.Printf("   Events:  %s\n", sub.Events)
		if sub.Timeout > 0 {
			fmt.Printf("   Timeout: %s\n", sub.Timeout)
		} else {
			fmt.Printf("   Timeout: %s (default)\n", cfg.TimeoutBounds().Default)
		}
		fmt.Printf("   Active:  %t\n", sub.Active)

		if err := guard.ValidateOnCreate(ctx, sub.URL); err != nil {
			fmt.Printf("   URL check: FAILED (%v)\n", err)
			failed++
			continue
		}
		fmt.Printf("   URL check: ok\n")
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "\nVALIDATION FAILED: %d of %d webhook(s) have a forbidden URL\n", failed, len(subs))
		os.Exit(1)
	}
	fmt.Printf("\nAll %d webhook(s) are valid\n", len(subs))
}
