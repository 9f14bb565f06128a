package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/marcelsud/webhook-dispatch/config"
	"github.com/marcelsud/webhook-dispatch/webhook"
	"github.com/marcelsud/webhook-dispatch/webhook/delivery"
	"github.com/marcelsud/webhook-dispatch/webhook/postgres"
	whredis "github.com/marcelsud/webhook-dispatch/webhook/redis"
	"github.com/rs/zerolog"
)

/* dispatch - emits one event from the command line
 * Usage: echo '{"id":42}' | go run cmd/dispatch/main.go post.published
 */

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: dispatch <event> < payload.json")
		os.Exit(2)
	}
	event := webhook.EventName(os.Args[1])

	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	deliveryCfg, err := cfg.DeliveryConfig()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Printf("reading payload: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	webhooks := postgres.NewWebhookStore(db)
	defer webhooks.Close(ctx)

	queue, err := whredis.NewQueue(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.QueueName, 0)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer queue.Close(ctx)

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	dispatcher := delivery.NewDispatcher(webhooks, queue, deliveryCfg, logger)
	result, err := dispatcher.Dispatch(ctx, event, data)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}
