package subscriptions

import (
	"context"
	"fmt"

	"github.com/marcelsud/webhook-dispatch/webhook"
	"github.com/rs/zerolog"
)

// SeedCreator is recorded as created_by on seeded webhooks
const SeedCreator = "seed"

// Registry is the part of webhook.Service the seeder needs
type Registry interface {
	List(ctx context.Context) ([]webhook.Webhook, error)
	Register(ctx context.Context, in webhook.RegisterInput) (webhook.Webhook, error)
	Deactivate(ctx context.Context, id string) error
}

// SeedResult reports what Seed did
type SeedResult struct {
	Registered []string
	Skipped    []string
}

// Seed registers every loaded subscription whose name is not registered yet
// Existing webhooks are never modified
func Seed(ctx context.Context, l *Loader, registry Registry, logger zerolog.Logger) (SeedResult, error) {
	existing, err := registry.List(ctx)
	if err != nil {
		return SeedResult{}, fmt.Errorf("listing webhooks: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, wh := range existing {
		known[wh.Name] = true
	}

	var result SeedResult
	for _, sub := range l.List() {
		if known[sub.Name] {
			result.Skipped = append(result.Skipped, sub.Name)
			continue
		}

		wh, err := registry.Register(ctx, sub.Input(SeedCreator))
		if err != nil {
			return result, fmt.Errorf("registering webhook %s: %w", sub.Name, err)
		}
		if !sub.Active {
			if err := registry.Deactivate(ctx, wh.ID); err != nil {
				return result, fmt.Errorf("deactivating webhook %s: %w", sub.Name, err)
			}
		}

		logger.Info().
			Str("webhook_id", wh.ID).
			Str("name", sub.Name).
			Strs("events", sub.Events.Names()).
			Bool("active", sub.Active).
			Msg("seeded webhook")
		result.Registered = append(result.Registered, sub.Name)
	}

	return result, nil
}
