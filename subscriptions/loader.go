package subscriptions

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/marcelsud/webhook-dispatch/webhook"
	"gopkg.in/yaml.v3"
)

/* Loader reads webhook subscriptions from a YAML seed file
 * Entries are keyed by name, which must be unique in the file
 */

// File represents the structure of the seed file
type File struct {
	Webhooks []Entry `yaml:"webhooks"`
}

// Entry represents a single webhook in the YAML file
type Entry struct {
	Name           string   `yaml:"name"`
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	TimeoutSeconds int      `yaml:"timeout_seconds"` // 0 means the configured default
	Active         *bool    `yaml:"active"`          // Default: true
}

// Loader holds the loaded subscriptions
type Loader struct {
	bounds        webhook.TimeoutBounds
	subscriptions map[string]*Subscription
}

// NewLoader creates a loader validating timeouts against bounds
func NewLoader(bounds webhook.TimeoutBounds) *Loader {
	return &Loader{
		bounds:        bounds,
		subscriptions: make(map[string]*Subscription),
	}
}

// Load reads and parses the seed file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading subscriptions file: %w", err)
	}
	return l.Parse(data)
}

// Parse loads subscriptions from YAML content
func (l *Loader) Parse(data []byte) error {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing subscriptions YAML: %w", err)
	}

	for _, e := range file.Webhooks {
		events, err := webhook.ParseEventSet(e.Events)
		if err != nil {
			return fmt.Errorf("invalid events for webhook %s: %w", e.Name, err)
		}

		active := true
		if e.Active != nil {
			active = *e.Active
		}

		sub := &Subscription{
			Name:    e.Name,
			URL:     e.URL,
			Events:  events,
			Timeout: time.Duration(e.TimeoutSeconds) * time.Second,
			Active:  active,
		}
		if err := sub.Validate(l.bounds); err != nil {
			return fmt.Errorf("validating subscription: %w", err)
		}
		if _, dup := l.subscriptions[sub.Name]; dup {
			return fmt.Errorf("duplicate webhook name: %s", sub.Name)
		}

		l.subscriptions[sub.Name] = sub
	}

	return nil
}

// Get retrieves a subscription by name
func (l *Loader) Get(name string) (*Subscription, error) {
	sub, exists := l.subscriptions[name]
	if !exists {
		return nil, fmt.Errorf("subscription not found: %s", name)
	}
	return sub, nil
}

// List returns all loaded subscriptions sorted by name
func (l *Loader) List() []*Subscription {
	subs := make([]*Subscription, 0, len(l.subscriptions))
	for _, sub := range l.subscriptions {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Name < subs[j].Name })
	return subs
}

// Exists checks if a subscription name exists
func (l *Loader) Exists(name string) bool {
	_, exists := l.subscriptions[name]
	return exists
}
