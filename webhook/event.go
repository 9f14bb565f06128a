package webhook

import (
	"fmt"
	"regexp"
	"sort"
)

// Wildcard is the event set value meaning "notify on every event"
const Wildcard = "*"

// TestEvent is the event name used by manual test deliveries
const TestEvent EventName = "webhook.test"

// eventNamePattern validates event names: hierarchical, full-stop delimited, [a-zA-Z0-9_.]
var eventNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

// EventName identifies a CMS event, e.g. "post.published"
type EventName string

// Validate checks the event name format
func (e EventName) Validate() error {
	if e == "" {
		return fmt.Errorf("event name cannot be empty")
	}
	if !eventNamePattern.MatchString(string(e)) {
		return fmt.Errorf("event name must be hierarchical and contain only [a-zA-Z0-9_.]: %s", e)
	}
	return nil
}

/* EventSet is either every event (the wildcard) or an explicit set of names
 * The zero value subscribes to nothing
 */
type EventSet struct {
	all   bool
	names map[EventName]struct{}
}

// AllEvents returns the wildcard subscription
func AllEvents() EventSet {
	return EventSet{all: true}
}

// ExplicitEvents returns a subscription to exactly the given names
func ExplicitEvents(names ...EventName) EventSet {
	set := EventSet{names: make(map[EventName]struct{}, len(names))}
	for _, n := range names {
		set.names[n] = struct{}{}
	}
	return set
}

// ParseEventSet builds an EventSet from its stored/string form
// ["*"] means all events; otherwise every entry must be a valid event name
func ParseEventSet(values []string) (EventSet, error) {
	if len(values) == 0 {
		return EventSet{}, fmt.Errorf("event set cannot be empty")
	}
	if len(values) == 1 && values[0] == Wildcard {
		return AllEvents(), nil
	}

	names := make([]EventName, 0, len(values))
	for _, v := range values {
		if v == Wildcard {
			return EventSet{}, fmt.Errorf("wildcard %q cannot be combined with other events", Wildcard)
		}
		name := EventName(v)
		if err := name.Validate(); err != nil {
			return EventSet{}, err
		}
		names = append(names, name)
	}
	return ExplicitEvents(names...), nil
}

// IsAll reports whether this is the wildcard subscription
func (s EventSet) IsAll() bool {
	return s.all
}

// Subscribes reports whether the set contains the event
func (s EventSet) Subscribes(event EventName) bool {
	if s.all {
		return true
	}
	_, ok := s.names[event]
	return ok
}

// Names returns the stored form: ["*"] or the sorted explicit names
func (s EventSet) Names() []string {
	if s.all {
		return []string{Wildcard}
	}
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, string(n))
	}
	sort.Strings(out)
	return out
}

// IsEmpty reports whether the set subscribes to nothing
func (s EventSet) IsEmpty() bool {
	return !s.all && len(s.names) == 0
}

func (s EventSet) String() string {
	if s.all {
		return Wildcard
	}
	return fmt.Sprintf("%v", s.Names())
}
