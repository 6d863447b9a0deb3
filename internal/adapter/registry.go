package adapter

import (
	"fmt"

	"github.com/learnloop/notification-engine/internal/domain"
)

// Registry resolves the adapter for a channel.
type Registry struct {
	adapters map[domain.Channel]Adapter
}

func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[domain.Channel]Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			return nil, fmt.Errorf("nil adapter")
		}
		channel := a.Channel()
		if !channel.IsValid() {
			return nil, fmt.Errorf("adapter declares invalid channel %q", channel)
		}
		if _, exists := r.adapters[channel]; exists {
			return nil, fmt.Errorf("duplicate adapter for channel %q", channel)
		}
		r.adapters[channel] = a
	}
	return r, nil
}

func (r *Registry) Get(channel domain.Channel) (Adapter, error) {
	a, ok := r.adapters[channel]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for channel %q", channel)
	}
	return a, nil
}

// Channels lists the channels with a registered adapter.
func (r *Registry) Channels() []domain.Channel {
	channels := make([]domain.Channel, 0, len(r.adapters))
	for _, c := range domain.Channels() {
		if _, ok := r.adapters[c]; ok {
			channels = append(channels, c)
		}
	}
	return channels
}
