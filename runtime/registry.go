package runtime

import (
	"context"
	"interest-chat/contract"
	"interest-chat/domain/chat"
	"interest-chat/domain/event"
	"log/slog"
	"sync"
	"time"
)

type Set map[string]struct{}

// Registry is the in-memory fan-out router.
// It maps every interest channel to the clients currently joined to it.
// Nothing it holds survives a restart, a reconnecting client joins again.
type Registry struct {
	mu              sync.RWMutex
	sessions        map[string]contract.EventSink // map client -> Sink
	channelMembers  map[chat.InterestID]Set       // map channel to clients
	clientChannels  map[string]map[chat.InterestID]struct{}
	deliveryTimeout time.Duration
	log             *slog.Logger
}

func NewRegistry(log *slog.Logger, deliveryTimeout time.Duration) *Registry {
	return &Registry{
		sessions:        make(map[string]contract.EventSink),
		channelMembers:  make(map[chat.InterestID]Set),
		clientChannels:  make(map[string]map[chat.InterestID]struct{}),
		deliveryTimeout: deliveryTimeout,
		log:             log,
	}
}

// Join subscribes a client to a channel. Joining twice is a no-op.
// The sink is registered on the first join of the client.
func (r *Registry) Join(clientID string, sink contract.EventSink, channel chat.InterestID) error {
	if err := channel.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[clientID] = sink

	if _, ok := r.channelMembers[channel]; !ok {
		r.channelMembers[channel] = make(Set)
	}
	r.channelMembers[channel][clientID] = struct{}{}

	if _, ok := r.clientChannels[clientID]; !ok {
		r.clientChannels[clientID] = make(map[chat.InterestID]struct{})
	}
	r.clientChannels[clientID][channel] = struct{}{}
	return nil
}

// Leave removes a client from a channel. Leaving a channel never joined is a no-op.
func (r *Registry) Leave(clientID string, channel chat.InterestID) error {
	if err := channel.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(clientID, channel)
	if len(r.clientChannels[clientID]) == 0 {
		delete(r.clientChannels, clientID)
		delete(r.sessions, clientID)
	}
	return nil
}

// Disconnect drops the client from every channel it had joined.
func (r *Registry) Disconnect(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for channel := range r.clientChannels[clientID] {
		r.removeLocked(clientID, channel)
	}
	delete(r.clientChannels, clientID)
	delete(r.sessions, clientID)
}

func (r *Registry) removeLocked(clientID string, channel chat.InterestID) {
	if members, ok := r.channelMembers[channel]; ok {
		delete(members, clientID)

		// If no one is left in the channel, remove the channel entry entirely
		if len(members) == 0 {
			delete(r.channelMembers, channel)
		}
	}
	if channels, ok := r.clientChannels[clientID]; ok {
		delete(channels, channel)
	}
}

// Broadcast delivers the event to every client joined to the channel.
// Delivery is fire-and-forget, it returns how many sinks accepted the event.
func (r *Registry) Broadcast(ctx context.Context, channel chat.InterestID, e event.Event) int {
	return r.deliver(ctx, r.GetSinksForChannel(channel, ""), channel, e)
}

// RelayEphemeral behaves like Broadcast but skips the sender.
func (r *Registry) RelayEphemeral(ctx context.Context, senderID string, channel chat.InterestID, e event.Event) int {
	return r.deliver(ctx, r.GetSinksForChannel(channel, senderID), channel, e)
}

// GetSinksForChannel snapshots the sinks of a channel, without the excluded client.
// Returns nil if the channel has no subscriber.
func (r *Registry) GetSinksForChannel(channel chat.InterestID, excluded string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.channelMembers[channel]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for clientID := range members {
		if clientID == excluded {
			continue
		}
		if sink, exists := r.sessions[clientID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// IsJoined reports whether the client currently receives the channel's events.
func (r *Registry) IsJoined(clientID string, channel chat.InterestID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channelMembers[channel][clientID]
	return ok
}

// Connections returns the number of clients holding at least one subscription.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) deliver(ctx context.Context, sinks []contract.EventSink, channel chat.InterestID, e event.Event) int {
	delivered := 0
	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, r.deliveryTimeout)
		err := sink.Consume(sinkCtx, e)
		cancel()
		if err != nil {
			r.log.Debug("Event not delivered", "channel", channel, "event", e.Name, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}
