package runtime

import (
	"context"
	"fmt"
	"interest-chat/domain/chat"
	"interest-chat/domain/event"
	"interest-chat/errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	mu     sync.Mutex
	events []event.Event
	err    error
}

func (s *Sink) Consume(_ context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *Sink) Received() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events...)
}

func newRegistry() *Registry {
	return NewRegistry(slog.Default(), time.Second)
}

func newChannel() chat.InterestID {
	return chat.InterestID(uuid.NewString())
}

func TestRegistry_Join_One_Channel_One_Client(t *testing.T) {
	req := require.New(t)
	registry := newRegistry()
	clientID := uuid.NewString()
	channel := newChannel()
	sink := &Sink{}

	// Given no client is connected
	req.Empty(registry.sessions)
	req.Empty(registry.channelMembers)

	// When a client joins a channel
	req.NoError(registry.Join(clientID, sink, channel))

	// Then
	req.Len(registry.sessions, 1)
	req.Len(registry.channelMembers, 1)
	req.Contains(registry.channelMembers[channel], clientID)
	req.True(registry.IsJoined(clientID, channel))
	req.Len(registry.GetSinksForChannel(channel, ""), 1)
}

func TestRegistry_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := newRegistry()
	clientID := uuid.NewString()
	channel := newChannel()
	sink := &Sink{}

	req.NoError(registry.Join(clientID, sink, channel))
	req.NoError(registry.Join(clientID, sink, channel))

	req.Len(registry.channelMembers[channel], 1)
	req.Equal(1, registry.Broadcast(context.Background(), channel, event.Event{Name: event.NewMessage}))
	req.Len(sink.Received(), 1)
}

func TestRegistry_Invalid_Channel_Rejected(t *testing.T) {
	req := require.New(t)
	registry := newRegistry()

	for _, channel := range []chat.InterestID{"", "   ", "not-an-id"} {
		req.ErrorIs(registry.Join("client", &Sink{}, channel), errors.ErrInvalidInterestID)
		req.ErrorIs(registry.Leave("client", channel), errors.ErrInvalidInterestID)
	}
	req.Empty(registry.sessions)
	req.Empty(registry.channelMembers)
}

func TestRegistry_Leave_One_Channel(t *testing.T) {
	req := require.New(t)
	registry := newRegistry()
	clientID1 := uuid.NewString()
	clientID2 := uuid.NewString()
	channel := newChannel()
	sink1 := &Sink{}
	sink2 := &Sink{}

	// Given two clients joined a channel
	req.NoError(registry.Join(clientID1, sink1, channel))
	req.NoError(registry.Join(clientID2, sink2, channel))

	// When one of them leaves
	req.NoError(registry.Leave(clientID1, channel))
	// And leaves again
	req.NoError(registry.Leave(clientID1, channel))

	// Then only the other one receives broadcasts
	req.Equal(1, registry.Broadcast(context.Background(), channel, event.Event{Name: event.NewMessage}))
	req.Empty(sink1.Received())
	req.Len(sink2.Received(), 1)
	req.Len(registry.sessions, 1)

	// When the last client leaves, the channel entry is removed
	req.NoError(registry.Leave(clientID2, channel))
	req.Empty(registry.channelMembers)
	req.Nil(registry.GetSinksForChannel(channel, ""))
}

func TestRegistry_Broadcast_Only_Reaches_The_Channel(t *testing.T) {
	req := require.New(t)
	registry := newRegistry()
	channelX := newChannel()
	channelY := newChannel()
	inX := &Sink{}
	inY := &Sink{}
	req.NoError(registry.Join("x", inX, channelX))
	req.NoError(registry.Join("y", inY, channelY))

	delivered := registry.Broadcast(context.Background(), channelX, event.Event{Name: event.NewImportantMessage, Data: "payload"})

	req.Equal(1, delivered)
	req.Equal([]event.Event{{Name: event.NewImportantMessage, Data: "payload"}}, inX.Received())
	req.Empty(inY.Received())

	// Broadcasting to an empty channel is not an error
	req.Equal(0, registry.Broadcast(context.Background(), newChannel(), event.Event{Name: event.NewMessage}))
}

func TestRegistry_Failing_Sink_Does_Not_Block_Others(t *testing.T) {
	req := require.New(t)
	registry := newRegistry()
	channel := newChannel()
	broken := &Sink{err: errors.ErrSlowConsumer}
	healthy := &Sink{}
	req.NoError(registry.Join("broken", broken, channel))
	req.NoError(registry.Join("healthy", healthy, channel))

	req.Equal(1, registry.Broadcast(context.Background(), channel, event.Event{Name: event.NewMessage}))
	req.Len(healthy.Received(), 1)
}

func TestRegistry_Relay_Excludes_Sender(t *testing.T) {
	req := require.New(t)
	registry := newRegistry()
	channel := newChannel()
	sender := &Sink{}
	other := &Sink{}
	req.NoError(registry.Join("sender", sender, channel))
	req.NoError(registry.Join("other", other, channel))

	typing := event.NewTyping("user-1", true)
	req.Equal(1, registry.RelayEphemeral(context.Background(), "sender", channel, typing))

	req.Empty(sender.Received())
	req.Equal([]event.Event{typing}, other.Received())
}

func TestRegistry_Disconnect_Cleans_Every_Channel(t *testing.T) {
	req := require.New(t)
	registry := newRegistry()
	clientID := uuid.NewString()
	sink := &Sink{}
	stayer := &Sink{}
	channels := []chat.InterestID{newChannel(), newChannel(), newChannel()}

	// Given a client joined three channels, sharing the first one
	for _, channel := range channels {
		req.NoError(registry.Join(clientID, sink, channel))
	}
	req.NoError(registry.Join("stayer", stayer, channels[0]))

	// When it disconnects
	registry.Disconnect(clientID)

	// Then it is absent from every channel
	for _, channel := range channels {
		req.False(registry.IsJoined(clientID, channel))
	}
	req.Len(registry.channelMembers, 1)
	req.NotContains(registry.sessions, clientID)
	req.NotContains(registry.clientChannels, clientID)

	// And later broadcasts never reach it
	req.Equal(1, registry.Broadcast(context.Background(), channels[0], event.Event{Name: event.NewMessage}))
	req.Equal(0, registry.Broadcast(context.Background(), channels[1], event.Event{Name: event.NewMessage}))
	req.Empty(sink.Received())

	// Disconnecting an unknown client is harmless
	registry.Disconnect("ghost")
}

func TestRegistry_Concurrent_Join_Leave(t *testing.T) {
	req := require.New(t)
	registry := newRegistry()
	channel := newChannel()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clientID := fmt.Sprintf("client-%d", i)
			_ = registry.Join(clientID, &Sink{}, channel)
			registry.Broadcast(context.Background(), channel, event.Event{Name: event.NewMessage})
			if i%2 == 0 {
				registry.Disconnect(clientID)
			}
		}(i)
	}
	wg.Wait()

	req.Len(registry.channelMembers[channel], 25)
	req.Equal(25, registry.Connections())
}
