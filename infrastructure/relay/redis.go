package relay

import (
	"context"
	"fmt"
	"interest-chat/contract"
	"interest-chat/domain/chat"
	"interest-chat/domain/event"
	"interest-chat/errors"
	"interest-chat/observability"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
)

// RedisClient is the part of *redis.Client the relay uses.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type Options struct {
	Channel          string
	PublishTimeout   time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func DefaultOptions() Options {
	return Options{
		Channel:          "interest-chat:events",
		PublishTimeout:   time.Second,
		FailureThreshold: 5,
		OpenTimeout:      10 * time.Second,
	}
}

// envelope is what travels between replicas.
type envelope struct {
	Node     string          `json:"node"`
	Channel  chat.InterestID `json:"channel"`
	SenderID string          `json:"senderId,omitempty"`
	Event    event.Name      `json:"event"`
	Data     json.RawMessage `json:"data"`
}

// RedisRelay wraps the local router so that events reach the clients of every replica.
// Local delivery happens first and never depends on redis being reachable.
type RedisRelay struct {
	local   contract.IRouter
	client  RedisClient
	node    string
	options Options
	breaker *gobreaker.CircuitBreaker[int64]
	log     *slog.Logger
}

func NewRedisRelay(local contract.IRouter, client RedisClient, options Options, log *slog.Logger) *RedisRelay {
	r := &RedisRelay{
		local:   local,
		client:  client,
		node:    uuid.NewString(),
		options: options,
		log:     log,
	}
	r.breaker = gobreaker.NewCircuitBreaker[int64](gobreaker.Settings{
		Name:    "redis-relay",
		Timeout: options.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= options.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Relay circuit breaker changed state", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return r
}

func (r *RedisRelay) Join(clientID string, sink contract.EventSink, channel chat.InterestID) error {
	return r.local.Join(clientID, sink, channel)
}

func (r *RedisRelay) Leave(clientID string, channel chat.InterestID) error {
	return r.local.Leave(clientID, channel)
}

func (r *RedisRelay) Disconnect(clientID string) {
	r.local.Disconnect(clientID)
}

// IsJoined only knows the local sessions, a client is always attached to one replica.
func (r *RedisRelay) IsJoined(clientID string, channel chat.InterestID) bool {
	return r.local.IsJoined(clientID, channel)
}

// Broadcast returns the local delivery count only.
func (r *RedisRelay) Broadcast(ctx context.Context, channel chat.InterestID, e event.Event) int {
	delivered := r.local.Broadcast(ctx, channel, e)
	r.publish(ctx, channel, "", e)
	return delivered
}

func (r *RedisRelay) RelayEphemeral(ctx context.Context, senderID string, channel chat.InterestID, e event.Event) int {
	delivered := r.local.RelayEphemeral(ctx, senderID, channel, e)
	r.publish(ctx, channel, senderID, e)
	return delivered
}

func (r *RedisRelay) publish(ctx context.Context, channel chat.InterestID, senderID string, e event.Event) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		r.log.Error("Failed to encode relayed event", "event", e.Name, "error", err)
		return
	}
	payload, err := json.Marshal(envelope{Node: r.node, Channel: channel, SenderID: senderID, Event: e.Name, Data: data})
	if err != nil {
		r.log.Error("Failed to encode relay envelope", "event", e.Name, "error", err)
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.options.PublishTimeout)
	defer cancel()
	_, err = r.breaker.Execute(func() (int64, error) {
		return r.client.Publish(publishCtx, r.options.Channel, payload).Result()
	})
	observability.IncRelay("out", err)
	if err != nil {
		r.log.Debug("Event not relayed", "channel", channel, "event", e.Name, "error", err)
	}
}

// Run subscribes to the other replicas and re-delivers their events locally.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.options.Channel)
	defer func() { _ = pubsub.Close() }()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrRelayUnavailable, err)
	}
	r.log.Info("Relay subscribed", "channel", r.options.Channel, "node", r.node)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return errors.ErrRelayUnavailable
			}
			r.handle(ctx, msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		observability.IncRelay("in", err)
		r.log.Warn("Dropping malformed relay envelope", "error", err)
		return
	}
	if env.Node == r.node {
		return
	}
	observability.IncRelay("in", nil)
	e := event.Event{Name: env.Event, Data: env.Data}
	if env.SenderID != "" {
		r.local.RelayEphemeral(ctx, env.SenderID, env.Channel, e)
		return
	}
	r.local.Broadcast(ctx, env.Channel, e)
}
