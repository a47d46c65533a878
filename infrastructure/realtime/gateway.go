package realtime

import (
	"context"
	"interest-chat/auth"
	"interest-chat/contract"
	"interest-chat/domain/chat"
	"interest-chat/domain/event"
	"interest-chat/errors"
	"interest-chat/observability"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

// ReadAuthorizer decides whether a caller may subscribe to an interest.
type ReadAuthorizer interface {
	AuthorizeRead(ctx context.Context, interestID chat.InterestID, callerID chat.UserID) error
}

type Options struct {
	AllowedOrigins []string
	SendBuffer     int
	ReadLimit      int64
	WriteWait      time.Duration
	PongWait       time.Duration
	FrameRate      rate.Limit
	FrameBurst     int
	JoinTimeout    time.Duration
}

func DefaultOptions() Options {
	return Options{
		AllowedOrigins: []string{"*"},
		SendBuffer:     256,
		ReadLimit:      64 * 1024,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		FrameRate:      20,
		FrameBurst:     40,
		JoinTimeout:    5 * time.Second,
	}
}

type inboundFrame struct {
	Event event.Name      `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type channelPayload struct {
	InterestID chat.InterestID `json:"interestId"`
}

type typingPayload struct {
	InterestID chat.InterestID `json:"interestId"`
	UserID     string          `json:"userId"`
	IsTyping   bool            `json:"isTyping"`
}

// Gateway upgrades HTTP requests to websocket connections and turns inbound frames into router calls.
type Gateway struct {
	router   contract.IRouter
	reads    ReadAuthorizer
	upgrader websocket.Upgrader
	options  Options
	log      *slog.Logger

	mu      sync.Mutex
	clients map[string]*Client
	closing bool
	active  sync.WaitGroup
}

func NewGateway(router contract.IRouter, reads ReadAuthorizer, options Options, log *slog.Logger) *Gateway {
	g := &Gateway{router: router, reads: reads, options: options, log: log, clients: make(map[string]*Client)}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || lo.Contains(g.options.AllowedOrigins, "*") {
		return true
	}
	return lo.Contains(g.options.AllowedOrigins, origin)
}

// ServeHTTP blocks for the lifetime of the connection.
// The identity comes from the auth middleware and may be empty.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	client := newClient(uuid.NewString(), userID, conn, g.options, g.log)
	if !g.track(client) {
		g.goAway(client)
		return
	}
	observability.ConnectionOpened()
	g.log.Debug("Client connected", "client", client.id, "user", userID)
	defer func() {
		g.router.Disconnect(client.id)
		client.close()
		g.untrack(client)
		observability.ConnectionClosed()
		g.log.Debug("Client disconnected", "client", client.id)
	}()

	go client.writePump()
	g.readPump(r.Context(), client)
}

// Close sends a going-away frame to every connected client and drops the connections.
// Upgrades that finish afterwards are refused. It matches http.Server.RegisterOnShutdown,
// which does not reach hijacked connections.
func (g *Gateway) Close() {
	g.mu.Lock()
	g.closing = true
	clients := make([]*Client, 0, len(g.clients))
	for _, client := range g.clients {
		clients = append(clients, client)
	}
	g.mu.Unlock()

	for _, client := range clients {
		g.goAway(client)
	}
	if len(clients) > 0 {
		g.log.Info("Websocket connections closed", "count", len(clients))
	}
}

// Wait closes the gateway and blocks until every connection ran its disconnect cleanup.
func (g *Gateway) Wait(ctx context.Context) error {
	g.Close()
	done := make(chan struct{})
	go func() {
		g.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) track(client *Client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closing {
		return false
	}
	g.clients[client.id] = client
	g.active.Add(1)
	return true
}

func (g *Gateway) untrack(client *Client) {
	g.mu.Lock()
	delete(g.clients, client.id)
	g.mu.Unlock()
	g.active.Done()
}

// WriteControl may run next to the write pump, so the close frame needs no extra locking.
func (g *Gateway) goAway(client *Client) {
	message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = client.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(g.options.WriteWait))
	client.close()
}

func (g *Gateway) readPump(ctx context.Context, client *Client) {
	conn := client.conn
	conn.SetReadLimit(g.options.ReadLimit)
	if err := conn.SetReadDeadline(time.Now().Add(g.options.PongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.options.PongWait))
	})
	limiter := rate.NewLimiter(g.options.FrameRate, g.options.FrameBurst)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Debug("Unexpected websocket close", "client", client.id, "error", err)
			}
			return
		}
		if !limiter.Allow() {
			client.reply(event.NewError("Too many events"))
			continue
		}
		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			client.reply(event.NewError("Malformed frame"))
			continue
		}
		g.handle(ctx, client, frame)
	}
}

func (g *Gateway) handle(ctx context.Context, client *Client, frame inboundFrame) {
	switch frame.Event {
	case event.JoinInterest:
		g.join(ctx, client, frame.Data)
	case event.LeaveInterest:
		g.leave(client, frame.Data)
	case event.Typing:
		g.typing(ctx, client, frame.Data)
	case event.Ping:
		client.reply(event.Event{Name: event.Pong})
	default:
		client.reply(event.NewError("Unknown event"))
	}
}

func (g *Gateway) join(ctx context.Context, client *Client, data json.RawMessage) {
	channel, err := channelFrom(data)
	if err != nil {
		client.reply(event.NewError(errors.PublicMessage(err)))
		return
	}
	authCtx, cancel := context.WithTimeout(ctx, g.options.JoinTimeout)
	defer cancel()
	if err := g.reads.AuthorizeRead(authCtx, channel, client.userID); err != nil {
		client.reply(event.NewError(errors.PublicMessage(err)))
		return
	}
	if err := g.router.Join(client.id, client, channel); err != nil {
		client.reply(event.NewError(errors.PublicMessage(err)))
	}
}

func (g *Gateway) leave(client *Client, data json.RawMessage) {
	channel, err := channelFrom(data)
	if err != nil {
		client.reply(event.NewError(errors.PublicMessage(err)))
		return
	}
	if err := g.router.Leave(client.id, channel); err != nil {
		client.reply(event.NewError(errors.PublicMessage(err)))
	}
}

// typing relays to the other subscribers of a channel the sender joined.
// The userId always comes from the token, anonymous connections cannot type.
func (g *Gateway) typing(ctx context.Context, client *Client, data json.RawMessage) {
	var payload typingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		g.log.Warn("Dropping malformed typing event", "client", client.id, "error", err)
		return
	}
	if payload.InterestID.Validate() != nil {
		g.log.Warn("Dropping typing event without interestId", "client", client.id)
		return
	}
	if client.userID == "" {
		g.log.Warn("Dropping typing event from anonymous client", "client", client.id, "interest", payload.InterestID)
		return
	}
	if !g.router.IsJoined(client.id, payload.InterestID) {
		g.log.Warn("Dropping typing event for a channel not joined", "client", client.id, "interest", payload.InterestID)
		return
	}
	payload.UserID = string(client.userID)
	g.router.RelayEphemeral(ctx, client.id, payload.InterestID, event.NewTyping(payload.UserID, payload.IsTyping))
}

// channelFrom accepts both a bare interest id and an object carrying interestId.
func channelFrom(data json.RawMessage) (chat.InterestID, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		channel := chat.InterestID(strings.TrimSpace(id))
		return channel, channel.Validate()
	}
	var payload channelPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", errors.ErrInvalidInterestID
	}
	return payload.InterestID, payload.InterestID.Validate()
}
