package server

import (
	"bytes"
	"context"
	"interest-chat/auth"
	"interest-chat/domain/chat"
	"interest-chat/domain/event"
	"interest-chat/infrastructure/realtime"
	"interest-chat/infrastructure/storage"
	"interest-chat/runtime"
	"interest-chat/services"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "Str0ng!Passw0rd"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type recordingSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *recordingSink) Consume(_ context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Received() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events...)
}

type harness struct {
	t        *testing.T
	server   *httptest.Server
	registry *runtime.Registry
}

func newHarness(t *testing.T, options Options) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	interests := storage.NewInterestRepository(db, logger)
	users := storage.NewUserRepository(db)
	messages := storage.NewMessageRepository(db, logger)
	content := storage.NewContentRepository(db, logger)
	registry := runtime.NewRegistry(logger, time.Second)
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)

	dispatch := services.NewDispatchService(interests, interests, messages, users, content, registry, logger)
	interestService := services.NewInterestService(interests, interests, users, logger)
	authService := services.NewAuthService(users, issuer)
	health, err := NewHealthReporter(func() int { return 3 })
	require.NoError(t, err)

	gateway := realtime.NewGateway(registry, dispatch, realtime.DefaultOptions(), logger)

	api := NewServer(logger, dispatch, interestService, authService, content, issuer, gateway, health, options)
	server := httptest.NewServer(api.Routes())
	t.Cleanup(server.Close)
	return &harness{t: t, server: server, registry: registry}
}

func (h *harness) do(method, path, token string, body any) (int, envelope) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.server.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

// register signs a user up and returns its token and id.
func (h *harness) register(firstName, email string) (string, string) {
	h.t.Helper()
	status, env := h.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"firstName": firstName,
		"lastName":  "Tester",
		"email":     email,
		"password":  testPassword,
	})
	require.Equal(h.t, http.StatusCreated, status, env.Message)
	var session struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(h.t, json.Unmarshal(env.Data, &session))
	return session.Token, session.User.ID
}

func (h *harness) createInterest(token, name string) string {
	h.t.Helper()
	status, env := h.do(http.MethodPost, "/api/interests", token, map[string]string{"name": name})
	require.Equal(h.t, http.StatusCreated, status, env.Message)
	var interest struct {
		ID string `json:"id"`
	}
	require.NoError(h.t, json.Unmarshal(env.Data, &interest))
	return interest.ID
}

func (h *harness) join(token string, interestIDs ...string) {
	h.t.Helper()
	status, env := h.do(http.MethodPut, "/api/interests/me", token, map[string]any{"interests": interestIDs})
	require.Equal(h.t, http.StatusOK, status, env.Message)
}

func TestServer_Send_Message_Flow(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, DefaultOptions())

	// Given a member of cooking whose socket joined the interest
	token, userID := h.register("Ada", "ada@example.com")
	cooking := h.createInterest(token, "Cooking")
	hiking := h.createInterest(token, "Hiking")
	h.join(token, cooking)
	listener := &recordingSink{}
	req.NoError(h.registry.Join("socket-1", listener, chat.InterestID(cooking)))
	elsewhere := &recordingSink{}
	req.NoError(h.registry.Join("socket-2", elsewhere, chat.InterestID(hiking)))

	status, env := h.do(http.MethodGet, "/api/user-count/"+cooking, token, nil)
	req.Equal(http.StatusOK, status)
	var count services.MemberCountView
	req.NoError(json.Unmarshal(env.Data, &count))
	req.Equal(1, count.UserCount)
	req.Equal("Cooking", count.InterestName)

	// When the member sends a message
	status, env = h.do(http.MethodPost, "/api/messages", token, map[string]string{
		"interestId": cooking,
		"message":    "hello",
	})

	// Then the message is created with its denormalized author
	req.Equal(http.StatusCreated, status)
	req.True(env.Success)
	req.Equal("Message sent successfully", env.Message)
	var view services.MessageView
	req.NoError(json.Unmarshal(env.Data, &view))
	req.Equal("hello", view.Message)
	req.Equal(userID, string(view.UserID.ID))
	req.Equal("Ada Tester", view.UserID.Name)
	req.False(view.IsImportant)

	// And it was broadcast to the interest only
	received := listener.Received()
	req.Len(received, 1)
	req.Equal(event.NewMessage, received[0].Name)
	broadcast, isView := received[0].Data.(services.MessageView)
	req.True(isView)
	req.Equal(view.ID, broadcast.ID)
	req.Empty(elsewhere.Received())

	// And it is listed
	status, env = h.do(http.MethodGet, "/api/messages/"+cooking+"?page=1&limit=10", token, nil)
	req.Equal(http.StatusOK, status)
	var page services.MessagePage
	req.NoError(json.Unmarshal(env.Data, &page))
	req.Len(page.Messages, 1)
	req.Equal(view.ID, page.Messages[0].ID)
}

// dialSocket opens /ws through the full router, the token rides in the query string like a browser would send it.
func (h *harness) dialSocket(token string) (*websocket.Conn, *http.Response, error) {
	h.t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		h.t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func readSocketFrame(t *testing.T, conn *websocket.Conn) (event.Name, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Event event.Name      `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame.Event, frame.Data
}

func TestServer_Websocket_Through_Routes(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, DefaultOptions())

	// Given a member whose socket joined cooking over /ws
	token, userID := h.register("Ada", "ada@example.com")
	cooking := h.createInterest(token, "Cooking")
	h.join(token, cooking)
	conn, _, err := h.dialSocket(token)
	req.NoError(err)
	req.NoError(conn.WriteJSON(map[string]any{"event": event.JoinInterest, "data": cooking}))
	req.NoError(conn.WriteJSON(map[string]any{"event": event.Ping}))
	name, _ := readSocketFrame(t, conn)
	req.Equal(event.Pong, name)

	// When a message is sent over REST
	status, env := h.do(http.MethodPost, "/api/messages", token, map[string]string{
		"interestId": cooking,
		"message":    "hello socket",
	})
	req.Equal(http.StatusCreated, status, env.Message)

	// Then the socket receives it as newMessage
	name, data := readSocketFrame(t, conn)
	req.Equal(event.NewMessage, name)
	var view services.MessageView
	req.NoError(json.Unmarshal(data, &view))
	req.Equal("hello socket", view.Message)
	req.Equal(chat.UserID(userID), view.UserID.ID)

	// And a forged token never reaches the upgrade
	_, resp, err := h.dialSocket("not-a-token")
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_Send_Important(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, DefaultOptions())

	// Given a member whose socket joined the interest
	token, _ := h.register("Ada", "ada@example.com")
	cooking := h.createInterest(token, "Cooking")
	h.join(token, cooking)
	listener := &recordingSink{}
	req.NoError(h.registry.Join("socket-1", listener, chat.InterestID(cooking)))

	// When an important message is sent
	status, env := h.do(http.MethodPost, "/api/messages/important", token, map[string]string{
		"interestId": cooking,
		"message":    "meeting moved",
	})

	// Then it is created and broadcast as important
	req.Equal(http.StatusCreated, status)
	req.Equal("Important message sent successfully", env.Message)
	var view services.MessageView
	req.NoError(json.Unmarshal(env.Data, &view))
	req.True(view.IsImportant)

	received := listener.Received()
	req.Len(received, 1)
	req.Equal(event.NewImportantMessage, received[0].Name)
}

func TestServer_Send_Rejections(t *testing.T) {
	h := newHarness(t, Options{CORSAllowedOrigins: []string{"*"}})

	memberToken, _ := h.register("Ada", "ada@example.com")
	outsiderToken, _ := h.register("Bob", "bob@example.com")
	cooking := h.createInterest(memberToken, "Cooking")
	h.join(memberToken, cooking)

	tests := []struct {
		name    string
		token   string
		body    map[string]string
		status  int
		message string
	}{
		{
			name:    "anonymous",
			body:    map[string]string{"interestId": cooking, "message": "hello"},
			status:  http.StatusUnauthorized,
			message: "User not authenticated",
		},
		{
			name:    "invalid token",
			token:   "not-a-token",
			body:    map[string]string{"interestId": cooking, "message": "hello"},
			status:  http.StatusUnauthorized,
			message: "Invalid or expired token",
		},
		{
			name:    "not a member",
			token:   outsiderToken,
			body:    map[string]string{"interestId": cooking, "message": "hello"},
			status:  http.StatusForbidden,
			message: "User is not a member of this interest",
		},
		{
			name:    "empty message",
			token:   memberToken,
			body:    map[string]string{"interestId": cooking, "message": ""},
			status:  http.StatusBadRequest,
			message: "InterestId and message are required",
		},
		{
			name:    "malformed interest",
			token:   memberToken,
			body:    map[string]string{"interestId": "not-a-uuid", "message": "hello"},
			status:  http.StatusBadRequest,
			message: "Invalid interest ID",
		},
		{
			name:    "unknown interest",
			token:   memberToken,
			body:    map[string]string{"interestId": "3f1c1c1e-4a4b-4c3d-9e8f-0a1b2c3d4e5f", "message": "hello"},
			status:  http.StatusNotFound,
			message: "Interest not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)

			status, env := h.do(http.MethodPost, "/api/messages", tt.token, tt.body)

			req.Equal(tt.status, status)
			req.False(env.Success)
			req.Equal(tt.message, env.Message)
		})
	}

	// Nothing was stored by any of the rejected sends
	status, env := h.do(http.MethodGet, "/api/messages/"+cooking, memberToken, nil)
	require.Equal(t, http.StatusOK, status)
	var page services.MessagePage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Empty(t, page.Messages)
}

func TestServer_Invalid_Body(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, DefaultOptions())
	token, _ := h.register("Ada", "ada@example.com")

	httpReq, err := http.NewRequest(http.MethodPost, h.server.URL+"/api/messages", bytes.NewBufferString("{not json"))
	req.NoError(err)
	httpReq.Header.Set("Authorization", "Bearer "+token)
	resp, err := h.server.Client().Do(httpReq)
	req.NoError(err)
	defer resp.Body.Close()

	var env envelope
	req.NoError(json.NewDecoder(resp.Body).Decode(&env))
	req.Equal(http.StatusBadRequest, resp.StatusCode)
	req.Equal("Invalid request body", env.Message)
}

func TestServer_Invalid_Pagination(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, DefaultOptions())
	token, _ := h.register("Ada", "ada@example.com")
	cooking := h.createInterest(token, "Cooking")
	h.join(token, cooking)

	status, env := h.do(http.MethodGet, "/api/messages/"+cooking+"?page=zero", token, nil)

	req.Equal(http.StatusBadRequest, status)
	req.Equal("Page and limit must be positive integers", env.Message)
}

func TestServer_Register_And_Login(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, DefaultOptions())

	// Given a registered user
	h.register("Ada", "ada@example.com")

	// When the same email registers again
	status, env := h.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"firstName": "Ada", "email": "ada@example.com", "password": testPassword,
	})
	// Then it is refused
	req.Equal(http.StatusBadRequest, status)
	req.Equal("User already exists", env.Message)

	// A weak password is refused too
	status, env = h.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"firstName": "Bob", "email": "bob@example.com", "password": "password12345",
	})
	req.Equal(http.StatusBadRequest, status)
	req.False(env.Success)

	// Login with the right password hands back a usable token
	status, env = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": testPassword,
	})
	req.Equal(http.StatusOK, status)
	req.Equal("Login successful", env.Message)
	var session struct {
		Token string `json:"token"`
	}
	req.NoError(json.Unmarshal(env.Data, &session))
	req.NotEmpty(session.Token)

	status, env = h.do(http.MethodGet, "/api/users/me", session.Token, nil)
	req.Equal(http.StatusOK, status)
	var profile services.UserView
	req.NoError(json.Unmarshal(env.Data, &profile))
	req.Equal("ada@example.com", profile.Email)

	// Login with the wrong password is refused
	status, env = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "Wr0ng!Password",
	})
	req.Equal(http.StatusUnauthorized, status)
	req.Equal("Invalid credentials", env.Message)
}

func TestServer_Deactivated_Account_Cannot_Send(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, DefaultOptions())

	// Given a member who deactivates their account
	token, _ := h.register("Ada", "ada@example.com")
	cooking := h.createInterest(token, "Cooking")
	h.join(token, cooking)
	status, env := h.do(http.MethodDelete, "/api/users/me", token, nil)
	req.Equal(http.StatusOK, status)
	req.Equal("Account deactivated successfully", env.Message)

	// When the still valid token is used to send
	status, _ = h.do(http.MethodPost, "/api/messages", token, map[string]string{
		"interestId": cooking,
		"message":    "still here?",
	})

	// Then the author is unknown
	req.Equal(http.StatusNotFound, status)

	// And the interest lost its member
	_, env = h.do(http.MethodGet, "/api/interests", "", nil)
	var interests []services.InterestView
	req.NoError(json.Unmarshal(env.Data, &interests))
	req.Len(interests, 1)
	req.Zero(interests[0].UserCount)
}

func TestServer_Send_Rate_Limit(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Options{CORSAllowedOrigins: []string{"*"}, SendRateLimit: 2, SendRateWindow: time.Minute})
	body := map[string]string{"interestId": "3f1c1c1e-4a4b-4c3d-9e8f-0a1b2c3d4e5f", "message": "hello"}

	// Given the budget of two sends is spent
	for range 2 {
		status, _ := h.do(http.MethodPost, "/api/messages", "", body)
		req.Equal(http.StatusUnauthorized, status)
	}

	// When a third send arrives in the same window
	status, env := h.do(http.MethodPost, "/api/messages", "", body)

	// Then it is throttled
	req.Equal(http.StatusTooManyRequests, status)
	req.Equal("Too many requests", env.Message)

	// Reads are not throttled
	status, _ = h.do(http.MethodGet, "/api/interests", "", nil)
	req.Equal(http.StatusOK, status)
}

func TestServer_Health(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, DefaultOptions())

	resp, err := h.server.Client().Get(h.server.URL + "/health")
	req.NoError(err)
	defer resp.Body.Close()

	var report HealthReport
	req.NoError(json.NewDecoder(resp.Body).Decode(&report))
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("ok", report.Status)
	req.Equal(3, report.Connections)
	req.Positive(report.Goroutines)
}

func TestServer_Learn_Tree_And_Share(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, DefaultOptions())
	token, _ := h.register("Ada", "ada@example.com")
	cooking := h.createInterest(token, "Cooking")
	h.join(token, cooking)

	// Anonymous callers cannot edit the tree
	status, _ := h.do(http.MethodPost, "/api/learn/categories", "", map[string]string{"name": "Basics"})
	req.Equal(http.StatusUnauthorized, status)

	// Given a category, sub category, topic and entry
	var node struct {
		ID string `json:"id"`
	}
	status, env := h.do(http.MethodPost, "/api/learn/categories", token, map[string]string{"name": "Basics"})
	req.Equal(http.StatusCreated, status)
	req.NoError(json.Unmarshal(env.Data, &node))
	categoryID := node.ID

	status, env = h.do(http.MethodPost, "/api/learn/categories/"+categoryID+"/subcategories", token, map[string]string{"name": "Knives"})
	req.Equal(http.StatusCreated, status)
	req.NoError(json.Unmarshal(env.Data, &node))
	subCategoryID := node.ID

	base := "/api/learn/categories/" + categoryID + "/subcategories/" + subCategoryID + "/topics"
	status, env = h.do(http.MethodPost, base, token, map[string]string{"name": "Sharpening"})
	req.Equal(http.StatusCreated, status)
	req.NoError(json.Unmarshal(env.Data, &node))
	topicID := node.ID

	status, env = h.do(http.MethodPost, base+"/"+topicID+"/entries", token, map[string]string{"title": "Whetstone", "body": "Keep a 20 degree angle"})
	req.Equal(http.StatusCreated, status)
	req.NoError(json.Unmarshal(env.Data, &node))
	entryID := node.ID

	// When the entry is shared into cooking
	status, env = h.do(http.MethodPost, "/api/messages/share-entry", token, map[string]string{
		"interestId":     cooking,
		"message":        "worth a read",
		"mainCategoryId": categoryID,
		"subCategoryId":  subCategoryID,
		"topicId":        topicID,
		"entryId":        entryID,
	})

	// Then the snapshot is carried by the message
	req.Equal(http.StatusCreated, status)
	req.Equal("Entry shared successfully", env.Message)
	var view services.MessageView
	req.NoError(json.Unmarshal(env.Data, &view))
	req.NotNil(view.SharedEntry)
	req.Equal("Whetstone", view.SharedEntry.Title)
	req.Equal("Keep a 20 degree angle", view.SharedEntry.Body)

	// And deleting the entry keeps the shared copy
	status, _ = h.do(http.MethodDelete, base+"/"+topicID+"/entries/"+entryID, token, nil)
	req.Equal(http.StatusOK, status)

	_, env = h.do(http.MethodGet, "/api/messages/"+cooking, token, nil)
	var page services.MessagePage
	req.NoError(json.Unmarshal(env.Data, &page))
	req.Len(page.Messages, 1)
	req.NotNil(page.Messages[0].SharedEntry)
	req.Equal("Whetstone", page.Messages[0].SharedEntry.Title)

	_, env = h.do(http.MethodGet, "/api/learn/categories", "", nil)
	var categories []categoryView
	req.NoError(json.Unmarshal(env.Data, &categories))
	req.Len(categories, 1)
	req.Empty(categories[0].SubCategories[0].Topics[0].Entries)
}
