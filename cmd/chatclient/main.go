package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
)

// Config drives the terminal client. Every field can be set from the environment.
type Config struct {
	ServerURL  string `envconfig:"CHAT_SERVER_URL" default:"http://localhost:8080"`
	Email      string `envconfig:"CHAT_EMAIL" required:"true"`
	Password   string `envconfig:"CHAT_PASSWORD" required:"true"`
	InterestID string `envconfig:"CHAT_INTEREST" required:"true"`
	// CHAT_COLOURS enables colorized output
	Colours bool `envconfig:"CHAT_COLOURS" default:"true"`
	// CHAT_DEBUG_JSON dumps raw frames as received
	DebugJSON bool `envconfig:"CHAT_DEBUG_JSON" default:"false"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type messageData struct {
	InterestID struct {
		Name string `json:"name"`
	} `json:"interestId"`
	UserID struct {
		Name string `json:"name"`
	} `json:"userId"`
	Message     string `json:"message"`
	IsImportant bool   `json:"isImportant"`
	SharedEntry *struct {
		Title string `json:"title"`
	} `json:"sharedEntry"`
	CreatedAt time.Time `json:"createdAt"`
}

type client struct {
	config Config
	http   *http.Client
	token  string
}

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatal("config error: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &client{config: config, http: &http.Client{Timeout: 10 * time.Second}}
	if err := c.login(ctx); err != nil {
		log.Fatal(err)
	}

	conn, err := c.dial(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"event": "joinInterest", "data": config.InterestID}); err != nil {
		log.Fatal("join failed: ", err)
	}
	c.info(fmt.Sprintf("Joined %s. Type a message, prefix with ! for important, /quit to leave", config.InterestID))

	go c.readLoop(conn)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || line == "/quit" {
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := c.send(ctx, line); err != nil {
				c.warn(err.Error())
			}
		}
	}
}

func (c *client) login(ctx context.Context) error {
	var session struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": c.config.Email, "password": c.config.Password}
	if err := c.post(ctx, "/api/auth/login", body, &session); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	c.token = session.Token
	return nil
}

func (c *client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.config.ServerURL)
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {c.token}}.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (c *client) send(ctx context.Context, line string) error {
	path := "/api/messages"
	if strings.HasPrefix(line, "!") {
		path = "/api/messages/important"
		line = strings.TrimPrefix(line, "!")
	}
	body := map[string]string{"interestId": c.config.InterestID, "message": line}
	return c.post(ctx, path, body, nil)
}

func (c *client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.ServerURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("unexpected response (status %d)", resp.StatusCode)
	}
	if !env.Success {
		return fmt.Errorf("%s (status %d)", env.Message, resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (c *client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.warn("connection closed: " + err.Error())
			os.Exit(1)
		}
		if c.config.DebugJSON {
			fmt.Println(string(raw))
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		switch f.Event {
		case "newMessage", "newImportantMessage", "newSharedEntry":
			var m messageData
			if err := json.Unmarshal(f.Data, &m); err != nil {
				continue
			}
			c.print(m)
		case "userTyping":
			var t struct {
				UserID   string `json:"userId"`
				IsTyping bool   `json:"isTyping"`
			}
			if err := json.Unmarshal(f.Data, &t); err == nil && t.IsTyping {
				c.info(t.UserID + " is typing...")
			}
		case "error":
			var e struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(f.Data, &e)
			c.warn(e.Message)
		}
	}
}

func (c *client) print(m messageData) {
	prefix := fmt.Sprintf("[%s] %s", m.CreatedAt.Local().Format("15:04"), m.UserID.Name)
	body := m.Message
	if m.SharedEntry != nil {
		body = fmt.Sprintf("%s [shared: %s]", body, m.SharedEntry.Title)
	}
	if !c.config.Colours {
		fmt.Printf("%s: %s\n", prefix, body)
		return
	}
	if m.IsImportant {
		fmt.Println(color.New(color.FgRed, color.OpBold).Render(prefix+": ") + color.FgLightWhite.Render(body))
		return
	}
	fmt.Println(color.FgCyan.Render(prefix+": ") + body)
}

func (c *client) info(s string) {
	if c.config.Colours {
		s = color.FgGray.Render(s)
	}
	fmt.Println(s)
}

func (c *client) warn(s string) {
	if c.config.Colours {
		s = color.New(color.BgBlack, color.FgYellow).Render(s)
	}
	fmt.Println(s)
}
