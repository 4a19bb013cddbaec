package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/lox/avetor/internal/protocol"
)

var ErrClosed = errors.New("client closed")

// ServerError is an error reply from the server.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client is a websocket connection to an avetor server. Replies to requests
// are matched by request id; everything else arrives on Events.
type Client struct {
	conn   *websocket.Conn
	logger *log.Logger

	writeMu sync.Mutex
	seq     atomic.Int64

	pendingMu sync.Mutex
	pending   map[string]chan *protocol.Message

	events    chan *protocol.Message
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to serverURL. http and https URLs are converted to ws and
// wss, and an empty path becomes /ws.
func Dial(ctx context.Context, serverURL string, logger *log.Logger) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	logger = logger.WithPrefix("client")
	logger.Debug("Connecting to server", "url", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Client{
		conn:    conn,
		logger:  logger,
		pending: make(map[string]chan *protocol.Message),
		events:  make(chan *protocol.Message, 256),
		done:    make(chan struct{}),
	}
	go c.readPump()
	return c, nil
}

// Events delivers round events and any frame that is not a reply. It is
// closed when the connection ends. Events are dropped while the buffer is
// full.
func (c *Client) Events() <-chan *protocol.Message {
	return c.events
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// Send writes a message without waiting for a reply and returns its
// request id.
func (c *Client) Send(t protocol.MessageType, data interface{}) (string, error) {
	msg, err := protocol.NewMessage(t, data, time.Now())
	if err != nil {
		return "", err
	}
	msg.RequestID = strconv.FormatInt(c.seq.Add(1), 10)
	return msg.RequestID, c.write(msg)
}

// Request sends a message and waits for the reply carrying its request id.
// An error reply is returned as *ServerError.
func (c *Client) Request(ctx context.Context, t protocol.MessageType, data interface{}) (*protocol.Message, error) {
	msg, err := protocol.NewMessage(t, data, time.Now())
	if err != nil {
		return nil, err
	}
	msg.RequestID = strconv.FormatInt(c.seq.Add(1), 10)

	ch := make(chan *protocol.Message, 1)
	c.pendingMu.Lock()
	c.pending[msg.RequestID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, msg.RequestID)
		c.pendingMu.Unlock()
	}()

	if err := c.write(msg); err != nil {
		return nil, err
	}

	select {
	case reply := <-ch:
		if reply.Type == protocol.TypeError {
			var e protocol.Error
			if err := reply.Decode(&e); err != nil {
				return nil, err
			}
			return nil, &ServerError{Code: e.Code, Message: e.Message}
		}
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// Login opens a session as username.
func (c *Client) Login(ctx context.Context, username string) (protocol.LoggedIn, error) {
	var out protocol.LoggedIn
	err := c.requestInto(ctx, protocol.TypeLogin, protocol.Login{Username: username}, &out)
	return out, err
}

// StartRound stakes on a new round and returns the balance after the debit.
func (c *Client) StartRound(ctx context.Context, stake decimal.Decimal) (decimal.Decimal, error) {
	var out protocol.Balance
	err := c.requestInto(ctx, protocol.TypeStartRound, protocol.StartRound{Stake: stake}, &out)
	return out.Balance, err
}

// CashOut cashes out of the running round and returns the new balance.
func (c *Client) CashOut(ctx context.Context) (decimal.Decimal, error) {
	var out protocol.Balance
	err := c.requestInto(ctx, protocol.TypeCashOut, nil, &out)
	return out.Balance, err
}

// State fetches the current round, balance and recent crash points.
func (c *Client) State(ctx context.Context) (protocol.State, error) {
	var out protocol.State
	err := c.requestInto(ctx, protocol.TypeGetState, nil, &out)
	return out, err
}

// History fetches the session history, newest first.
func (c *Client) History(ctx context.Context) (protocol.History, error) {
	var out protocol.History
	err := c.requestInto(ctx, protocol.TypeGetHistory, nil, &out)
	return out, err
}

// PlaceBets places a sports slip.
func (c *Client) PlaceBets(ctx context.Context, selections []protocol.BetSelection) (protocol.BetsPlaced, error) {
	var out protocol.BetsPlaced
	err := c.requestInto(ctx, protocol.TypePlaceBets, protocol.PlaceBets{Selections: selections}, &out)
	return out, err
}

func (c *Client) requestInto(ctx context.Context, t protocol.MessageType, data, out interface{}) error {
	reply, err := c.Request(ctx, t, data)
	if err != nil {
		return err
	}
	return reply.Decode(out)
}

func (c *Client) write(msg *protocol.Message) error {
	frame, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// readPump routes replies to waiting requests and the rest to Events.
func (c *Client) readPump() {
	defer func() {
		c.closeOnce.Do(func() { close(c.done) })
		close(c.events)
	}()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("WebSocket error", "error", err)
			}
			return
		}

		msg, err := protocol.Unmarshal(frame)
		if err != nil {
			c.logger.Warn("Dropping malformed frame", "error", err)
			continue
		}

		if msg.RequestID != "" {
			c.pendingMu.Lock()
			ch, ok := c.pending[msg.RequestID]
			c.pendingMu.Unlock()
			if ok {
				ch <- msg
				continue
			}
		}

		select {
		case c.events <- msg:
		default:
			c.logger.Debug("Event buffer full, dropping", "type", msg.Type)
		}
	}
}
