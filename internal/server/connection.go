package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/lox/avetor/internal/crash"
	"github.com/lox/avetor/internal/protocol"
	"github.com/lox/avetor/internal/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Frames queued per connection before it is dropped as too slow
	sendBuffer = 256
)

var ErrConnectionClosed = errors.New("connection closed")

// Connection is one websocket player. The session is created by the first
// login message and closed with the connection.
type Connection struct {
	conn      *websocket.Conn
	server    *Server
	send      chan *protocol.Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}

	mu          sync.RWMutex
	session     *session.Session
	unsubscribe func()
}

func newConnection(ws *websocket.Conn, s *Server, requestID string) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:   ws,
		server: s,
		send:   make(chan *protocol.Message, sendBuffer),
		logger: s.logger.WithPrefix("conn").With("requestId", requestID),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection and its session are closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Close ends the session, settling any running round, and closes the socket.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		sess, unsubscribe := c.session, c.unsubscribe
		c.mu.Unlock()
		if sess != nil {
			_ = sess.Close()
			unsubscribe()
		}

		err = c.conn.Close()
		close(c.done)
	})
	return err
}

// SendMessage queues msg for the write pump. A full buffer drops the
// connection.
func (c *Connection) SendMessage(msg *protocol.Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		go func() { _ = c.Close() }()
		return ErrConnectionClosed
	}
}

func (c *Connection) currentSession() *session.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		msg, err := protocol.Unmarshal(frame)
		if err != nil {
			c.sendError("", protocol.Error{Code: protocol.CodeInvalidRequest, Message: "malformed message: " + err.Error()})
			continue
		}
		c.handleMessage(msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			frame, err := protocol.Marshal(msg)
			if err != nil {
				c.logger.Error("Failed to encode message", "type", msg.Type, "error", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// OnRoundEvent forwards engine events to the client.
func (c *Connection) OnRoundEvent(ev crash.Event) {
	sess := c.currentSession()
	if sess == nil {
		return
	}
	c.reply(protocol.TypeForEvent(ev.Type), "", protocol.RoundFromSnapshot(ev.Round, sess.Balance()))
}

func (c *Connection) handleMessage(msg *protocol.Message) {
	c.logger.Debug("Received message", "type", msg.Type, "requestId", msg.RequestID)

	if msg.Type == protocol.TypeLogin {
		var data protocol.Login
		if err := msg.Decode(&data); err != nil {
			c.sendError(msg.RequestID, protocol.Error{Code: protocol.CodeInvalidRequest, Message: err.Error()})
			return
		}
		c.handleLogin(msg.RequestID, data)
		return
	}

	sess := c.currentSession()
	if sess == nil {
		c.sendError(msg.RequestID, protocol.Error{Code: protocol.CodeNotLoggedIn, Message: "login first"})
		return
	}

	switch msg.Type {
	case protocol.TypeStartRound:
		var data protocol.StartRound
		if err := msg.Decode(&data); err != nil {
			c.sendError(msg.RequestID, protocol.Error{Code: protocol.CodeInvalidRequest, Message: err.Error()})
			return
		}
		c.handleStartRound(sess, msg.RequestID, data)

	case protocol.TypeCashOut:
		c.handleCashOut(sess, msg.RequestID)

	case protocol.TypeGetState:
		c.reply(protocol.TypeState, msg.RequestID, protocol.State{
			Round:   protocol.RoundFromSnapshot(sess.Round(), sess.Balance()),
			Balance: sess.Balance(),
			Recent:  sess.RecentCrashPoints(),
		})

	case protocol.TypeGetHistory:
		c.reply(protocol.TypeHistory, msg.RequestID, protocol.History{Entries: sess.History()})

	case protocol.TypeGetMatches:
		c.reply(protocol.TypeMatches, msg.RequestID, protocol.Matches{Matches: sess.Matches()})

	case protocol.TypePlaceBets:
		var data protocol.PlaceBets
		if err := msg.Decode(&data); err != nil {
			c.sendError(msg.RequestID, protocol.Error{Code: protocol.CodeInvalidRequest, Message: err.Error()})
			return
		}
		c.handlePlaceBets(sess, msg.RequestID, data)

	default:
		c.sendError(msg.RequestID, protocol.Error{
			Code:    protocol.CodeUnknownMessageType,
			Message: "unknown message type: " + msg.Type.String(),
		})
	}
}

func (c *Connection) handleLogin(requestID string, data protocol.Login) {
	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		c.sendError(requestID, protocol.Error{Code: protocol.CodeInvalidRequest, Message: "already logged in"})
		return
	}

	sess, err := c.server.openSession(data.Username)
	if err != nil {
		c.mu.Unlock()
		c.logger.Error("Failed to open session", "error", err)
		c.sendError(requestID, protocol.ErrorFrom(err))
		return
	}
	c.session = sess
	c.unsubscribe = sess.Subscribe(c)
	c.mu.Unlock()

	c.logger.Info("Player logged in", "user", sess.Username(), "session", sess.ID())
	c.reply(protocol.TypeLoggedIn, requestID, protocol.LoggedIn{
		SessionID: sess.ID(),
		Username:  sess.Username(),
		Balance:   sess.Balance(),
		Recent:    sess.RecentCrashPoints(),
	})
}

func (c *Connection) handleStartRound(sess *session.Session, requestID string, data protocol.StartRound) {
	if _, err := sess.StartRound(data.Stake); err != nil {
		c.sendError(requestID, protocol.ErrorFrom(err))
		return
	}
	c.replyBalance(requestID, sess.Balance())
}

func (c *Connection) handleCashOut(sess *session.Session, requestID string) {
	if _, err := sess.CashOut(); err != nil {
		c.sendError(requestID, protocol.ErrorFrom(err))
		return
	}
	c.replyBalance(requestID, sess.Balance())
}

func (c *Connection) handlePlaceBets(sess *session.Session, requestID string, data protocol.PlaceBets) {
	if len(data.Selections) == 0 {
		c.sendError(requestID, protocol.Error{Code: protocol.CodeInvalidRequest, Message: "no selections"})
		return
	}
	for _, sel := range data.Selections {
		if _, err := sess.AddToSlip(sel.MatchID, sel.Selection, sel.Stake); err != nil {
			sess.ClearSlip()
			c.sendError(requestID, protocol.ErrorFrom(err))
			return
		}
	}

	entries, err := sess.PlaceSportsBets()
	if err != nil {
		sess.ClearSlip()
		c.sendError(requestID, protocol.ErrorFrom(err))
		return
	}
	c.reply(protocol.TypeBetsPlaced, requestID, protocol.BetsPlaced{Entries: entries, Balance: sess.Balance()})
}

func (c *Connection) replyBalance(requestID string, balance decimal.Decimal) {
	c.reply(protocol.TypeBalance, requestID, protocol.Balance{Balance: balance})
}

func (c *Connection) reply(t protocol.MessageType, requestID string, data interface{}) {
	msg, err := protocol.NewMessage(t, data, c.server.clock.Now())
	if err != nil {
		c.logger.Error("Failed to create message", "type", t, "error", err)
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg)
}

func (c *Connection) sendError(requestID string, e protocol.Error) {
	c.reply(protocol.TypeError, requestID, e)
}
