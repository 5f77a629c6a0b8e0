package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/models"
)

const (
	writeTimeout     = 10 * time.Second
	inboundLimit     = 4096
	clientSendBuffer = 256

	streamLifetime       = 4 * time.Hour
	sessionCheckInterval = 15 * time.Minute
	sessionCheckTimeout  = 10 * time.Second

	pingInterval   = 30 * time.Second
	pingTimeout    = 10 * time.Second
	maxMissedPongs = 2
)

// SessionValidator looks up the session an API key belongs to.
type SessionValidator interface {
	GetSessionByAPIKey(ctx context.Context, apiKey string) (*models.Session, error)
}

// closeReason describes why the write loop ends a stream. A zero value keeps
// the stream open.
type closeReason struct {
	status websocket.StatusCode
	text   string
}

func (r closeReason) set() bool { return r.text != "" }

// Client is one audit tail subscriber. The hub owns its send channel.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	log       *logrus.Logger
	OrgID     string
	apiKey    string
	validator SessionValidator
	filt      atomic.Pointer[Filter]
	closeOnce sync.Once
	opened    time.Time
	missed    int
}

// NewClient creates a Client for an authenticated stream of orgID.
func NewClient(hub *Hub, conn *websocket.Conn, validator SessionValidator, apiKey, orgID string, filter Filter) *Client {
	c := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, clientSendBuffer),
		log:       hub.log,
		OrgID:     orgID,
		apiKey:    apiKey,
		validator: validator,
		opened:    time.Now(),
	}
	c.filt.Store(&filter)
	return c
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *Client) filter() Filter {
	return *c.filt.Load()
}

// ReadPump consumes inbound frames until the connection ends. The only frame
// understood is a subscribe message, which swaps the client's filter.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.CloseNow() //nolint:errcheck // teardown
	}()

	c.conn.SetReadLimit(inboundLimit)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				c.log.WithFields(logrus.Fields{"org_id": c.OrgID, "status": status}).Debug("audit tail closed by client")
			}
			return
		}

		c.handleMessage(data)
	}
}

// handleMessage applies an inbound frame. Anything other than a well-formed
// subscribe message is ignored.
func (c *Client) handleMessage(data []byte) {
	var msg SubscribeMsg
	if json.Unmarshal(data, &msg) == nil && msg.Type == "subscribe" {
		c.filt.Store(&msg.Filter)
	}
}

// WritePump delivers queued audit events. It also pings the peer, rechecks the
// API key periodically and caps the stream lifetime.
func (c *Client) WritePump(ctx context.Context) {
	defer c.conn.CloseNow() //nolint:errcheck // teardown

	lifetime := time.NewTimer(time.Until(c.opened.Add(streamLifetime)))
	defer lifetime.Stop()
	sessionCheck := time.NewTicker(sessionCheckInterval)
	defer sessionCheck.Stop()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		var reason closeReason

		select {
		case msg, ok := <-c.send:
			if !ok {
				reason = closeReason{websocket.StatusGoingAway, "stream closed"}
				break
			}
			if err := c.write(ctx, msg); err != nil {
				c.log.WithError(err).WithField("org_id", c.OrgID).Debug("audit tail write failed")
				return
			}
		case <-ping.C:
			if !c.ping(ctx) {
				c.log.WithField("org_id", c.OrgID).Debug("audit tail peer stopped answering pings")
				return
			}
		case <-sessionCheck.C:
			reason = c.checkSession(ctx)
		case <-lifetime.C:
			reason = closeReason{websocket.StatusNormalClosure, "max stream lifetime exceeded"}
		}

		if reason.set() {
			c.conn.Close(reason.status, reason.text) //nolint:errcheck // peer may be gone
			return
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, msg)
}

// ping reports false once maxMissedPongs consecutive pings went unanswered.
func (c *Client) ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := c.conn.Ping(ctx); err != nil {
		c.missed++
		return c.missed < maxMissedPongs
	}
	c.missed = 0
	return true
}

// checkSession closes the stream when its API key was revoked or now belongs
// to another organization.
func (c *Client) checkSession(ctx context.Context) closeReason {
	if c.validator == nil {
		return closeReason{}
	}

	ctx, cancel := context.WithTimeout(ctx, sessionCheckTimeout)
	defer cancel()

	sess, err := c.validator.GetSessionByAPIKey(ctx, c.apiKey)
	if err == nil && sess.OrgID == c.OrgID {
		return closeReason{}
	}

	c.log.WithField("org_id", c.OrgID).Info("closing audit tail: API key no longer valid")
	return closeReason{websocket.StatusPolicyViolation, "authentication expired"}
}
