package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/jord/models"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize = 512
	msgChanSize  = 64
)

// Handler represents a jord connection handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to join or create an index.
	HandleIndexJoin(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to add an element to the joined index.
	HandleElementAdd(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to delete an element from the joined index.
	HandleElementDelete(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a region query against the joined index.
	HandleRegionQuery(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to clear the joined index.
	HandleIndexClear(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request for the joined index's stats.
	HandleIndexStats(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Sends a heartbeat message to the client.
	SendHeartbeat(ctx context.Context, respond ResponseSender) error

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender used to send outgoing messages.
	Sender() Sender

	// Closes the handler and releases its allocated resources.
	Close()

	// The interval between each heartbeat message sent to the connected
	// client.
	HeartbeatInterval() time.Duration

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Returns the index store.
	GetIndexes() *models.IndexStore

	// The currently joined index.
	CurrentIndex() *models.Index

	// Get ClientID.
	GetClientID() string
}

// Handle serves the given connection with the given handler until the
// client disconnects or the context is canceled.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The jord handler.
	Handler Handler

	sendChan       chan any
	sender         Sender
	msgChan        chan Msg
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan any, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.msgChan = make(chan Msg, msgChanSize)
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	heartbeatTicker := time.NewTicker(h.Handler.HeartbeatInterval())
	defer heartbeatTicker.Stop()

	var responder = responseSender{
		send: h.send,
	}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.disconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", h.Handler.IdleTimeout()))

		case <-heartbeatTicker.C:
			if err := h.Handler.SendHeartbeat(ctx, responder); err != nil {
				h.disconnect(errors.New("sending heartbeat failed").Wrap(err))
			}

		case msg := <-h.msgChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			if ctx.Err() == nil {
				// cancel context so go routines can cleanly exit
				cancel()
			}
		}
	}

	wg.Wait()
}

func (h *handler) send(v any) {
	h.sendChan <- v
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		default:
			msg, _, err := h.receiver()
			if err != nil {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}

			select {
			case <-ctx.Done():
				return

			case h.msgChan <- msg:
			}
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg Msg, responder ResponseSender) error {
	switch msg.Type {
	case MsgTypePingRequest:
		return h.Handler.HandlePing(ctx, responder, msg)

	case MsgTypeIndexJoinRequest:
		return h.Handler.HandleIndexJoin(ctx, responder, msg)

	case MsgTypeElementAddRequest:
		return h.Handler.HandleElementAdd(ctx, responder, msg)

	case MsgTypeElementDeleteRequest:
		return h.Handler.HandleElementDelete(ctx, responder, msg)

	case MsgTypeRegionQueryRequest:
		return h.Handler.HandleRegionQuery(ctx, responder, msg)

	case MsgTypeIndexClearRequest:
		return h.Handler.HandleIndexClear(ctx, responder, msg)

	case MsgTypeIndexStatsRequest:
		return h.Handler.HandleIndexStats(ctx, responder, msg)
	}

	return nil
}

func (h *handler) disconnect(err error) {
	h.disconnectChan <- err
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	send func(v any)
}

func (r responseSender) Send(v any) {
	r.send(v)
}
