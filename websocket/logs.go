package websocket

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

// HandlerWithLogs decorates the given handler with logs. Inbound traffic is
// summarized at the given interval rather than logged per message.
func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go handler.startSummaryWorker(ctx)
	return handler
}

type handlerWithLogs struct {
	Handler

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int

	indexName string
	indexUUID string
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)

	logs.WithTag("client_id", h.GetClientID()).
		Info("new client is connected")
}

func (h *handlerWithLogs) HandleIndexJoin(ctx context.Context, respond ResponseSender, msg Msg) error {
	if err := h.Handler.HandleIndexJoin(ctx, respond, msg); err != nil {
		return err
	}

	index := h.CurrentIndex()
	if index == nil {
		var req IndexJoinRequest
		// Parsing already succeeded in the decorated handler.
		msg.DataTo(&req)

		logs.WithTag("client_id", h.GetClientID()).
			WithTag("index_name", req.Name).
			WithTag("request_id", req.RequestID).
			Info("client failed to join an index")
		return nil
	}

	h.indexName = index.Name
	h.indexUUID = index.IndexUUID

	logs.WithTag("client_id", h.GetClientID()).
		WithTag("index_name", h.indexName).
		WithTag("index_uuid", h.indexUUID).
		WithTag("element_count", index.ElementCount()).
		Info("client joined an index")
	return nil
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	logs.WithTag("client_id", h.GetClientID()).
		WithTag("index_name", h.indexName).
		WithTag("index_uuid", h.indexUUID).
		Info("client disconnected")
}

func (h *handlerWithLogs) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (Msg, int, error) {
		msg, n, err := receive()
		if err != nil && !stderrors.Is(err, io.EOF) && !stderrors.Is(err, net.ErrClosed) {
			logs.WithTag("client_id", h.GetClientID()).
				WithTag("index_name", h.indexName).
				WithTag("index_uuid", h.indexUUID).
				Error(errors.New("receiving message failed").Wrap(err))
		} else if err == nil {
			logs.WithTag("client_id", h.GetClientID()).
				WithTag("index_name", h.indexName).
				WithTag("index_uuid", h.indexUUID).
				WithTag("msg_type", msg.TypeString()).
				Debug("message received")
			h.incCounter(msg.TypeString())
		}
		return msg, n, err
	}
}

func (h *handlerWithLogs) Sender() Sender {
	sender := h.Handler.Sender()

	return func(v any) (int, error) {
		var msgType MsgType
		if m, ok := v.(Message); ok {
			msgType = m.MessageType()
		}

		n, err := sender(v)
		if err != nil && !stderrors.Is(err, net.ErrClosed) {
			logs.WithTag("client_id", h.GetClientID()).
				WithTag("index_name", h.indexName).
				WithTag("index_uuid", h.indexUUID).
				WithTag("msg_type", msgType).
				Error(errors.New("sending message failed").Wrap(err))
		} else if err == nil {
			logs.WithTag("client_id", h.GetClientID()).
				WithTag("index_name", h.indexName).
				WithTag("index_uuid", h.indexUUID).
				WithTag("msg_type", msgType).
				Debug("message sent")
		}
		return n, err
	}
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	h.logSummary()
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(msgType string) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[msgType]++
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	entry := logs.WithTag("client_id", h.GetClientID()).
		WithTag("index_name", h.indexName).
		WithTag("index_uuid", h.indexUUID).
		WithTag("time_interval", h.summaryInterval)

	for k, v := range h.counter {
		entry = entry.WithTag(k, v)
		delete(h.counter, k)
	}

	entry.Info("inbound message summary")
}
