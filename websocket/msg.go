package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// MsgType identifies a protocol message.
type MsgType string

const (
	MsgTypePingRequest  MsgType = "ping_request"
	MsgTypePingResponse MsgType = "ping_response"

	MsgTypeHeartbeat MsgType = "heartbeat"

	MsgTypeIndexJoinRequest  MsgType = "index_join_request"
	MsgTypeIndexJoinResponse MsgType = "index_join_response"

	MsgTypeElementAddRequest  MsgType = "element_add_request"
	MsgTypeElementAddResponse MsgType = "element_add_response"

	MsgTypeElementDeleteRequest  MsgType = "element_delete_request"
	MsgTypeElementDeleteResponse MsgType = "element_delete_response"

	MsgTypeRegionQueryRequest  MsgType = "region_query_request"
	MsgTypeRegionQueryResponse MsgType = "region_query_response"

	MsgTypeIndexClearRequest  MsgType = "index_clear_request"
	MsgTypeIndexClearResponse MsgType = "index_clear_response"

	MsgTypeIndexStatsRequest  MsgType = "index_stats_request"
	MsgTypeIndexStatsResponse MsgType = "index_stats_response"

	MsgTypeErrorResponse MsgType = "error_response"
)

// Msg is a received protocol envelope. The payload stays encoded until a
// handler decodes it into a concrete message with DataTo.
type Msg struct {
	Type MsgType

	data []byte
}

// DataTo decodes the message payload into the given message struct.
func (m Msg) DataTo(v any) error {
	if err := json.Unmarshal(m.data, v); err != nil {
		return errors.New("decoding message failed").
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

func (m Msg) TypeString() string {
	return string(m.Type)
}

// Receiver reads the next message from a connection, returning the message
// and its size in bytes.
type Receiver func() (Msg, int, error)

// Sender encodes and sends the given message, returning its size in bytes.
type Sender func(v any) (int, error)

// ResponseSender is passed to handler methods in order to send responses.
type ResponseSender interface {
	Send(v any)
}

// NewReceiver returns a Receiver reading JSON messages from conn.
func NewReceiver(conn *websocket.Conn) Receiver {
	return func() (Msg, int, error) {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			return Msg{}, 0, err
		}

		var envelope struct {
			Type MsgType `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return Msg{}, len(data), errors.New("decoding message envelope failed").Wrap(err)
		}

		return Msg{Type: envelope.Type, data: data}, len(data), nil
	}
}

// NewSender returns a Sender writing JSON messages to conn.
func NewSender(conn *websocket.Conn) Sender {
	return func(v any) (int, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return 0, errors.New("encoding message failed").Wrap(err)
		}

		if err := websocket.Message.Send(conn, string(data)); err != nil {
			return 0, err
		}
		return len(data), nil
	}
}
