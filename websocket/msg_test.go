package websocket

import (
	"testing"

	"github.com/aukilabs/jord/geom"
	"github.com/stretchr/testify/require"
)

func TestMsgDataTo(t *testing.T) {
	t.Run("payload is decoded", func(t *testing.T) {
		msg := Msg{
			Type: MsgTypeElementAddRequest,
			data: []byte(`{"type":"element_add_request","request_id":7,"region":{"x":1,"y":2,"width":3,"height":4}}`),
		}

		var req ElementAddRequest
		require.NoError(t, msg.DataTo(&req))
		require.Equal(t, uint32(7), req.RequestID)
		require.Equal(t, Region{X: 1, Y: 2, Width: 3, Height: 4}, req.Region)
	})

	t.Run("malformed payload is reported", func(t *testing.T) {
		msg := Msg{
			Type: MsgTypeElementAddRequest,
			data: []byte(`{`),
		}

		var req ElementAddRequest
		require.Error(t, msg.DataTo(&req))
	})
}

func TestRegionConversion(t *testing.T) {
	r := Region{X: 10, Y: 20, Width: 40, Height: 60}

	a := r.AABB()
	require.Equal(t, geom.Vec2{X: 30, Y: 50}, a.Center)
	require.Equal(t, geom.Vec2{X: 20, Y: 30}, a.Extents)

	require.Equal(t, r, RegionFromAABB(a))
}

func TestEnvelopeMessageType(t *testing.T) {
	var m Message = Response{Envelope: NewEnvelope(MsgTypePingResponse, 1)}
	require.Equal(t, MsgTypePingResponse, m.MessageType())
}
