package websocket

import (
	"testing"
	"time"

	"github.com/aukilabs/jord/featureflag"
	"github.com/aukilabs/jord/models"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func joinIndex(t *testing.T, conn *websocket.Conn, name string) IndexJoinResponse {
	sendMsg(t, conn, IndexJoinRequest{
		Envelope: NewEnvelope(MsgTypeIndexJoinRequest, 1),
		Name:     name,
		Region:   Region{X: 0, Y: 0, Width: 100, Height: 100},
	})

	var res IndexJoinResponse
	recvMsg(t, conn, MsgTypeIndexJoinResponse, &res)
	return res
}

func TestHandlerSendHeartbeat(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler())
	defer close()

	var res Heartbeat
	recvMsg(t, clientA, MsgTypeHeartbeat, &res)
	require.NotZero(t, res.Timestamp)
}

func TestHandlerHandlePing(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler())
	defer close()

	sendMsg(t, clientA, Request{
		Envelope: NewEnvelope(MsgTypePingRequest, 42),
	})

	var res Response
	recvMsg(t, clientA, MsgTypePingResponse, &res)
	require.Equal(t, uint32(42), res.RequestID)
}

func TestHandlerHandleIndexJoin(t *testing.T) {
	t.Run("join creates the index", func(t *testing.T) {
		clientA, _, close := NewTestingEnv(t, newTestHandler())
		defer close()

		res := joinIndex(t, clientA, "hall")
		require.NotZero(t, res.IndexID)
		require.NotEmpty(t, res.IndexUUID)
		require.Equal(t, "hall", res.Name)
		require.Equal(t, float64(100), res.Region.Width)
	})

	t.Run("clients joining the same name share the index", func(t *testing.T) {
		clientA, clientB, close := NewTestingEnv(t, newTestHandler())
		defer close()

		resA := joinIndex(t, clientA, "shared")
		resB := joinIndex(t, clientB, "shared")
		require.Equal(t, resA.IndexUUID, resB.IndexUUID)
	})

	t.Run("join without a name is rejected", func(t *testing.T) {
		clientA, _, close := NewTestingEnv(t, newTestHandler())
		defer close()

		sendMsg(t, clientA, IndexJoinRequest{
			Envelope: NewEnvelope(MsgTypeIndexJoinRequest, 7),
			Region:   Region{Width: 100, Height: 100},
		})

		var res ErrorResponse
		recvMsg(t, clientA, MsgTypeErrorResponse, &res)
		require.Equal(t, ErrorCodeBadRequest, res.Code)
		require.Equal(t, uint32(7), res.RequestID)
	})
}

func TestHandlerHandleElementAdd(t *testing.T) {
	t.Run("element inside the bound is stored", func(t *testing.T) {
		clientA, _, close := NewTestingEnv(t, newTestHandler())
		defer close()

		joinIndex(t, clientA, "add")

		sendMsg(t, clientA, ElementAddRequest{
			Envelope: NewEnvelope(MsgTypeElementAddRequest, 2),
			Region:   Region{X: 10, Y: 10, Width: 5, Height: 5},
		})

		var res ElementAddResponse
		recvMsg(t, clientA, MsgTypeElementAddResponse, &res)
		require.NotZero(t, res.ElementID)
		require.NotEmpty(t, res.ElementUUID)
	})

	t.Run("element outside the bound is dropped", func(t *testing.T) {
		clientA, _, close := NewTestingEnv(t, newTestHandler())
		defer close()

		joinIndex(t, clientA, "drop")

		sendMsg(t, clientA, ElementAddRequest{
			Envelope: NewEnvelope(MsgTypeElementAddRequest, 3),
			Region:   Region{X: 500, Y: 500, Width: 5, Height: 5},
		})

		var res ElementAddResponse
		recvMsg(t, clientA, MsgTypeElementAddResponse, &res)
		require.Zero(t, res.ElementID)
	})

	t.Run("strict inserts reports an error instead", func(t *testing.T) {
		indexStore := &models.IndexStore{}
		clientA, _, close := NewTestingEnv(t, func() Handler {
			return &RealtimeHandler{
				ClientHeartbeatInterval: time.Millisecond * 250,
				ClientIdleTimeout:       time.Minute,
				Indexes:                 indexStore,
				FeatureFlags:            featureflag.New([]string{string(featureflag.FlagStrictInserts)}),
			}
		})
		defer close()

		joinIndex(t, clientA, "strict")

		sendMsg(t, clientA, ElementAddRequest{
			Envelope: NewEnvelope(MsgTypeElementAddRequest, 4),
			Region:   Region{X: 500, Y: 500, Width: 5, Height: 5},
		})

		var res ErrorResponse
		recvMsg(t, clientA, MsgTypeErrorResponse, &res)
		require.Equal(t, ErrorCodeOutsideBounds, res.Code)
	})

	t.Run("add without joining is rejected", func(t *testing.T) {
		clientA, _, close := NewTestingEnv(t, newTestHandler())
		defer close()

		sendMsg(t, clientA, ElementAddRequest{
			Envelope: NewEnvelope(MsgTypeElementAddRequest, 5),
			Region:   Region{X: 10, Y: 10, Width: 5, Height: 5},
		})

		var res ErrorResponse
		recvMsg(t, clientA, MsgTypeErrorResponse, &res)
		require.Equal(t, ErrorCodeIndexNotJoined, res.Code)
	})
}

func TestHandlerHandleElementDelete(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler())
	defer close()

	joinIndex(t, clientA, "delete")

	sendMsg(t, clientA, ElementAddRequest{
		Envelope: NewEnvelope(MsgTypeElementAddRequest, 2),
		Region:   Region{X: 10, Y: 10, Width: 5, Height: 5},
	})

	var added ElementAddResponse
	recvMsg(t, clientA, MsgTypeElementAddResponse, &added)

	sendMsg(t, clientA, ElementDeleteRequest{
		Envelope:  NewEnvelope(MsgTypeElementDeleteRequest, 3),
		ElementID: added.ElementID,
	})

	var deleted ElementDeleteResponse
	recvMsg(t, clientA, MsgTypeElementDeleteResponse, &deleted)
	require.True(t, deleted.Found)

	sendMsg(t, clientA, ElementDeleteRequest{
		Envelope:  NewEnvelope(MsgTypeElementDeleteRequest, 4),
		ElementID: added.ElementID,
	})

	recvMsg(t, clientA, MsgTypeElementDeleteResponse, &deleted)
	require.False(t, deleted.Found)
}

func TestHandlerHandleRegionQuery(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler())
	defer close()

	joinIndex(t, clientA, "query")

	regions := []Region{
		{X: 5, Y: 5, Width: 2, Height: 2},
		{X: 20, Y: 20, Width: 2, Height: 2},
		{X: 80, Y: 80, Width: 2, Height: 2},
	}
	for i, r := range regions {
		sendMsg(t, clientA, ElementAddRequest{
			Envelope: NewEnvelope(MsgTypeElementAddRequest, uint32(10+i)),
			Region:   r,
		})

		var res ElementAddResponse
		recvMsg(t, clientA, MsgTypeElementAddResponse, &res)
		require.NotZero(t, res.ElementID)
	}

	sendMsg(t, clientA, RegionQueryRequest{
		Envelope: NewEnvelope(MsgTypeRegionQueryRequest, 20),
		Region:   Region{X: 0, Y: 0, Width: 50, Height: 50},
	})

	var res RegionQueryResponse
	recvMsg(t, clientA, MsgTypeRegionQueryResponse, &res)
	require.Len(t, res.Elements, 2)
}

func TestHandlerHandleIndexClear(t *testing.T) {
	t.Run("clear empties the index", func(t *testing.T) {
		clientA, _, close := NewTestingEnv(t, newTestHandler())
		defer close()

		joinIndex(t, clientA, "clear")

		sendMsg(t, clientA, ElementAddRequest{
			Envelope: NewEnvelope(MsgTypeElementAddRequest, 2),
			Region:   Region{X: 10, Y: 10, Width: 5, Height: 5},
		})

		var added ElementAddResponse
		recvMsg(t, clientA, MsgTypeElementAddResponse, &added)

		sendMsg(t, clientA, IndexClearRequest{
			Envelope: NewEnvelope(MsgTypeIndexClearRequest, 3),
		})

		var cleared IndexClearResponse
		recvMsg(t, clientA, MsgTypeIndexClearResponse, &cleared)

		sendMsg(t, clientA, RegionQueryRequest{
			Envelope: NewEnvelope(MsgTypeRegionQueryRequest, 4),
			Region:   Region{X: 0, Y: 0, Width: 100, Height: 100},
		})

		var res RegionQueryResponse
		recvMsg(t, clientA, MsgTypeRegionQueryResponse, &res)
		require.Empty(t, res.Elements)
	})

	t.Run("clear can be disabled", func(t *testing.T) {
		indexStore := &models.IndexStore{}
		clientA, _, close := NewTestingEnv(t, func() Handler {
			return &RealtimeHandler{
				ClientHeartbeatInterval: time.Millisecond * 250,
				ClientIdleTimeout:       time.Minute,
				Indexes:                 indexStore,
				FeatureFlags:            featureflag.New([]string{string(featureflag.FlagDisableClear)}),
			}
		})
		defer close()

		joinIndex(t, clientA, "noclear")

		sendMsg(t, clientA, IndexClearRequest{
			Envelope: NewEnvelope(MsgTypeIndexClearRequest, 2),
		})

		var res ErrorResponse
		recvMsg(t, clientA, MsgTypeErrorResponse, &res)
		require.Equal(t, ErrorCodeOperationDisabled, res.Code)
	})
}

func TestHandlerHandleIndexStats(t *testing.T) {
	t.Run("stats describe the index", func(t *testing.T) {
		clientA, _, close := NewTestingEnv(t, newTestHandler())
		defer close()

		joinIndex(t, clientA, "stats")

		sendMsg(t, clientA, ElementAddRequest{
			Envelope: NewEnvelope(MsgTypeElementAddRequest, 2),
			Region:   Region{X: 10, Y: 10, Width: 5, Height: 5},
		})

		var added ElementAddResponse
		recvMsg(t, clientA, MsgTypeElementAddResponse, &added)

		sendMsg(t, clientA, IndexStatsRequest{
			Envelope: NewEnvelope(MsgTypeIndexStatsRequest, 3),
		})

		var res IndexStatsResponse
		recvMsg(t, clientA, MsgTypeIndexStatsResponse, &res)
		require.Equal(t, 1, res.ElementCount)
		require.GreaterOrEqual(t, res.NodeCount, 1)
		require.Equal(t, float64(100), res.Region.Width)
	})

	t.Run("stats can be disabled", func(t *testing.T) {
		indexStore := &models.IndexStore{}
		clientA, _, close := NewTestingEnv(t, func() Handler {
			return &RealtimeHandler{
				ClientHeartbeatInterval: time.Millisecond * 250,
				ClientIdleTimeout:       time.Minute,
				Indexes:                 indexStore,
				FeatureFlags:            featureflag.New([]string{string(featureflag.FlagDisableStats)}),
			}
		})
		defer close()

		joinIndex(t, clientA, "nostats")

		sendMsg(t, clientA, IndexStatsRequest{
			Envelope: NewEnvelope(MsgTypeIndexStatsRequest, 2),
		})

		var res ErrorResponse
		recvMsg(t, clientA, MsgTypeErrorResponse, &res)
		require.Equal(t, ErrorCodeOperationDisabled, res.Code)
	})
}
