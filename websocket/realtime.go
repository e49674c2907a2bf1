package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/jord/featureflag"
	jordhttp "github.com/aukilabs/jord/http"
	"github.com/aukilabs/jord/models"
	"golang.org/x/net/websocket"
)

// RealtimeHandler represents a service that manages a client connection and
// applies its operations to the spatial indexes it joins.
type RealtimeHandler struct {
	// The interval between each heartbeat message sent to the connected
	// client.
	ClientHeartbeatInterval time.Duration

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The store that contains all the server indexes.
	Indexes *models.IndexStore

	FeatureFlags featureflag.FeatureFlag

	conn         *websocket.Conn
	currentIndex *models.Index

	clientID string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	h.clientID = conn.Request().Header.Get(jordhttp.HeaderClientID)
	h.conn = conn
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	respond.Send(Response{
		Envelope: NewEnvelope(MsgTypePingResponse, req.RequestID),
	})
	return nil
}

func (h *RealtimeHandler) HandleIndexJoin(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req IndexJoinRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if req.Name == "" || req.Region.Width <= 0 || req.Region.Height <= 0 {
		respond.Send(ErrorResponse{
			Envelope: NewEnvelope(MsgTypeErrorResponse, req.RequestID),
			Code:     ErrorCodeBadRequest,
		})
		return nil
	}

	index, ok := h.Indexes.Get(req.Name)
	if !ok {
		index = models.NewIndex(
			h.Indexes.NewID(),
			req.Name,
			req.Region.X,
			req.Region.Y,
			req.Region.Width,
			req.Region.Height,
			req.Capacity,
		)

		if err := h.Indexes.Add(index); err != nil {
			// Another client created the index since the lookup. Join theirs.
			index.Close()

			if index, ok = h.Indexes.Get(req.Name); !ok {
				respond.Send(ErrorResponse{
					Envelope: NewEnvelope(MsgTypeErrorResponse, req.RequestID),
					Code:     ErrorCodeInternalServerError,
				})
				return nil
			}
		}
	}

	h.currentIndex = index

	respond.Send(IndexJoinResponse{
		Envelope:  NewEnvelope(MsgTypeIndexJoinResponse, req.RequestID),
		IndexID:   index.ID,
		IndexUUID: index.IndexUUID,
		Name:      index.Name,
		Region:    RegionFromAABB(index.Bound()),
		Capacity:  index.Capacity(),
	})
	return nil
}

func (h *RealtimeHandler) HandleElementAdd(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req ElementAddRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	index := h.currentIndex
	if index == nil {
		respond.Send(ErrorResponse{
			Envelope: NewEnvelope(MsgTypeErrorResponse, req.RequestID),
			Code:     ErrorCodeIndexNotJoined,
		})
		return nil
	}

	element := models.NewElement(
		index.NewElementID(),
		req.Region.X,
		req.Region.Y,
		req.Region.Width,
		req.Region.Height,
		req.Data,
	)

	if !index.AddElement(element) {
		if h.FeatureFlags.IsSet(featureflag.FlagStrictInserts) {
			respond.Send(ErrorResponse{
				Envelope: NewEnvelope(MsgTypeErrorResponse, req.RequestID),
				Code:     ErrorCodeOutsideBounds,
			})
			return nil
		}

		// Out of bounds elements are dropped. The response carries a zero
		// element id so the client can tell.
		respond.Send(ElementAddResponse{
			Envelope: NewEnvelope(MsgTypeElementAddResponse, req.RequestID),
		})
		return nil
	}

	respond.Send(ElementAddResponse{
		Envelope:    NewEnvelope(MsgTypeElementAddResponse, req.RequestID),
		ElementID:   element.ID,
		ElementUUID: element.UUID,
	})
	return nil
}

func (h *RealtimeHandler) HandleElementDelete(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req ElementDeleteRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	index := h.currentIndex
	if index == nil {
		respond.Send(ErrorResponse{
			Envelope: NewEnvelope(MsgTypeErrorResponse, req.RequestID),
			Code:     ErrorCodeIndexNotJoined,
		})
		return nil
	}

	found := index.RemoveElement(req.ElementID)

	respond.Send(ElementDeleteResponse{
		Envelope:  NewEnvelope(MsgTypeElementDeleteResponse, req.RequestID),
		ElementID: req.ElementID,
		Found:     found,
	})
	return nil
}

func (h *RealtimeHandler) HandleRegionQuery(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req RegionQueryRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	index := h.currentIndex
	if index == nil {
		respond.Send(ErrorResponse{
			Envelope: NewEnvelope(MsgTypeErrorResponse, req.RequestID),
			Code:     ErrorCodeIndexNotJoined,
		})
		return nil
	}

	matches := index.QueryRegion(req.Region.X, req.Region.Y, req.Region.Width, req.Region.Height)

	elements := make([]ElementState, 0, len(matches))
	for _, e := range matches {
		elements = append(elements, ElementStateFromModel(e))
	}

	respond.Send(RegionQueryResponse{
		Envelope: NewEnvelope(MsgTypeRegionQueryResponse, req.RequestID),
		Elements: elements,
	})
	return nil
}

func (h *RealtimeHandler) HandleIndexClear(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req IndexClearRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	index := h.currentIndex
	if index == nil {
		respond.Send(ErrorResponse{
			Envelope: NewEnvelope(MsgTypeErrorResponse, req.RequestID),
			Code:     ErrorCodeIndexNotJoined,
		})
		return nil
	}

	if h.FeatureFlags.IsSet(featureflag.FlagDisableClear) {
		respond.Send(ErrorResponse{
			Envelope: NewEnvelope(MsgTypeErrorResponse, req.RequestID),
			Code:     ErrorCodeOperationDisabled,
		})
		return nil
	}

	index.Clear()

	respond.Send(IndexClearResponse{
		Envelope: NewEnvelope(MsgTypeIndexClearResponse, req.RequestID),
	})
	return nil
}

func (h *RealtimeHandler) HandleIndexStats(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req IndexStatsRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	index := h.currentIndex
	if index == nil {
		respond.Send(ErrorResponse{
			Envelope: NewEnvelope(MsgTypeErrorResponse, req.RequestID),
			Code:     ErrorCodeIndexNotJoined,
		})
		return nil
	}

	if h.FeatureFlags.IsSet(featureflag.FlagDisableStats) {
		respond.Send(ErrorResponse{
			Envelope: NewEnvelope(MsgTypeErrorResponse, req.RequestID),
			Code:     ErrorCodeOperationDisabled,
		})
		return nil
	}

	respond.Send(IndexStatsResponseFromStats(req.RequestID, index.Stats()))
	return nil
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
	// Indexes outlive connections. Dropping the reference is enough.
	h.currentIndex = nil
}

func (h *RealtimeHandler) SendHeartbeat(ctx context.Context, respond ResponseSender) error {
	respond.Send(Heartbeat{
		Envelope: NewEnvelope(MsgTypeHeartbeat, 0),
	})
	return nil
}

func (h *RealtimeHandler) Receiver() Receiver {
	return NewReceiver(h.conn)
}

func (h *RealtimeHandler) Sender() Sender {
	return NewSender(h.conn)
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) HeartbeatInterval() time.Duration {
	return h.ClientHeartbeatInterval
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetIndexes() *models.IndexStore {
	return h.Indexes
}

func (h *RealtimeHandler) CurrentIndex() *models.Index {
	return h.currentIndex
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}

var _ Handler = (*RealtimeHandler)(nil)
