package websocket

import (
	"time"

	"github.com/aukilabs/jord/geom"
	"github.com/aukilabs/jord/models"
	"github.com/aukilabs/jord/quadtree"
)

// ErrorCode qualifies an error_response.
type ErrorCode string

const (
	ErrorCodeBadRequest          ErrorCode = "bad_request"
	ErrorCodeIndexNotJoined      ErrorCode = "index_not_joined"
	ErrorCodeNotFound            ErrorCode = "not_found"
	ErrorCodeOutsideBounds       ErrorCode = "outside_bounds"
	ErrorCodeOperationDisabled   ErrorCode = "operation_disabled"
	ErrorCodeInternalServerError ErrorCode = "internal_server_error"
)

// Envelope carries the fields shared by every protocol message.
type Envelope struct {
	Type      MsgType   `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id,omitempty"`
}

func NewEnvelope(t MsgType, requestID uint32) Envelope {
	return Envelope{
		Type:      t,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

func (e Envelope) MessageType() MsgType {
	return e.Type
}

// Message is any protocol message carrying its own type tag.
type Message interface {
	MessageType() MsgType
}

// Region is a rectangle on the wire, described by its top-left corner and
// its full size.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func RegionFromAABB(a geom.AABB) Region {
	return Region{
		X:      a.Center.X - a.Extents.X,
		Y:      a.Center.Y - a.Extents.Y,
		Width:  a.Extents.X * 2,
		Height: a.Extents.Y * 2,
	}
}

func (r Region) AABB() geom.AABB {
	return geom.AABBFromCorner(r.X, r.Y, r.Width, r.Height)
}

// Request is the payload of messages carrying no fields beyond the envelope.
type Request struct {
	Envelope
}

type Response struct {
	Envelope
}

type ErrorResponse struct {
	Envelope
	Code ErrorCode `json:"code"`
}

type Heartbeat struct {
	Envelope
}

type IndexJoinRequest struct {
	Envelope
	Name     string `json:"name"`
	Region   Region `json:"region"`
	Capacity int    `json:"capacity,omitempty"`
}

type IndexJoinResponse struct {
	Envelope
	IndexID   uint32 `json:"index_id"`
	IndexUUID string `json:"index_uuid"`
	Name      string `json:"name"`
	Region    Region `json:"region"`
	Capacity  int    `json:"capacity"`
}

type ElementAddRequest struct {
	Envelope
	Region Region `json:"region"`
	Data   []byte `json:"data,omitempty"`
}

// ElementAddResponse acknowledges an element_add. ElementID is 0 when the
// element fell outside the index bound and was dropped.
type ElementAddResponse struct {
	Envelope
	ElementID   uint32 `json:"element_id"`
	ElementUUID string `json:"element_uuid,omitempty"`
}

type ElementDeleteRequest struct {
	Envelope
	ElementID uint32 `json:"element_id"`
}

type ElementDeleteResponse struct {
	Envelope
	ElementID uint32 `json:"element_id"`
	Found     bool   `json:"found"`
}

type RegionQueryRequest struct {
	Envelope
	Region Region `json:"region"`
}

// ElementState is an element as returned by a region query.
type ElementState struct {
	ElementID   uint32 `json:"element_id"`
	ElementUUID string `json:"element_uuid"`
	Region      Region `json:"region"`
	Data        []byte `json:"data,omitempty"`
}

func ElementStateFromModel(e *models.Element) ElementState {
	return ElementState{
		ElementID:   e.ID,
		ElementUUID: e.UUID,
		Region:      RegionFromAABB(e.Footprint()),
		Data:        e.Data,
	}
}

// RegionQueryResponse lists matches in the index's depth-first traversal
// order, which is not a spatial sort.
type RegionQueryResponse struct {
	Envelope
	Elements []ElementState `json:"elements"`
}

type IndexClearRequest struct {
	Envelope
}

type IndexClearResponse struct {
	Envelope
}

type IndexStatsRequest struct {
	Envelope
}

type IndexStatsResponse struct {
	Envelope
	NodeCount    int    `json:"node_count"`
	ElementCount int    `json:"element_count"`
	MaxDepth     int    `json:"max_depth"`
	Capacity     int    `json:"capacity"`
	Region       Region `json:"region"`
}

func IndexStatsResponseFromStats(requestID uint32, s quadtree.Stats) IndexStatsResponse {
	return IndexStatsResponse{
		Envelope:     NewEnvelope(MsgTypeIndexStatsResponse, requestID),
		NodeCount:    s.NodeCount,
		ElementCount: s.ElementCount,
		MaxDepth:     s.MaxDepth,
		Capacity:     s.Capacity,
		Region:       RegionFromAABB(s.Bound),
	}
}
