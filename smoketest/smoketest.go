package smoketest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	jordwebsocket "github.com/aukilabs/jord/websocket"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const defaultTimeout = time.Second * 10

// Options configures a smoke test run.
type Options struct {
	// The public endpoint of the server to test.
	Endpoint string

	// The bearer token presented during the handshake. Empty when the server
	// runs without authentication.
	Token string

	Timeout time.Duration
}

// Results reports the outcome of a smoke test run.
type Results struct {
	Endpoint string        `json:"endpoint"`
	Passed   bool          `json:"passed"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Run connects to the given server and exercises the full element lifecycle
// against a throwaway index: join, add, query, delete.
func Run(ctx context.Context, opts Options) Results {
	start := time.Now()

	err := run(ctx, opts)

	res := Results{
		Endpoint: opts.Endpoint,
		Passed:   err == nil,
		Duration: time.Since(start),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func run(ctx context.Context, opts Options) error {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := strings.ReplaceAll(opts.Endpoint, "http://", "ws://")
	endpoint = strings.ReplaceAll(endpoint, "https://", "wss://")

	config, err := websocket.NewConfig(endpoint, "http://localhost")
	if err != nil {
		return errors.New("initializing web socket failed").Wrap(err)
	}
	if opts.Token != "" {
		config.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	conn, err := websocket.DialConfig(config)
	if err != nil {
		return errors.New("dialing web socket failed").Wrap(err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	indexName := "smoke-test-" + uuid.NewString()

	if err := send(conn, jordwebsocket.IndexJoinRequest{
		Envelope: jordwebsocket.NewEnvelope(jordwebsocket.MsgTypeIndexJoinRequest, 1),
		Name:     indexName,
		Region:   jordwebsocket.Region{X: 0, Y: 0, Width: 100, Height: 100},
	}); err != nil {
		return err
	}

	var joined jordwebsocket.IndexJoinResponse
	if err := receive(conn, jordwebsocket.MsgTypeIndexJoinResponse, &joined); err != nil {
		return err
	}

	if err := send(conn, jordwebsocket.ElementAddRequest{
		Envelope: jordwebsocket.NewEnvelope(jordwebsocket.MsgTypeElementAddRequest, 2),
		Region:   jordwebsocket.Region{X: 10, Y: 10, Width: 5, Height: 5},
	}); err != nil {
		return err
	}

	var added jordwebsocket.ElementAddResponse
	if err := receive(conn, jordwebsocket.MsgTypeElementAddResponse, &added); err != nil {
		return err
	}
	if added.ElementID == 0 {
		return errors.New("element was not stored")
	}

	if err := send(conn, jordwebsocket.RegionQueryRequest{
		Envelope: jordwebsocket.NewEnvelope(jordwebsocket.MsgTypeRegionQueryRequest, 3),
		Region:   jordwebsocket.Region{X: 0, Y: 0, Width: 50, Height: 50},
	}); err != nil {
		return err
	}

	var queried jordwebsocket.RegionQueryResponse
	if err := receive(conn, jordwebsocket.MsgTypeRegionQueryResponse, &queried); err != nil {
		return err
	}
	if len(queried.Elements) != 1 || queried.Elements[0].ElementID != added.ElementID {
		return errors.New("query did not return the stored element").
			WithTag("element_count", len(queried.Elements))
	}

	if err := send(conn, jordwebsocket.ElementDeleteRequest{
		Envelope:  jordwebsocket.NewEnvelope(jordwebsocket.MsgTypeElementDeleteRequest, 4),
		ElementID: added.ElementID,
	}); err != nil {
		return err
	}

	var deleted jordwebsocket.ElementDeleteResponse
	if err := receive(conn, jordwebsocket.MsgTypeElementDeleteResponse, &deleted); err != nil {
		return err
	}
	if !deleted.Found {
		return errors.New("stored element was not found on delete")
	}

	return nil
}

func send(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.New("encoding message failed").Wrap(err)
	}

	if err := websocket.Message.Send(conn, string(data)); err != nil {
		return errors.New("sending message failed").Wrap(err)
	}
	return nil
}

// receive reads messages until one of the given type arrives, skipping
// heartbeats and other interleaved traffic.
func receive(conn *websocket.Conn, msgType jordwebsocket.MsgType, v any) error {
	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			return errors.New("receiving message failed").Wrap(err)
		}

		var envelope struct {
			Type jordwebsocket.MsgType `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return errors.New("decoding message envelope failed").Wrap(err)
		}

		if envelope.Type == jordwebsocket.MsgTypeErrorResponse {
			var res jordwebsocket.ErrorResponse
			json.Unmarshal(data, &res)
			return errors.New("server returned an error").
				WithTag("code", res.Code)
		}

		if envelope.Type != msgType {
			continue
		}

		if err := json.Unmarshal(data, v); err != nil {
			return errors.New("decoding message failed").Wrap(err)
		}
		return nil
	}
}

// HandleSmokeTest triggers a smoke test run against the server's own public
// endpoint and reports the results.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := Run(ctx, opts)
		if !res.Passed {
			logs.WithTag("endpoint", res.Endpoint).
				WithTag("error", res.Error).
				Warn(errors.New("smoke test failed"))
		}

		data, err := json.Marshal(res)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}
