package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/jord/featureflag"
	jordhttp "github.com/aukilabs/jord/http"
	"github.com/aukilabs/jord/models"
	"github.com/aukilabs/jord/smoketest"
	jordwebsocket "github.com/aukilabs/jord/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The jord version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "jord_info",
		Help:        "Jord information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it,
// the keys would get obfuscated causing the cli package to generate garbled
// command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"JORD_ADDR"                  help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"JORD_ADMIN_ADDR"            help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"JORD_PUBLIC_ENDPOINT"       help:"The public endpoint where this jord server is reachable."`
	AuthSecret         string        `cli:""        env:"JORD_AUTH_SECRET"           help:"Shared secret clients must present as a bearer token. Empty disables authentication."`
	LogLevel           string        `cli:""        env:"JORD_LOG_LEVEL"             help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"JORD_LOG_INDENT"            help:"Indent logs."`
	HeartbeatInterval  time.Duration `cli:",hidden" env:"JORD_HEARTBEAT_INTERVAL"    help:"Client heartbeat message interval."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"JORD_CLIENT_IDLE_TIMEOUT"   help:"Time until an idle client will be disconnected."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"JORD_LOG_SUMMARY_INTERVAL"  help:"The duration between each log summary by connection."`
	Events             eventsConfig  `cli:",hidden" env:"-"                          help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"JORD_FEATURE_FLAGS"         help:"Comma separated feature flags."`
	Version            bool          `cli:""        env:"-"                          help:"Show version."`
	Help               bool          `cli:""        env:"-"                          help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"JORD_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"JORD_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"JORD_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"JORD_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		HeartbeatInterval:  time.Second * 5,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts a jord spatial index server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "jord",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	indexes := models.IndexStore{}
	defer indexes.Close()

	var service http.ServeMux
	service.Handle("/health", jordhttp.HandleWithCORS(http.HandlerFunc(jordhttp.HandleHealthCheck)))
	service.Handle("/version", jordhttp.HandleWithCORS(jordhttp.HandleVersion(version)))
	service.Handle("/ready", jordhttp.HandleWithCORS(jordhttp.HandleReadyCheck(func() bool {
		return true
	})))

	service.HandleFunc("/smoke-test", jordhttp.VerifyAuthTokenHandler(conf.AuthSecret, smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint: conf.PublicEndpoint,
		Token:    conf.AuthSecret,
	})))

	service.Handle("/", jordhttp.HandleWithCORS(websocket.Server{
		Handshake: jordhttp.VerifyAuthToken(conf.AuthSecret),
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var h jordwebsocket.Handler = &jordwebsocket.RealtimeHandler{
				ClientHeartbeatInterval: conf.HeartbeatInterval,
				ClientIdleTimeout:       conf.ClientIdleTimeout,
				Indexes:                 &indexes,
				FeatureFlags:            featureflag.New(conf.FeatureFlags),
			}
			h = jordwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
			h = jordwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			jordwebsocket.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", jordhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		Info("starting jord server")

	jordhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			jordhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}
