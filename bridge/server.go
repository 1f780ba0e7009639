package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jonwraymond/uibridge/auth"
	"github.com/jonwraymond/uibridge/cache"
	"github.com/jonwraymond/uibridge/catalog"
	"github.com/jonwraymond/uibridge/executor"
	"github.com/jonwraymond/uibridge/observe"
)

// Config configures the bridge server.
type Config struct {
	// Version is the server version advertised in hello payloads.
	Version string

	// Features lists capability flags advertised in hello payloads.
	Features []string

	// Auth authenticates connections before the upgrade. Nil accepts every
	// connection as anonymous with no origin check.
	Auth *auth.Manager

	// Cache is the shared query/schema cache. Required.
	Cache *cache.Manager

	// Pool is the bounded executor pool. Required.
	Pool *executor.Pool

	// Catalog supplies model discovery and schema loading. Optional.
	Catalog catalog.Catalog

	// Logger, Metrics and Tracer default to no-ops when nil.
	Logger  observe.Logger
	Metrics observe.Metrics
	Tracer  observe.Tracer

	// DisableReadBroadcast stops read results from being mirrored to
	// non-requesting peers. Write results always propagate.
	DisableReadBroadcast bool

	// SendBuffer is the per-connection outbound buffer, in frames.
	// Default: 32.
	SendBuffer int

	// QueueSize is the per-connection command queue depth. Default: 16.
	QueueSize int

	// PingInterval is the keepalive ping period. Default: 30 seconds.
	PingInterval time.Duration

	// WriteTimeout bounds a single frame write. Default: 10 seconds.
	WriteTimeout time.Duration

	// ReadLimit caps inbound frame size in bytes. Default: 1 MiB.
	ReadLimit int64
}

func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = observe.NewNopLogger()
	}
	if c.Metrics == nil {
		c.Metrics = observe.NewNopMetrics()
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 32
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 16
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
}

// Server owns the connection set and serves the WebSocket endpoint.
type Server struct {
	cfg        Config
	auth       *auth.Manager
	cache      *cache.Manager
	dispatcher *Dispatcher
	info       *InfoManager
	logger     observe.Logger
	metrics    observe.Metrics
	upgrader   websocket.Upgrader

	mu     sync.RWMutex
	conns  map[string]*Conn
	closed bool
}

var _ http.Handler = (*Server)(nil)
var _ Broadcaster = (*Server)(nil)

// NewServer creates a bridge server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Cache == nil {
		return nil, ErrNilCache
	}
	if cfg.Pool == nil {
		return nil, ErrNilExecutorPool
	}
	cfg.applyDefaults()

	s := &Server{
		cfg:     cfg,
		auth:    cfg.Auth,
		cache:   cfg.Cache,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		conns:   make(map[string]*Conn),
	}
	s.info = NewInfoManager(cfg.Version, cfg.Features, cfg.Cache, cfg.Catalog, cfg.Logger)
	s.dispatcher = NewDispatcher(DispatcherConfig{
		Cache:                cfg.Cache,
		Pool:                 cfg.Pool,
		Middleware:           observe.NewMiddleware(cfg.Tracer, cfg.Metrics, cfg.Logger),
		Logger:               cfg.Logger,
		Broadcaster:          s,
		DisableReadBroadcast: cfg.DisableReadBroadcast,
	})
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// Origin is validated against the allow-list before the upgrade.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return s, nil
}

// ServeHTTP accepts one WebSocket connection and runs its read loop until
// disconnect. Origin and credential failures close the connection before
// it ever joins the registry.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	identity := auth.Anonymous()
	if s.auth != nil {
		id, err := s.auth.Authenticate(r.Context(), auth.NewConnectRequest(r))
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, auth.ErrOriginDenied) {
				status = http.StatusForbidden
			}
			s.logger.Info(r.Context(), "connection rejected",
				observe.Field{Key: "remote_addr", Value: r.RemoteAddr},
				observe.Field{Key: "reason", Value: err.Error()})
			http.Error(w, err.Error(), status)
			return
		}
		identity = id
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "upgrade failed",
			observe.Field{Key: "error", Value: err.Error()})
		return
	}

	c := newConn(ws, identity, s.logger, s.cfg)
	s.register(c)
	defer s.deregister(c)

	ctx := context.Background()
	go c.writePump(ctx)

	hello := Event{Event: EventConnectionInfo, Data: s.info.BuildHello(ctx, identity)}
	if err := c.Send(hello); err != nil {
		c.logger.Warn(ctx, "failed to send hello",
			observe.Field{Key: "error", Value: err.Error()})
	}

	s.readLoop(ctx, c)
}

func (s *Server) register(c *Conn) {
	s.mu.Lock()
	s.conns[c.id] = c
	n := len(s.conns)
	s.mu.Unlock()

	s.metrics.RecordConnection(context.Background(), 1)
	c.logger.Info(context.Background(), "connection registered",
		observe.Field{Key: "auth_kind", Value: string(c.identity.Kind)},
		observe.Field{Key: "connections", Value: n})
}

func (s *Server) deregister(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	n := len(s.conns)
	s.mu.Unlock()

	c.Close()
	s.metrics.RecordConnection(context.Background(), -1)
	c.logger.Info(context.Background(), "connection deregistered",
		observe.Field{Key: "connections", Value: n})
}

// readLoop decodes inbound frames until the connection drops. Command
// messages are queued and dispatched in arrival order by a worker
// goroutine, so a slow backend call never stops this loop from handling
// cache administration or input responses.
func (s *Server) readLoop(ctx context.Context, c *Conn) {
	c.ws.SetReadLimit(s.cfg.ReadLimit)
	pongWait := 2 * s.cfg.PingInterval
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	router := newInputRouter()
	queue := make(chan *CommandMessage, s.cfg.QueueSize)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for msg := range queue {
			s.dispatcher.Dispatch(ctx, c, router, msg)
		}
	}()
	defer func() {
		// Close first: a worker blocked on client input must observe the
		// disconnect now, not at the next failed keepalive write, so the
		// connection leaves the registry promptly.
		c.Close()
		close(queue)
		wg.Wait()
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug(ctx, "read failed",
					observe.Field{Key: "error", Value: err.Error()})
			}
			return
		}

		inbound, err := Decode(data)
		if err != nil {
			c.logger.Debug(ctx, "unrecognized inbound frame")
			if err := c.Send(ErrorResponse{Error: "unrecognized message shape"}); err != nil {
				c.logger.Warn(ctx, "failed to send response",
					observe.Field{Key: "error", Value: err.Error()})
			}
			continue
		}

		switch inbound.Kind {
		case KindCommand:
			select {
			case queue <- inbound.Command:
			case <-c.done:
				return
			}
		case KindAdmin:
			s.handleAdmin(ctx, c, inbound.Admin)
		case KindInputResponse:
			if !router.resolve(inbound.Input.RequestID, inbound.Input.Value) {
				c.logger.Debug(ctx, "input response for unknown request",
					observe.Field{Key: "request_id", Value: inbound.Input.RequestID})
			}
		}
	}
}

// handleAdmin serves cache-administration messages inline. These operate
// directly on the cache manager and never touch the executor pool.
func (s *Server) handleAdmin(ctx context.Context, c *Conn, m *AdminMessage) {
	switch m.Action {
	case AdminGetSchema:
		if m.Model == "" {
			// No model means full-catalog introspection.
			models, err := s.info.Introspect(ctx, "")
			if err != nil {
				models = nil
			}
			s.dispatcher.respond(ctx, c, Response{Result: models})
			return
		}
		schema, err := s.cache.GetSchema(ctx, m.Model, s.info.SchemaLoader())
		if err != nil {
			// Missing schema resolves to a nil result, not an error.
			c.logger.Debug(ctx, "schema unavailable",
				observe.Field{Key: "model", Value: m.Model},
				observe.Field{Key: "error", Value: err.Error()})
			schema = nil
		}
		s.dispatcher.respond(ctx, c, Response{Result: schema})

	case AdminClearCache:
		n := s.cache.ClearAll()
		s.dispatcher.respond(ctx, c, Response{Result: map[string]any{"cleared": n}})

	case AdminCacheStats:
		s.dispatcher.respond(ctx, c, Response{Result: s.cache.Stats()})

	case AdminSetQueryTTL:
		if m.TTL <= 0 {
			s.dispatcher.respond(ctx, c, ErrorResponse{Error: "ttl must be positive"})
			return
		}
		s.cache.SetDefaultTTL(time.Duration(m.TTL * float64(time.Second)))
		s.dispatcher.respond(ctx, c, Response{Result: map[string]any{"ttl": m.TTL}})
	}
}

// Broadcast fans v out to every registered connection except excludeID.
// Best effort: a peer with a full buffer or closed socket is skipped.
func (s *Server) Broadcast(v any, excludeID string) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error(context.Background(), "broadcast marshal failed",
			observe.Field{Key: "error", Value: err.Error()})
		return
	}

	s.mu.RLock()
	peers := make([]*Conn, 0, len(s.conns))
	for id, c := range s.conns {
		if id != excludeID {
			peers = append(peers, c)
		}
	}
	s.mu.RUnlock()

	for _, peer := range peers {
		if err := peer.SendRaw(data); err != nil {
			peer.logger.Debug(context.Background(), "broadcast skipped peer",
				observe.Field{Key: "error", Value: err.Error()})
		}
	}
}

// ConnectionCount reports the number of registered connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Shutdown stops accepting connections and closes every registered one.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}

	s.logger.Info(ctx, "server shut down",
		observe.Field{Key: "connections_closed", Value: len(conns)})
	return nil
}
