package bridge

import (
	"context"
	"strings"
	"time"

	"github.com/jonwraymond/uibridge/auth"
	"github.com/jonwraymond/uibridge/cache"
	"github.com/jonwraymond/uibridge/executor"
	"github.com/jonwraymond/uibridge/observe"
)

// Broadcaster fans a payload out to every connection except the named one.
// It is the single seam through which dispatch touches other connections,
// so read-result propagation can be toggled or removed without changing
// dispatch logic.
type Broadcaster interface {
	Broadcast(v any, excludeID string)
}

// Dispatcher turns decoded command messages into responses: it resolves
// cacheability, consults the query cache, invokes the executor pool on a
// miss, stores cacheable results, and propagates results to peers.
type Dispatcher struct {
	cache          *cache.Manager
	pool           *executor.Pool
	middleware     *observe.Middleware
	logger         observe.Logger
	broadcaster    Broadcaster
	broadcastReads bool
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Cache      *cache.Manager
	Pool       *executor.Pool
	Middleware *observe.Middleware
	Logger     observe.Logger

	// Broadcaster receives results for fan-out to peers. Nil disables all
	// broadcast.
	Broadcaster Broadcaster

	// DisableReadBroadcast stops cached and fresh read results from being
	// mirrored to non-requesting peers. The source system broadcasts
	// reads; keep the default unless clients rely on request/response
	// semantics only.
	DisableReadBroadcast bool
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNopLogger()
	}
	if cfg.Middleware == nil {
		cfg.Middleware = observe.NewMiddleware(nil, nil, cfg.Logger)
	}
	return &Dispatcher{
		cache:          cfg.Cache,
		pool:           cfg.Pool,
		middleware:     cfg.Middleware,
		logger:         cfg.Logger,
		broadcaster:    cfg.Broadcaster,
		broadcastReads: !cfg.DisableReadBroadcast,
	}
}

// readPrefixes mark commands treated as reads when no explicit action is
// declared.
var readPrefixes = []string{"list", "get", "search"}

// cacheable reports whether a command may be served from and stored in the
// query cache.
func cacheable(msg *CommandMessage) bool {
	if msg.NoCache {
		return false
	}
	if msg.Action == "read" {
		return true
	}
	name := strings.ToLower(strings.TrimPrefix(msg.Name(), "^"))
	for _, p := range readPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// cacheRequest projects the semantically relevant command fields into a
// cache key request. Transport concerns (request id, no_cache, ttl) are
// deliberately excluded.
func cacheRequest(msg *CommandMessage) cache.Request {
	req := cache.Request{
		Command: msg.Name(),
		Action:  msg.Action,
	}
	if msg.Data == nil {
		return req
	}
	if v, ok := msg.Data["model"].(string); ok {
		req.Model = v
	}
	if v, ok := msg.Data["where"].(map[string]any); ok {
		req.Where = v
	}
	if v, ok := msg.Data["fields"].([]any); ok {
		fields := make([]string, 0, len(v))
		for _, f := range v {
			if s, ok := f.(string); ok {
				fields = append(fields, s)
			}
		}
		req.Fields = fields
	}
	if v, ok := msg.Data["order"].(string); ok {
		req.Order = v
	}
	if v, ok := msg.Data["limit"].(float64); ok {
		req.Limit = int(v)
	}
	if v, ok := msg.Data["offset"].(float64); ok {
		req.Offset = int(v)
	}
	return req
}

// Dispatch handles one command message end to end. The requester always
// receives exactly one terminal frame (result or error). Errors are never
// mirrored to peers.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Conn, router *inputRouter, msg *CommandMessage) {
	id := c.Identity()
	meta := observe.CommandMeta{
		Command: msg.Name(),
		Action:  msg.Action,
		ConnID:  c.ID(),
		User:    id.UserID,
	}
	if msg.Data != nil {
		if m, ok := msg.Data["model"].(string); ok {
			meta.Model = m
		}
	}

	useCache := cacheable(msg)
	var key string
	if useCache {
		key = d.cache.GenerateKey(ctx, cacheRequest(msg), id)
		if data, ok := d.cache.GetQuery(key); ok {
			d.middleware.RecordCacheHit(ctx, meta)
			d.respond(ctx, c, Response{Result: data, Cached: true, RequestID: msg.RequestID})
			if d.broadcastReads {
				d.mirror(Response{Result: data, Cached: true}, c.ID())
			}
			return
		}
	}

	ctx = auth.WithIdentity(ctx, id)
	ctx = executor.WithInputRequester(ctx, &connInputRequester{conn: c, router: router})

	cmd := executor.Command{
		Key:        msg.Name(),
		Horizontal: msg.ZHorizontal,
		Action:     msg.Action,
		Data:       msg.Data,
	}

	var res *executor.Result
	run := d.middleware.Wrap(meta, func(ctx context.Context) (any, error) {
		r, err := d.pool.Execute(ctx, cmd, id)
		if err != nil {
			return nil, err
		}
		res = r
		return r.Value, nil
	})

	value, err := run(ctx)
	if err != nil {
		// Command failures stay between the server and the requester.
		d.respond(ctx, c, ErrorResponse{Error: err.Error(), RequestID: msg.RequestID})
		return
	}

	if useCache {
		// The raw override goes through as-is (zero when absent) so the
		// manager applies whatever its default TTL is right now, not a
		// default captured at construction.
		ttl := time.Duration(msg.CacheTTL * float64(time.Second))
		if err := d.cache.CacheQuery(key, value, ttl, id); err != nil {
			d.logger.Warn(ctx, "failed to cache result",
				observe.Field{Key: "command", Value: msg.Name()},
				observe.Field{Key: "error", Value: err.Error()})
		}
	}

	d.respond(ctx, c, Response{Result: value, RequestID: msg.RequestID})

	// Write results always propagate to peers; read results propagate only
	// when read mirroring is enabled.
	if !useCache || d.broadcastReads {
		d.mirror(Response{Result: value}, c.ID())
	}

	// Display events go to the requester only, after the primary response,
	// in production order.
	if res != nil {
		for _, ev := range res.Display {
			d.respond(ctx, c, Event{Event: EventDisplay, Data: ev.Data})
		}
	}
}

func (d *Dispatcher) respond(ctx context.Context, c *Conn, v any) {
	if err := c.Send(v); err != nil {
		d.logger.Warn(ctx, "failed to send response",
			observe.Field{Key: "conn_id", Value: c.ID()},
			observe.Field{Key: "error", Value: err.Error()})
	}
}

func (d *Dispatcher) mirror(v any, excludeID string) {
	if d.broadcaster == nil {
		return
	}
	d.broadcaster.Broadcast(v, excludeID)
}
