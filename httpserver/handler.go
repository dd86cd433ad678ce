package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	gocache "github.com/patrickmn/go-cache"
	"github.com/ruteri/peer-name-service/api"
	"github.com/ruteri/peer-name-service/events"
	"github.com/ruteri/peer-name-service/interfaces"
	"github.com/ruteri/peer-name-service/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// maxBodySize is the maximum allowed request body size (64KB).
	maxBodySize = 64 * 1024

	// DefaultMaxClockSkew bounds how far a request timestamp may drift from the server clock.
	DefaultMaxClockSkew = 5 * time.Minute

	tracerName = "github.com/ruteri/peer-name-service/httpserver"
)

var (
	errStaleRequest    = errors.New("request timestamp outside the accepted window")
	errReplayedRequest = errors.New("request already processed")
)

// RequestError provides structured error information for HTTP responses.
// It includes both an HTTP status code and the underlying error.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

// outcome is the metrics label for the error.
func (e *RequestError) outcome() string {
	switch e.StatusCode {
	case http.StatusForbidden:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "already_exists"
	case http.StatusUnauthorized:
		return "bad_signature"
	case http.StatusBadRequest:
		return "bad_request"
	default:
		return "error"
	}
}

// registryError maps registry sentinel errors to HTTP status codes.
func registryError(err error) *RequestError {
	switch {
	case errors.Is(err, interfaces.ErrUnauthorizedCaller):
		return &RequestError{StatusCode: http.StatusForbidden, Err: err}
	case errors.Is(err, interfaces.ErrNameNotExists):
		return &RequestError{StatusCode: http.StatusNotFound, Err: err}
	case errors.Is(err, interfaces.ErrNameAlreadyExists):
		return &RequestError{StatusCode: http.StatusConflict, Err: err}
	case errors.Is(err, interfaces.ErrZeroIdentity):
		return &RequestError{StatusCode: http.StatusBadRequest, Err: err}
	default:
		return &RequestError{StatusCode: http.StatusInternalServerError, Err: err}
	}
}

// HandlerConfig contains the dependencies of Handler.
type HandlerConfig struct {
	Registry interfaces.NameRegistry

	// Broker feeds the websocket event stream. The stream is disabled when nil.
	Broker *events.Broker

	// Metrics records per-operation outcomes. Optional.
	Metrics metrics.OperationObserver

	// MaxClockSkew defaults to DefaultMaxClockSkew.
	MaxClockSkew time.Duration

	Log *slog.Logger
}

// Handler serves the registry API: signed mutations, lookups and the event stream.
type Handler struct {
	registry interfaces.NameRegistry
	broker   *events.Broker
	metrics  metrics.OperationObserver
	skew     time.Duration
	log      *slog.Logger

	// seen holds signer and body hash pairs accepted within the clock skew window.
	seen   *gocache.Cache
	tracer trace.Tracer
	now    func() time.Time
}

// NewHandler creates a new HTTP request handler with the specified dependencies.
func NewHandler(cfg *HandlerConfig) *Handler {
	skew := cfg.MaxClockSkew
	if skew <= 0 {
		skew = DefaultMaxClockSkew
	}
	logger := cfg.Log
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		registry: cfg.Registry,
		broker:   cfg.Broker,
		metrics:  cfg.Metrics,
		skew:     skew,
		log:      logger,
		seen:     gocache.New(2*skew, 4*skew),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
}

type stamped interface {
	IssuedAt() time.Time
}

// authenticate verifies the signature over the raw body, decodes it into req and enforces
// the timestamp window and single use of the signature.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, req stamped) (interfaces.Identity, *RequestError) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return interfaces.Identity{}, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("failed to read request body: %w", err)}
	}

	signature := r.Header.Get(api.SignatureHeader)
	caller, err := api.VerifyBody(signature, body)
	if err != nil {
		return interfaces.Identity{}, &RequestError{StatusCode: http.StatusUnauthorized, Err: err}
	}

	if err := json.Unmarshal(body, req); err != nil {
		return caller, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid request body: %w", err)}
	}

	drift := h.now().Sub(req.IssuedAt())
	if drift > h.skew || drift < -h.skew {
		return caller, &RequestError{StatusCode: http.StatusUnauthorized, Err: errStaleRequest}
	}
	// Keyed on the recovered signer and the body so that re-encodings of the header
	// cannot pass as a new request.
	replayKey := caller.String() + ":" + api.BodyHash(body).Hex()
	if err := h.seen.Add(replayKey, struct{}{}, gocache.DefaultExpiration); err != nil {
		return caller, &RequestError{StatusCode: http.StatusUnauthorized, Err: errReplayedRequest}
	}
	return caller, nil
}

// serveMutation runs one signed registry operation. apply returns the affected node, if any.
func serveMutation[T any, PT interface {
	*T
	stamped
}](h *Handler, w http.ResponseWriter, r *http.Request, op string, apply func(caller interfaces.Identity, req PT) (*interfaces.Node, error)) {
	start := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "registry."+op)
	defer span.End()

	req := PT(new(T))
	caller, reqErr := h.authenticate(w, r, req)
	if reqErr == nil {
		span.SetAttributes(attribute.String("registry.caller", caller.String()))

		node, err := apply(caller, req)
		if err != nil {
			reqErr = registryError(err)
		} else {
			if node != nil {
				span.SetAttributes(attribute.String("registry.node", node.String()))
			}
			h.observe(op, "ok", start)
			h.log.InfoContext(ctx, "Registry operation applied", "op", op, "caller", caller.String())
			writeJSON(w, http.StatusOK, &api.MutationResponse{Op: op, Node: node, Caller: caller})
			return
		}
	}

	span.RecordError(reqErr.Err)
	span.SetStatus(codes.Error, reqErr.Error())
	h.observe(op, reqErr.outcome(), start)

	h.log.Warn("Registry operation rejected", "op", op, "status", reqErr.StatusCode, "err", reqErr.Err)
	writeError(w, reqErr)
}

func (h *Handler) observe(op, outcome string, start time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveOperation(op, outcome, time.Since(start))
	}
}

func nodePtr(node interfaces.Node) *interfaces.Node {
	return &node
}

// HandleRegister creates a top-level name.
//
// URL format: POST /api/v1/names/register
// Body: api.RegisterRequest
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	serveMutation(h, w, r, "register", func(caller interfaces.Identity, req *api.RegisterRequest) (*interfaces.Node, error) {
		name := interfaces.Name(req.Name)
		if err := h.registry.Register(caller, name, req.Owner, req.Resolver); err != nil {
			return nil, err
		}
		return nodePtr(h.registry.Node(name)), nil
	})
}

// HandleRegisterSub creates a subname owned by the signer.
//
// URL format: POST /api/v1/names/register_sub
// Body: api.RegisterSubRequest
func (h *Handler) HandleRegisterSub(w http.ResponseWriter, r *http.Request) {
	serveMutation(h, w, r, "register_sub", func(caller interfaces.Identity, req *api.RegisterSubRequest) (*interfaces.Node, error) {
		parent, sub := interfaces.Name(req.Parent), interfaces.Name(req.Sub)
		if err := h.registry.RegisterSub(caller, parent, sub, req.Resolver); err != nil {
			return nil, err
		}
		return nodePtr(h.registry.SubNode(parent, sub)), nil
	})
}

// HandleUpdateResolver repoints a name owned by the signer.
func (h *Handler) HandleUpdateResolver(w http.ResponseWriter, r *http.Request) {
	serveMutation(h, w, r, "update_resolver", func(caller interfaces.Identity, req *api.UpdateResolverRequest) (*interfaces.Node, error) {
		name := interfaces.Name(req.Name)
		if err := h.registry.UpdateResolver(caller, name, req.Resolver); err != nil {
			return nil, err
		}
		return nodePtr(h.registry.Node(name)), nil
	})
}

// HandleUpdateSubResolver repoints a subname under a parent owned by the signer.
func (h *Handler) HandleUpdateSubResolver(w http.ResponseWriter, r *http.Request) {
	serveMutation(h, w, r, "update_sub_resolver", func(caller interfaces.Identity, req *api.UpdateSubResolverRequest) (*interfaces.Node, error) {
		parent, sub := interfaces.Name(req.Parent), interfaces.Name(req.Sub)
		if err := h.registry.UpdateSubResolver(caller, parent, sub, req.Resolver); err != nil {
			return nil, err
		}
		return nodePtr(h.registry.SubNode(parent, sub)), nil
	})
}

// HandleTransfer hands a name over to a new owner.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	serveMutation(h, w, r, "transfer", func(caller interfaces.Identity, req *api.TransferRequest) (*interfaces.Node, error) {
		name := interfaces.Name(req.Name)
		if err := h.registry.Transfer(caller, name, req.NewOwner); err != nil {
			return nil, err
		}
		return nodePtr(h.registry.Node(name)), nil
	})
}

// HandleRenounce deletes a record owned by the signer.
func (h *Handler) HandleRenounce(w http.ResponseWriter, r *http.Request) {
	serveMutation(h, w, r, "renounce", func(caller interfaces.Identity, req *api.RenounceRequest) (*interfaces.Node, error) {
		name := interfaces.Name(req.Name)
		if err := h.registry.RenounceByOwner(caller, name); err != nil {
			return nil, err
		}
		return nodePtr(h.registry.Node(name)), nil
	})
}

// HandleRenounceByManager deletes any record. Manager only.
func (h *Handler) HandleRenounceByManager(w http.ResponseWriter, r *http.Request) {
	serveMutation(h, w, r, "renounce_by_manager", func(caller interfaces.Identity, req *api.RenounceRequest) (*interfaces.Node, error) {
		name := interfaces.Name(req.Name)
		if err := h.registry.RenounceByManager(caller, name); err != nil {
			return nil, err
		}
		return nodePtr(h.registry.Node(name)), nil
	})
}

// HandleChangeManager reassigns the manager role. Admin only.
//
// URL format: POST /api/v1/roles/manager
func (h *Handler) HandleChangeManager(w http.ResponseWriter, r *http.Request) {
	serveMutation(h, w, r, "change_manager", func(caller interfaces.Identity, req *api.ChangeManagerRequest) (*interfaces.Node, error) {
		return nil, h.registry.ChangeManager(caller, req.NewManager)
	})
}

// HandleLookup returns the record and resolver of a top-level name.
//
// URL format: GET /api/v1/names/{name}
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "name")
	if err != nil {
		writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: err})
		return
	}

	n := interfaces.Name(name)
	resp := &api.NameResponse{Name: name, Node: h.registry.Node(n)}
	if owner, ok := h.registry.OwnerOf(n); ok {
		resp.Exists = true
		resp.Owner = &owner
	}
	if resolver, ok := h.registry.ResolverOf(n); ok {
		resp.Resolver = &resolver
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleLookupSub returns the record and resolver of a subname.
//
// URL format: GET /api/v1/names/{parent}/subs/{sub}
func (h *Handler) HandleLookupSub(w http.ResponseWriter, r *http.Request) {
	parent, err := pathParam(r, "parent")
	if err != nil {
		writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: err})
		return
	}
	sub, err := pathParam(r, "sub")
	if err != nil {
		writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: err})
		return
	}

	p, s := interfaces.Name(parent), interfaces.Name(sub)
	resp := &api.NameResponse{Parent: parent, Name: sub, Node: h.registry.SubNode(p, s)}
	if owner, ok := h.registry.SubOwnerOf(p, s); ok {
		resp.Exists = true
		resp.Owner = &owner
	}
	if resolver, ok := h.registry.SubResolverOf(p, s); ok {
		resp.Resolver = &resolver
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRoles returns the current admin and manager.
func (h *Handler) HandleRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &api.RolesResponse{
		Admin:   h.registry.Admin(),
		Manager: h.registry.Manager(),
	})
}

// pathParam returns the unescaped URL parameter. chi matches on the raw path when the
// request path contains escapes, in which case the parameter is still escaped.
func pathParam(r *http.Request, key string) (string, error) {
	value := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return value, nil
	}
	unescaped, err := url.PathUnescape(value)
	if err != nil {
		return "", fmt.Errorf("invalid %s: %w", key, err)
	}
	return unescaped, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, reqErr *RequestError) {
	writeJSON(w, reqErr.StatusCode, &api.ErrorResponse{Error: reqErr.Error()})
}
