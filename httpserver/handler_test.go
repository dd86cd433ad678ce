package httpserver

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"
	"github.com/ruteri/peer-name-service/api"
	"github.com/ruteri/peer-name-service/events"
	"github.com/ruteri/peer-name-service/interfaces"
	"github.com/ruteri/peer-name-service/metrics"
	"github.com/ruteri/peer-name-service/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testKey struct {
	key *ecdsa.PrivateKey
	id  interfaces.Identity
}

func newTestKey(t *testing.T) testKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return testKey{key: key, id: interfaces.Identity(crypto.PubkeyToAddress(key.PublicKey))}
}

type fakeObserver struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (o *fakeObserver) ObserveOperation(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = make(map[string][]string)
	}
	o.outcomes[op] = append(o.outcomes[op], outcome)
}

func (o *fakeObserver) get(op string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomes[op]
}

var _ metrics.OperationObserver = (*fakeObserver)(nil)

type testEnv struct {
	reg      *registry.Registry
	handler  *Handler
	server   *Server
	broker   *events.Broker
	observer *fakeObserver

	admin, manager, alice, bob testKey
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		broker:   events.NewBroker(),
		observer: &fakeObserver{},
		admin:    newTestKey(t),
		manager:  newTestKey(t),
		alice:    newTestKey(t),
		bob:      newTestKey(t),
	}
	t.Cleanup(env.broker.Close)

	reg, err := registry.New(&registry.Config{
		Admin:   env.admin.id,
		Manager: env.manager.id,
		Sink:    env.broker,
		Log:     logger,
	})
	require.NoError(t, err)
	env.reg = reg

	env.handler = NewHandler(&HandlerConfig{
		Registry: reg,
		Broker:   env.broker,
		Metrics:  env.observer,
		Log:      logger,
	})

	metricsSrv, err := metrics.New("test", "")
	require.NoError(t, err)
	env.server, err = New(&api.HTTPServerConfig{Log: logger}, env.handler, metricsSrv)
	require.NoError(t, err)
	return env
}

func signedRequest(t *testing.T, signer testKey, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return signedRawRequest(t, signer, path, raw)
}

func signedRawRequest(t *testing.T, signer testKey, path string, raw []byte) *http.Request {
	t.Helper()
	sig, err := api.SignBody(signer.key, raw)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.SignatureHeader, sig)
	return req
}

func (env *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)
	return rr
}

func now() api.Stamp {
	return api.NewStamp(time.Now())
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.Error
}

func TestHandleRegister_Success(t *testing.T) {
	env := newTestEnv(t)
	resolver := newTestKey(t).id

	rr := env.serve(signedRequest(t, env.manager, "/api/v1/names/register", &api.RegisterRequest{
		Stamp: now(), Name: "shop", Owner: env.alice.id, Resolver: resolver,
	}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp api.MutationResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "register", resp.Op)
	assert.Equal(t, env.manager.id, resp.Caller)
	require.NotNil(t, resp.Node)
	assert.Equal(t, env.reg.Node(interfaces.Name("shop")), *resp.Node)

	owner, ok := env.reg.OwnerOf(interfaces.Name("shop"))
	require.True(t, ok)
	assert.Equal(t, env.alice.id, owner)
	assert.Equal(t, []string{"ok"}, env.observer.get("register"))
}

func TestHandleMutation_RegistryErrors(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.reg.Register(env.manager.id, interfaces.Name("shop"), env.alice.id, env.alice.id))

	tests := []struct {
		name     string
		signer   testKey
		path     string
		body     any
		status   int
		op       string
		outcome  string
		expected error
	}{
		{
			name:   "register by non-manager",
			signer: env.alice, path: "/api/v1/names/register",
			body:   &api.RegisterRequest{Stamp: now(), Name: "cafe", Owner: env.alice.id},
			status: http.StatusForbidden, op: "register", outcome: "unauthorized",
			expected: interfaces.ErrUnauthorizedCaller,
		},
		{
			name:   "register existing",
			signer: env.manager, path: "/api/v1/names/register",
			body:   &api.RegisterRequest{Stamp: now(), Name: "shop", Owner: env.bob.id},
			status: http.StatusConflict, op: "register", outcome: "already_exists",
			expected: interfaces.ErrNameAlreadyExists,
		},
		{
			name:   "sub under missing parent",
			signer: env.alice, path: "/api/v1/names/register_sub",
			body:   &api.RegisterSubRequest{Stamp: now(), Parent: "cafe", Sub: "us"},
			status: http.StatusNotFound, op: "register_sub", outcome: "not_found",
			expected: interfaces.ErrNameNotExists,
		},
		{
			name:   "transfer by non-owner",
			signer: env.bob, path: "/api/v1/names/transfer",
			body:   &api.TransferRequest{Stamp: now(), Name: "shop", NewOwner: env.bob.id},
			status: http.StatusForbidden, op: "transfer", outcome: "unauthorized",
			expected: interfaces.ErrUnauthorizedCaller,
		},
		{
			name:   "change manager by manager",
			signer: env.manager, path: "/api/v1/roles/manager",
			body:   &api.ChangeManagerRequest{Stamp: now(), NewManager: env.bob.id},
			status: http.StatusForbidden, op: "change_manager", outcome: "unauthorized",
			expected: interfaces.ErrUnauthorizedCaller,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.serve(signedRequest(t, tt.signer, tt.path, tt.body))
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.expected.Error(), decodeError(t, rr))
			assert.Contains(t, env.observer.get(tt.op), tt.outcome)
		})
	}

	owner, _ := env.reg.OwnerOf(interfaces.Name("shop"))
	assert.Equal(t, env.alice.id, owner)
	assert.Equal(t, env.manager.id, env.reg.Manager())
}

func TestHandleMutation_OwnerFlow(t *testing.T) {
	env := newTestEnv(t)
	resolver := newTestKey(t).id
	require.NoError(t, env.reg.Register(env.manager.id, interfaces.Name("shop"), env.alice.id, env.alice.id))

	steps := []struct {
		path string
		body any
	}{
		{"/api/v1/names/register_sub", &api.RegisterSubRequest{Stamp: now(), Parent: "shop", Sub: "us", Resolver: resolver}},
		{"/api/v1/names/update_sub_resolver", &api.UpdateSubResolverRequest{Stamp: now(), Parent: "shop", Sub: "eu", Resolver: resolver}},
		{"/api/v1/names/update_resolver", &api.UpdateResolverRequest{Stamp: now(), Name: "shop", Resolver: resolver}},
		{"/api/v1/names/transfer", &api.TransferRequest{Stamp: now(), Name: "shop", NewOwner: env.bob.id}},
	}
	for _, step := range steps {
		rr := env.serve(signedRequest(t, env.alice, step.path, step.body))
		require.Equal(t, http.StatusOK, rr.Code, "%s: %s", step.path, rr.Body.String())
	}

	subOwner, ok := env.reg.SubOwnerOf(interfaces.Name("shop"), interfaces.Name("us"))
	require.True(t, ok)
	assert.Equal(t, env.alice.id, subOwner)

	euResolver, ok := env.reg.SubResolverOf(interfaces.Name("shop"), interfaces.Name("eu"))
	require.True(t, ok)
	assert.Equal(t, resolver, euResolver)
	assert.False(t, env.reg.SubExists(interfaces.Name("shop"), interfaces.Name("eu")))

	owner, _ := env.reg.OwnerOf(interfaces.Name("shop"))
	assert.Equal(t, env.bob.id, owner)

	// alice no longer owns shop
	rr := env.serve(signedRequest(t, env.alice, "/api/v1/names/renounce", &api.RenounceRequest{Stamp: now(), Name: "shop"}))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.serve(signedRequest(t, env.bob, "/api/v1/names/renounce", &api.RenounceRequest{Stamp: now(), Name: "shop"}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, env.reg.Exists(interfaces.Name("shop")))
}

func TestHandleRenounceByManager(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.reg.Register(env.manager.id, interfaces.Name("shop"), env.alice.id, env.alice.id))

	rr := env.serve(signedRequest(t, env.alice, "/api/v1/names/renounce_by_manager", &api.RenounceRequest{Stamp: now(), Name: "shop"}))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.serve(signedRequest(t, env.manager, "/api/v1/names/renounce_by_manager", &api.RenounceRequest{Stamp: now(), Name: "shop"}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, env.reg.Exists(interfaces.Name("shop")))

	rr = env.serve(signedRequest(t, env.manager, "/api/v1/names/renounce_by_manager", &api.RenounceRequest{Stamp: now(), Name: "shop"}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleChangeManager(t *testing.T) {
	env := newTestEnv(t)

	rr := env.serve(signedRequest(t, env.admin, "/api/v1/roles/manager", &api.ChangeManagerRequest{Stamp: now(), NewManager: env.bob.id}))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp api.MutationResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Nil(t, resp.Node)
	assert.Equal(t, env.bob.id, env.reg.Manager())
}

func TestHandleChangeManager_RejectsZero(t *testing.T) {
	env := newTestEnv(t)

	rr := env.serve(signedRequest(t, env.admin, "/api/v1/roles/manager", &api.ChangeManagerRequest{Stamp: now(), NewManager: interfaces.ZeroIdentity}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, interfaces.ErrZeroIdentity.Error(), decodeError(t, rr))
	assert.Equal(t, env.manager.id, env.reg.Manager())
	assert.Equal(t, []string{"bad_request"}, env.observer.get("change_manager"))
}

func TestHandleRegister_RejectsInvalidUTF8(t *testing.T) {
	env := newTestEnv(t)

	valid, err := json.Marshal(&api.RegisterRequest{Stamp: now(), Name: "shop", Owner: env.alice.id, Resolver: env.alice.id})
	require.NoError(t, err)

	for name, encoded := range map[string]string{
		"raw byte":           "\"\xff\"",
		"lone surrogate":     `"\ud800"`,
		"replacement char":   "\"\uFFFD\"",
		"low surrogate":      `"a\udfffb"`,
	} {
		t.Run(name, func(t *testing.T) {
			raw := bytes.Replace(valid, []byte(`"shop"`), []byte(encoded), 1)
			rr := env.serve(signedRawRequest(t, env.manager, "/api/v1/names/register", raw))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, decodeError(t, rr), api.ErrInvalidName.Error())
		})
	}

	assert.False(t, env.reg.Exists(interfaces.Name("\uFFFD")))
	assert.False(t, env.reg.Exists(interfaces.Name("\xff")))
}

func TestAuthenticate_Rejects(t *testing.T) {
	env := newTestEnv(t)
	body := &api.RegisterRequest{Stamp: now(), Name: "shop", Owner: env.alice.id}

	t.Run("missing signature", func(t *testing.T) {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/names/register", bytes.NewReader(raw))
		rr := env.serve(req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("body changed after signing", func(t *testing.T) {
		req := signedRequest(t, env.manager, "/api/v1/names/register", body)
		raw, _ := json.Marshal(&api.RegisterRequest{Stamp: body.Stamp, Name: "shop", Owner: env.bob.id})
		req.Body = io.NopCloser(bytes.NewReader(raw))
		rr := env.serve(req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rr := env.serve(signedRawRequest(t, env.manager, "/api/v1/names/register", []byte(`{"name":`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		stale := &api.RegisterRequest{Stamp: api.NewStamp(time.Now().Add(-time.Hour)), Name: "shop", Owner: env.alice.id}
		rr := env.serve(signedRequest(t, env.manager, "/api/v1/names/register", stale))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, errStaleRequest.Error(), decodeError(t, rr))
	})

	t.Run("future timestamp", func(t *testing.T) {
		future := &api.RegisterRequest{Stamp: api.NewStamp(time.Now().Add(time.Hour)), Name: "shop", Owner: env.alice.id}
		rr := env.serve(signedRequest(t, env.manager, "/api/v1/names/register", future))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	assert.False(t, env.reg.Exists(interfaces.Name("shop")))
	assert.Equal(t, []string{"bad_signature", "bad_signature", "bad_request", "bad_signature", "bad_signature"}, env.observer.get("register"))
}

func TestAuthenticate_RejectsReplay(t *testing.T) {
	env := newTestEnv(t)
	raw, err := json.Marshal(&api.RenounceRequest{Stamp: now(), Name: "shop"})
	require.NoError(t, err)
	require.NoError(t, env.reg.Register(env.manager.id, interfaces.Name("shop"), env.alice.id, env.alice.id))

	sig, err := api.SignBody(env.alice.key, raw)
	require.NoError(t, err)
	captured := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/names/renounce", bytes.NewReader(raw))
		req.Header.Set(api.SignatureHeader, sig)
		return req
	}

	rr := env.serve(captured())
	require.Equal(t, http.StatusOK, rr.Code)

	// re-registered by the manager, the captured request must not renounce it again
	require.NoError(t, env.reg.Register(env.manager.id, interfaces.Name("shop"), env.alice.id, env.alice.id))
	rr = env.serve(captured())
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, errReplayedRequest.Error(), decodeError(t, rr))
	assert.True(t, env.reg.Exists(interfaces.Name("shop")))
}

func TestAuthenticate_RejectsReencodedReplay(t *testing.T) {
	env := newTestEnv(t)
	shop := interfaces.Name("shop")
	require.NoError(t, env.reg.Register(env.manager.id, shop, env.alice.id, env.alice.id))

	raw, err := json.Marshal(&api.RenounceRequest{Stamp: now(), Name: "shop"})
	require.NoError(t, err)
	header, err := api.SignBody(env.alice.key, raw)
	require.NoError(t, err)
	addr, sig, _ := strings.Cut(header, ":")

	send := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/names/renounce", bytes.NewReader(raw))
		req.Header.Set(api.SignatureHeader, header)
		return env.serve(req)
	}

	require.Equal(t, http.StatusOK, send(header).Code)

	for name, variant := range map[string]string{
		"lower-cased address":  strings.ToLower(addr) + ":" + sig,
		"address without 0x":   strings.TrimPrefix(addr, "0x") + ":" + sig,
		"upper-case signature": addr + ":0x" + strings.ToUpper(sig[2:]),
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, env.reg.Register(env.manager.id, shop, env.alice.id, env.alice.id))

			rr := send(variant)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, errReplayedRequest.Error(), decodeError(t, rr))
			assert.True(t, env.reg.Exists(shop))

			require.NoError(t, env.reg.RenounceByManager(env.manager.id, shop))
		})
	}
}

func TestHandleLookup(t *testing.T) {
	env := newTestEnv(t)
	resolver := newTestKey(t).id
	require.NoError(t, env.reg.Register(env.manager.id, interfaces.Name("shop"), env.alice.id, resolver))
	require.NoError(t, env.reg.RegisterSub(env.alice.id, interfaces.Name("shop"), interfaces.Name("a/b"), resolver))

	t.Run("registered name", func(t *testing.T) {
		rr := env.serve(httptest.NewRequest(http.MethodGet, "/api/v1/names/shop", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp api.NameResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.True(t, resp.Exists)
		assert.Equal(t, "shop", resp.Name)
		assert.Equal(t, env.reg.Node(interfaces.Name("shop")), resp.Node)
		require.NotNil(t, resp.Owner)
		assert.Equal(t, env.alice.id, *resp.Owner)
		require.NotNil(t, resp.Resolver)
		assert.Equal(t, resolver, *resp.Resolver)
	})

	t.Run("unknown name", func(t *testing.T) {
		rr := env.serve(httptest.NewRequest(http.MethodGet, "/api/v1/names/cafe", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp api.NameResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.False(t, resp.Exists)
		assert.Nil(t, resp.Owner)
		assert.Nil(t, resp.Resolver)
	})

	t.Run("escaped subname", func(t *testing.T) {
		rr := env.serve(httptest.NewRequest(http.MethodGet, "/api/v1/names/shop/subs/a%2Fb", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp api.NameResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.True(t, resp.Exists)
		assert.Equal(t, "shop", resp.Parent)
		assert.Equal(t, "a/b", resp.Name)
		assert.Equal(t, env.reg.SubNode(interfaces.Name("shop"), interfaces.Name("a/b")), resp.Node)
	})

	t.Run("roles", func(t *testing.T) {
		rr := env.serve(httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp api.RolesResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, env.admin.id, resp.Admin)
		assert.Equal(t, env.manager.id, resp.Manager)
	})
}

func TestHandleMutation_InternalError(t *testing.T) {
	manager := newTestKey(t)
	mockRegistry := new(registry.MockNameRegistry)
	mockRegistry.On("Register", manager.id, interfaces.Name("shop"), mock.Anything, mock.Anything).
		Return(errors.New("disk on fire"))

	handler := NewHandler(&HandlerConfig{
		Registry: mockRegistry,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	rr := httptest.NewRecorder()
	handler.HandleRegister(rr, signedRequest(t, manager, "/api/v1/names/register", &api.RegisterRequest{Stamp: now(), Name: "shop"}))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	mockRegistry.AssertExpectations(t)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	get := func(path string) (int, string) {
		rr := env.serve(httptest.NewRequest(http.MethodGet, path, nil))
		return rr.Code, strings.TrimSpace(rr.Body.String())
	}

	code, _ := get("/livez")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get("/readyz")
	assert.Equal(t, http.StatusOK, code)

	_, body := get("/drain")
	assert.Equal(t, `{"status":"draining"}`, body)
	_, body = get("/drain")
	assert.Equal(t, `{"status":"already draining"}`, body)

	code, _ = get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	_, body = get("/undrain")
	assert.Equal(t, `{"status":"ready"}`, body)
	code, _ = get("/readyz")
	assert.Equal(t, http.StatusOK, code)
}

func TestDrain_RefusesMutations(t *testing.T) {
	env := newTestEnv(t)
	register := func(name string) *httptest.ResponseRecorder {
		return env.serve(signedRequest(t, env.manager, "/api/v1/names/register", &api.RegisterRequest{
			Stamp: now(), Name: api.TextName(name), Owner: env.alice.id,
		}))
	}

	require.Equal(t, http.StatusOK, env.serve(httptest.NewRequest(http.MethodGet, "/drain", nil)).Code)

	// DrainDuration is zero here, so the refusal starts right after the timer fires.
	require.Eventually(t, func() bool { return env.server.drained.Load() }, time.Second, 5*time.Millisecond)
	rr := register("shop")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, errDraining.Error(), decodeError(t, rr))
	assert.False(t, env.reg.Exists(interfaces.Name("shop")))

	lookup := env.serve(httptest.NewRequest(http.MethodGet, "/api/v1/names/shop", nil))
	assert.Equal(t, http.StatusOK, lookup.Code)

	require.Equal(t, http.StatusOK, env.serve(httptest.NewRequest(http.MethodGet, "/undrain", nil)).Code)
	assert.False(t, env.server.drained.Load())
	assert.Equal(t, http.StatusOK, register("cafe").Code)
	assert.True(t, env.reg.Exists(interfaces.Name("cafe")))
}

func TestHandleEvents_Stream(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.broker.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, env.reg.Register(env.manager.id, interfaces.Name("shop"), env.alice.id, env.bob.id))

	var kinds []interfaces.EventKind
	var seqs []int64
	for i := 0; i < 3; i++ {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var envl events.Envelope
		require.NoError(t, conn.ReadJSON(&envl))
		kinds = append(kinds, envl.Kind)
		seqs = append(seqs, envl.Seq)

		ev, err := envl.Event()
		require.NoError(t, err)
		assert.Equal(t, env.reg.Node(interfaces.Name("shop")), ev.Node())
	}

	assert.Equal(t, []interfaces.EventKind{
		interfaces.KindTransferred,
		interfaces.KindResolverChanged,
		interfaces.KindRegistered,
	}, kinds)
	assert.Equal(t, []int64{1, 2, 3}, seqs)

	conn.Close()
	require.Eventually(t, func() bool { return env.broker.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHandleEvents_Disabled(t *testing.T) {
	handler := NewHandler(&HandlerConfig{
		Registry: new(registry.MockNameRegistry),
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	rr := httptest.NewRecorder()
	handler.HandleEvents(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
