package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"
	"github.com/ruteri/peer-name-service/api"
	"github.com/ruteri/peer-name-service/events"
	"github.com/ruteri/peer-name-service/interfaces"
)

// RegistryClient talks to a name service over HTTP, signing every mutation with its key.
type RegistryClient struct {
	// ServerAddr is the base URL of the name service, e.g. http://127.0.0.1:8080
	ServerAddr string

	key        *ecdsa.PrivateKey
	httpClient *http.Client
	now        func() time.Time
}

// NewRegistryClient creates a client. key may be nil for a read-only client.
func NewRegistryClient(serverAddr string, key *ecdsa.PrivateKey, timeout time.Duration) *RegistryClient {
	return &RegistryClient{
		ServerAddr: strings.TrimSuffix(serverAddr, "/"),
		key:        key,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Identity returns the address requests are signed as.
func (c *RegistryClient) Identity() interfaces.Identity {
	if c.key == nil {
		return interfaces.ZeroIdentity
	}
	return interfaces.Identity(crypto.PubkeyToAddress(c.key.PublicKey))
}

func (c *RegistryClient) stamp() api.Stamp {
	return api.NewStamp(c.now())
}

// Register creates a top-level name. The client identity must be the manager.
func (c *RegistryClient) Register(ctx context.Context, name string, owner, resolver interfaces.Identity) (*api.MutationResponse, error) {
	return c.mutate(ctx, "/api/v1/names/register", &api.RegisterRequest{
		Stamp: c.stamp(), Name: api.TextName(name), Owner: owner, Resolver: resolver,
	})
}

// RegisterSub creates sub under parent, owned by the client identity.
func (c *RegistryClient) RegisterSub(ctx context.Context, parent, sub string, resolver interfaces.Identity) (*api.MutationResponse, error) {
	return c.mutate(ctx, "/api/v1/names/register_sub", &api.RegisterSubRequest{
		Stamp: c.stamp(), Parent: api.TextName(parent), Sub: api.TextName(sub), Resolver: resolver,
	})
}

// UpdateResolver repoints name.
func (c *RegistryClient) UpdateResolver(ctx context.Context, name string, resolver interfaces.Identity) (*api.MutationResponse, error) {
	return c.mutate(ctx, "/api/v1/names/update_resolver", &api.UpdateResolverRequest{
		Stamp: c.stamp(), Name: api.TextName(name), Resolver: resolver,
	})
}

// UpdateSubResolver repoints sub under parent.
func (c *RegistryClient) UpdateSubResolver(ctx context.Context, parent, sub string, resolver interfaces.Identity) (*api.MutationResponse, error) {
	return c.mutate(ctx, "/api/v1/names/update_sub_resolver", &api.UpdateSubResolverRequest{
		Stamp: c.stamp(), Parent: api.TextName(parent), Sub: api.TextName(sub), Resolver: resolver,
	})
}

// Transfer hands name over to newOwner.
func (c *RegistryClient) Transfer(ctx context.Context, name string, newOwner interfaces.Identity) (*api.MutationResponse, error) {
	return c.mutate(ctx, "/api/v1/names/transfer", &api.TransferRequest{
		Stamp: c.stamp(), Name: api.TextName(name), NewOwner: newOwner,
	})
}

// Renounce deletes a record owned by the client identity.
func (c *RegistryClient) Renounce(ctx context.Context, name string) (*api.MutationResponse, error) {
	return c.mutate(ctx, "/api/v1/names/renounce", &api.RenounceRequest{Stamp: c.stamp(), Name: api.TextName(name)})
}

// RenounceByManager deletes any record. The client identity must be the manager.
func (c *RegistryClient) RenounceByManager(ctx context.Context, name string) (*api.MutationResponse, error) {
	return c.mutate(ctx, "/api/v1/names/renounce_by_manager", &api.RenounceRequest{Stamp: c.stamp(), Name: api.TextName(name)})
}

// ChangeManager reassigns the manager role. The client identity must be the admin.
func (c *RegistryClient) ChangeManager(ctx context.Context, newManager interfaces.Identity) (*api.MutationResponse, error) {
	return c.mutate(ctx, "/api/v1/roles/manager", &api.ChangeManagerRequest{Stamp: c.stamp(), NewManager: newManager})
}

// Lookup returns the record and resolver of name.
func (c *RegistryClient) Lookup(ctx context.Context, name string) (*api.NameResponse, error) {
	var resp api.NameResponse
	err := c.get(ctx, "/api/v1/names/"+url.PathEscape(name), &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// LookupSub returns the record and resolver of sub under parent.
func (c *RegistryClient) LookupSub(ctx context.Context, parent, sub string) (*api.NameResponse, error) {
	var resp api.NameResponse
	err := c.get(ctx, "/api/v1/names/"+url.PathEscape(parent)+"/subs/"+url.PathEscape(sub), &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Roles returns the current admin and manager.
func (c *RegistryClient) Roles(ctx context.Context) (*api.RolesResponse, error) {
	var resp api.RolesResponse
	if err := c.get(ctx, "/api/v1/roles", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Watch streams registry events until ctx is cancelled or the server closes the stream.
func (c *RegistryClient) Watch(ctx context.Context) (<-chan events.Envelope, error) {
	wsURL := "ws" + strings.TrimPrefix(c.ServerAddr, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not connect to event stream: %w", err)
	}

	out := make(chan events.Envelope)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var env events.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *RegistryClient) mutate(ctx context.Context, path string, req any) (*api.MutationResponse, error) {
	if c.key == nil {
		return nil, errors.New("client has no signing key")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("could not encode request: %w", err)
	}
	signature, err := api.SignBody(c.key, body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ServerAddr+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(api.SignatureHeader, signature)

	var resp api.MutationResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RegistryClient) get(ctx context.Context, path string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ServerAddr+path, nil)
	if err != nil {
		return err
	}
	return c.do(httpReq, out)
}

func (c *RegistryClient) do(httpReq *http.Request, out any) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("could not reach %s: %w", httpReq.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}

// responseError maps a non-200 response back to the registry error it reports.
func responseError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	msg := strings.TrimSpace(string(bodyBytes))
	var errResp api.ErrorResponse
	if json.Unmarshal(bodyBytes, &errResp) == nil && errResp.Error != "" {
		msg = errResp.Error
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusForbidden:
		sentinel = interfaces.ErrUnauthorizedCaller
	case http.StatusNotFound:
		sentinel = interfaces.ErrNameNotExists
	case http.StatusConflict:
		sentinel = interfaces.ErrNameAlreadyExists
	case http.StatusUnauthorized:
		sentinel = api.ErrInvalidSignature
	case http.StatusBadRequest:
		switch {
		case strings.Contains(msg, interfaces.ErrZeroIdentity.Error()):
			sentinel = interfaces.ErrZeroIdentity
		case strings.Contains(msg, api.ErrInvalidName.Error()):
			sentinel = api.ErrInvalidName
		default:
			return fmt.Errorf("server rejected request: %s", msg)
		}
	default:
		return fmt.Errorf("server returned error %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
