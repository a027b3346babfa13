package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Sync Transport
//
// SyncTransport is the engine's view of the hub. The engine never builds an
// HTTP request itself; tests substitute an in-memory transport and exercise
// the full push/pull state machine without a network.
// ============================================================================

// SyncTransport moves batches between this device and the hub.
type SyncTransport interface {
	Push(ctx context.Context, req *PushRequest) (*PushResponse, error)
	Pull(ctx context.Context, since time.Time, deviceID string) (*PullResponse, error)
}

// HubTransport talks to a notekeep hub over HTTP with JWT bearer auth.
type HubTransport struct {
	config     *SyncConfig
	httpClient *http.Client
	authToken  string
}

// NewHubTransport builds a transport for the configured hub. The cached
// token from a previous run is restored so most restarts skip the login
// round trip.
func NewHubTransport(config *SyncConfig) *HubTransport {
	ht := &HubTransport{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	if token, err := GetAuthToken(); err != nil {
		logger.LogErr(err, "failed to restore cached auth token")
	} else if token != "" && tokenStillValid(token) {
		ht.authToken = token
	}

	return ht
}

// tokenStillValid checks the JWT's exp claim locally. The signature is the
// hub's to verify; we only want to avoid sending a token we know is dead.
func tokenStillValid(token string) bool {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	// Leave a minute of slack so a token doesn't expire mid-cycle
	return time.Until(exp.Time) > time.Minute
}

// Health pings the hub's health endpoint.
func (ht *HubTransport) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ht.config.HubURL+"/api/v1/health", nil)
	if err != nil {
		return serr.Wrap(err, "failed to create health check request")
	}

	resp, err := ht.httpClient.Do(req)
	if err != nil {
		return serr.Wrap(err, "health check request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serr.New(fmt.Sprintf("health check returned status %d", resp.StatusCode))
	}
	return nil
}

// Push sends pending notes to the hub and returns per-note outcomes.
func (ht *HubTransport) Push(ctx context.Context, pushReq *PushRequest) (*PushResponse, error) {
	body, err := json.Marshal(pushReq)
	if err != nil {
		return nil, serr.Wrap(err, "failed to marshal push request")
	}

	resp, err := ht.doAuthenticatedRequest(ctx, http.MethodPost, ht.config.HubURL+"/api/v1/sync/push", body)
	if err != nil {
		return nil, serr.Wrap(err, "push request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, serr.New(fmt.Sprintf("push returned status %d", resp.StatusCode))
	}

	var apiResp struct {
		Success bool         `json:"success"`
		Data    PushResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, serr.Wrap(err, "failed to decode push response")
	}
	if !apiResp.Success {
		return nil, serr.New("push request returned success=false")
	}
	return &apiResp.Data, nil
}

// Pull fetches changes recorded on the hub after the given cursor.
func (ht *HubTransport) Pull(ctx context.Context, since time.Time, deviceID string) (*PullResponse, error) {
	pullURL := fmt.Sprintf("%s/api/v1/sync/pull?cursor=%s&device_id=%s",
		ht.config.HubURL,
		url.QueryEscape(since.UTC().Format(time.RFC3339Nano)),
		url.QueryEscape(deviceID))

	resp, err := ht.doAuthenticatedRequest(ctx, http.MethodGet, pullURL, nil)
	if err != nil {
		return nil, serr.Wrap(err, "pull request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, serr.New(fmt.Sprintf("pull returned status %d", resp.StatusCode))
	}

	var apiResp struct {
		Success bool         `json:"success"`
		Data    PullResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, serr.Wrap(err, "failed to decode pull response")
	}
	if !apiResp.Success {
		return nil, serr.New("pull request returned success=false")
	}
	return &apiResp.Data, nil
}

// login posts credentials to the hub's auth endpoint and caches the JWT.
func (ht *HubTransport) login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": ht.config.Username,
		"password": ht.config.Password,
	})
	if err != nil {
		return serr.Wrap(err, "failed to marshal login request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ht.config.HubURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return serr.Wrap(err, "failed to create login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ht.httpClient.Do(req)
	if err != nil {
		return serr.Wrap(err, "login request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serr.New(fmt.Sprintf("login failed with status %d", resp.StatusCode))
	}

	// The login endpoint returns APIResponse { success, data: { token } }
	var apiResp struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return serr.Wrap(err, "failed to decode login response")
	}
	if !apiResp.Success || apiResp.Data.Token == "" {
		return serr.New("login response missing token")
	}

	ht.authToken = apiResp.Data.Token

	// Persist token for reuse across restarts
	if err := SetAuthToken(ht.authToken); err != nil {
		logger.LogErr(err, "failed to persist auth token")
	}

	return nil
}

// doAuthenticatedRequest sends an HTTP request with the cached JWT, logging
// in first when no token is held. On 401, it re-authenticates once and
// retries so callers never see token expiry. The body is taken as bytes so
// the retry can rebuild the request.
func (ht *HubTransport) doAuthenticatedRequest(ctx context.Context, method, reqURL string, body []byte) (*http.Response, error) {
	if ht.authToken == "" {
		if err := ht.login(ctx); err != nil {
			return nil, err
		}
	}

	buildReq := func() (*http.Request, error) {
		var req *http.Request
		var err error
		if body != nil {
			req, err = http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(body))
		} else {
			req, err = http.NewRequestWithContext(ctx, method, reqURL, nil)
		}
		if err != nil {
			return nil, serr.Wrap(err, "failed to create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+ht.authToken)
		return req, nil
	}

	req, err := buildReq()
	if err != nil {
		return nil, err
	}

	resp, err := ht.httpClient.Do(req)
	if err != nil {
		return nil, serr.Wrap(err, "request failed")
	}

	// On 401, re-authenticate once and retry
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()

		if err := ht.login(ctx); err != nil {
			return nil, serr.Wrap(err, "re-authentication failed after 401")
		}

		req, err = buildReq()
		if err != nil {
			return nil, err
		}

		resp, err = ht.httpClient.Do(req)
		if err != nil {
			return nil, serr.Wrap(err, "retry request failed")
		}
	}

	return resp, nil
}
