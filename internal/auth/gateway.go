package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go-artists-client/internal/model"
	"go-artists-client/internal/session"
	"go-artists-client/internal/tokenstore"
	"go-artists-client/pkg/apierror"
)

const (
	loginPath   = "/auth/login"
	refreshPath = "/auth/refresh"

	// DefaultRefreshLookahead is how close to expiry a token must be before
	// CheckAndRefresh renews it.
	DefaultRefreshLookahead = time.Minute
)

// State is the session lifecycle position of the gateway.
type State string

const (
	StateAnonymous      State = "ANONYMOUS"
	StateAuthenticating State = "AUTHENTICATING"
	StateAuthenticated  State = "AUTHENTICATED"
	StateRefreshing     State = "REFRESHING"
)

// Disconnector is the slice of the notification channel logout needs.
type Disconnector interface {
	Disconnect()
}

// Gateway owns the token lifecycle: it is the only writer of the token
// store. Login and refresh talk to the backend with a bare HTTP client so
// the request pipeline's credential attachment never applies to them.
type Gateway struct {
	baseURL   string
	client    *http.Client
	tokens    *tokenstore.Store
	session   *session.Store
	lookahead time.Duration
	now       func() time.Time

	mu          sync.Mutex
	state       State
	channel     Disconnector
	logoutHooks []func()
}

func NewGateway(baseURL string, authTimeout time.Duration, tokens *tokenstore.Store, sess *session.Store) *Gateway {
	if authTimeout <= 0 {
		authTimeout = 10 * time.Second
	}

	state := StateAnonymous
	if sess.Current() != nil {
		state = StateAuthenticated
	}

	return &Gateway{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: authTimeout},
		tokens:    tokens,
		session:   sess,
		lookahead: DefaultRefreshLookahead,
		now:       time.Now,
		state:     state,
	}
}

// SetChannel wires the notification channel torn down on logout. Kept out of
// the constructor because the channel is built after the gateway.
func (g *Gateway) SetChannel(channel Disconnector) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channel = channel
}

// OnLogout registers a hook invoked after every logout, so components that
// did not initiate the failing call still observe it.
func (g *Gateway) OnLogout(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logoutHooks = append(g.logoutHooks, fn)
}

func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gateway) setState(state State) {
	g.mu.Lock()
	g.state = state
	g.mu.Unlock()
}

// Login exchanges credentials for a token pair, persists the credential
// record and publishes the new identity. Failures are never retried here.
func (g *Gateway) Login(ctx context.Context, username string, password string) (*model.User, error) {
	g.setState(StateAuthenticating)

	status, body, err := g.postJSON(ctx, loginPath, model.LoginRequest{Username: username, Password: password})
	if err != nil {
		g.setState(StateAnonymous)
		return nil, apierror.Wrap(apierror.KindTransientNetwork, "server did not respond, check that the backend is running", err)
	}

	if status < 200 || status > 299 {
		g.setState(StateAnonymous)
		return nil, loginError(status, body)
	}

	var reply model.AuthResponse
	if err := json.Unmarshal(body, &reply); err != nil {
		g.setState(StateAnonymous)
		return nil, apierror.Wrap(apierror.KindProtocol, "malformed login response", err)
	}
	if reply.AccessToken == "" || reply.RefreshToken == "" || reply.ExpiresIn <= 0 {
		g.setState(StateAnonymous)
		return nil, apierror.New(apierror.KindProtocol, "login response is incomplete", "", status)
	}

	creds := model.Credentials{
		AccessToken:  reply.AccessToken,
		RefreshToken: reply.RefreshToken,
		ExpiresAt:    g.now().Add(time.Duration(reply.ExpiresIn) * time.Second).UnixMilli(),
		Username:     username,
	}
	if err := g.tokens.Save(creds); err != nil {
		g.setState(StateAnonymous)
		return nil, fmt.Errorf("persist credentials: %w", err)
	}

	user := model.UserFromCredentials(creds)
	g.session.Set(user)
	g.setState(StateAuthenticated)
	slog.Info("login succeeded", "username", username)

	return user, nil
}

// Refresh exchanges the stored refresh token for a new token pair. The
// backend rotates refresh tokens, so a reply without a new one is a
// protocol violation and tears the session down.
//
// Return contract: (user, nil) on success; (nil, nil) when nothing could be
// updated for a transient reason (no stored token, network failure) -- the
// session survives; (nil, err) on fatal failure, after exactly one logout.
func (g *Gateway) Refresh(ctx context.Context) (*model.User, error) {
	creds, ok := g.tokens.Load()
	if !ok {
		return nil, nil
	}

	g.setState(StateRefreshing)

	status, body, err := g.postJSON(ctx, refreshPath, model.RefreshTokenRequest{RefreshToken: creds.RefreshToken})
	if err != nil {
		// A momentary network blip must not drop a valid session.
		slog.Warn("token refresh hit a network failure, keeping session", "error", err)
		g.setState(StateAuthenticated)
		return nil, nil
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		g.Logout()
		return nil, apierror.New(apierror.KindCredential, "refresh token rejected", "", status)
	}
	if status < 200 || status > 299 {
		slog.Warn("token refresh failed, keeping session", "status", status)
		g.setState(StateAuthenticated)
		return nil, nil
	}

	var reply model.AuthResponse
	if err := json.Unmarshal(body, &reply); err != nil {
		g.Logout()
		return nil, apierror.Wrap(apierror.KindProtocol, "malformed refresh response", err)
	}
	if reply.AccessToken == "" {
		g.Logout()
		return nil, apierror.New(apierror.KindProtocol, "refresh response missing access token", "", status)
	}
	if reply.RefreshToken == "" {
		g.Logout()
		return nil, apierror.New(apierror.KindProtocol, "refresh response missing rotated refresh token", "", status)
	}

	rotated := model.Credentials{
		AccessToken:  reply.AccessToken,
		RefreshToken: reply.RefreshToken,
		ExpiresAt:    g.now().Add(time.Duration(reply.ExpiresIn) * time.Second).UnixMilli(),
		Username:     creds.Username,
	}
	if err := g.tokens.Save(rotated); err != nil {
		g.Logout()
		return nil, fmt.Errorf("persist rotated credentials: %w", err)
	}

	user := model.UserFromCredentials(rotated)
	g.session.Set(user)
	g.setState(StateAuthenticated)
	slog.Debug("token refreshed", "username", rotated.Username)

	return user, nil
}

// CheckAndRefresh renews the token when its expiry is inside the lookahead
// window; otherwise it is a no-op.
func (g *Gateway) CheckAndRefresh(ctx context.Context) error {
	exp := g.TokenExpirationTime()
	if exp == 0 {
		return nil
	}

	if time.UnixMilli(exp).Sub(g.now()) >= g.lookahead {
		return nil
	}

	_, err := g.Refresh(ctx)
	return err
}

// TokenExpirationTime returns the access token's expiry in ms since epoch,
// preferring the JWT exp claim and falling back to the stored timestamp.
// Zero means no usable token.
func (g *Gateway) TokenExpirationTime() int64 {
	creds, ok := g.tokens.Load()
	if !ok {
		return 0
	}

	// The claim is read without signature verification: the client only
	// schedules a refresh with it, it never trusts it for authorization.
	token, _, err := jwt.NewParser().ParseUnverified(creds.AccessToken, jwt.MapClaims{})
	if err == nil {
		if exp, expErr := token.Claims.GetExpirationTime(); expErr == nil && exp != nil {
			return exp.Time.UnixMilli()
		}
	}

	return creds.ExpiresAt
}

// Logout clears the persisted record, drops the session identity,
// disconnects the notification channel and fires the logout hooks.
// Idempotent.
func (g *Gateway) Logout() {
	g.tokens.Clear()
	g.session.Clear()

	g.mu.Lock()
	g.state = StateAnonymous
	channel := g.channel
	hooks := make([]func(), len(g.logoutHooks))
	copy(hooks, g.logoutHooks)
	g.mu.Unlock()

	if channel != nil {
		channel.Disconnect()
	}
	for _, hook := range hooks {
		hook()
	}

	slog.Info("logged out")
}

func (g *Gateway) postJSON(ctx context.Context, path string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, body, nil
}

func loginError(status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized:
		return apierror.New(apierror.KindCredential, "invalid username or password", "", status)
	case status == http.StatusForbidden:
		return apierror.New(apierror.KindCredential, "access denied", "", status)
	case status == http.StatusNotFound:
		return apierror.New(apierror.KindCredential, "login endpoint not found", "", status)
	case status >= 500:
		return apierror.New(apierror.KindCredential, "server error during login", errorMessage(body), status)
	default:
		msg := errorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("login failed with status %d", status)
		}
		return apierror.New(apierror.KindCredential, msg, "", status)
	}
}

// errorMessage pulls the optional human-readable message out of a backend
// error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if payload.Message != "" {
		return payload.Message
	}

	return payload.Error
}
