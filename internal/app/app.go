package app

import (
	"fmt"

	"go-artists-client/internal/auth"
	"go-artists-client/internal/catalog"
	"go-artists-client/internal/config"
	"go-artists-client/internal/httpclient"
	"go-artists-client/internal/notification"
	"go-artists-client/internal/session"
	"go-artists-client/internal/tokenstore"
)

// App wires the client components together. Everything is explicitly
// constructed here so tests can build isolated instances of any layer; no
// package-level singletons.
type App struct {
	Config        *config.Config
	Tokens        *tokenstore.Store
	Session       *session.Store
	Auth          *auth.Gateway
	HTTP          *httpclient.Client
	Artists       *catalog.ArtistService
	Albums        *catalog.AlbumService
	Notifications *notification.Channel
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewWithConfig(cfg), nil
}

func NewWithConfig(cfg *config.Config) *App {
	tokens := tokenstore.New(cfg.CredentialsFile)
	sess := session.New(tokens)
	gateway := auth.NewGateway(cfg.APIBaseURL, cfg.AuthTimeout, tokens, sess)
	client := httpclient.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, tokens, gateway)
	channel := notification.NewWithPolicy(cfg.WebSocketURL, cfg.HeartbeatInterval, cfg.ReconnectDelay, cfg.MaxReconnects)

	// Logout must reach the channel even when triggered by a failing
	// request on a different code path.
	gateway.SetChannel(channel)

	return &App{
		Config:        cfg,
		Tokens:        tokens,
		Session:       sess,
		Auth:          gateway,
		HTTP:          client,
		Artists:       catalog.NewArtistService(client),
		Albums:        catalog.NewAlbumService(client),
		Notifications: channel,
	}
}

// StartBackground launches the periodic session expiry check.
func (a *App) StartBackground() {
	a.Session.StartExpiryCheck(a.Auth, a.Config.SessionCheckInterval)
}

// Close tears the background pieces down.
func (a *App) Close() {
	a.Session.Close()
	a.Notifications.Disconnect()
}
