// Package backendtest provides an in-process stand-in for the artists
// backend, close enough to the real contract to exercise the full client
// against: JWT-authenticated catalog endpoints, refresh-token rotation and a
// websocket notification feed.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"go-artists-client/internal/model"
)

const (
	// Seeded account, matching the backend's bootstrap user.
	SeedUsername = "admin"
	SeedPassword = "admin123"
)

type Server struct {
	HTTP    *httptest.Server
	BaseURL string // REST prefix, e.g. http://127.0.0.1:PORT/api/v1
	WSURL   string // websocket endpoint

	secret    []byte
	accessTTL time.Duration
	upgrader  websocket.Upgrader

	mu            sync.Mutex
	passwordHash  []byte
	refreshTokens map[string]string // refresh token -> username
	artists       map[int64]model.Artist
	albums        map[int64]model.Album
	nextID        int64
	conns         map[*websocket.Conn]bool
	loginCalls    int
	refreshCalls  int
}

func New() (*Server, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(SeedPassword), 4)
	if err != nil {
		return nil, err
	}

	s := &Server{
		secret:        []byte("backendtest-secret"),
		accessTTL:     15 * time.Minute,
		upgrader:      websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		passwordHash:  hash,
		refreshTokens: map[string]string{},
		artists:       map[int64]model.Artist{},
		albums:        map[int64]model.Album{},
		nextID:        1,
		conns:         map[*websocket.Conn]bool{},
	}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/artists", s.handleListArtists)
			r.Get("/artists/search", s.handleListArtists)
			r.Post("/artists", s.handleCreateArtist)
			r.Get("/artists/{id}", s.handleGetArtist)
			r.Delete("/artists/{id}", s.handleDeleteArtist)
			r.Get("/albums", s.handleListAlbums)
			r.Post("/albums/{id}/cover", s.handleUploadCover)
		})
	})
	r.Get("/ws", s.handleWebSocket)

	s.HTTP = httptest.NewServer(r)
	s.BaseURL = s.HTTP.URL + "/api/v1"
	s.WSURL = "ws" + strings.TrimPrefix(s.HTTP.URL, "http") + "/ws"

	return s, nil
}

func (s *Server) Close() {
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = map[*websocket.Conn]bool{}
	s.mu.Unlock()

	s.HTTP.Close()
}

func (s *Server) LoginCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginCalls
}

func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// Broadcast pushes a notification to every connected websocket client.
func (s *Server) Broadcast(n model.Notification) {
	if n.Timestamp == "" {
		n.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if err := conn.WriteJSON(n); err != nil {
			conn.Close()
			delete(s.conns, conn)
		}
	}
}

func (s *Server) issueTokens(username string) model.AuthResponse {
	now := time.Now()
	access, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      username,
		"username": username,
		"typ":      "access",
		"iat":      now.Unix(),
		"exp":      now.Add(s.accessTTL).Unix(),
	}).SignedString(s.secret)

	refresh := uuid.NewString()
	s.refreshTokens[refresh] = username

	return model.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginCalls++

	if req.Username != SeedUsername || bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, s.issueTokens(req.Username))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCalls++

	username, ok := s.refreshTokens[req.RefreshToken]
	if !ok {
		writeError(w, http.StatusUnauthorized, "refresh token is invalid")
		return
	}

	// Rotation: the presented token is spent.
	delete(s.refreshTokens, req.RefreshToken)

	writeJSON(w, http.StatusOK, s.issueTokens(username))
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleListArtists(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(r.URL.Query().Get("name"))
	page, size := pageParams(r)

	s.mu.Lock()
	all := make([]model.ArtistSummary, 0, len(s.artists))
	for _, artist := range s.artists {
		if name != "" && !strings.Contains(strings.ToLower(artist.Name), name) {
			continue
		}
		all = append(all, model.ArtistSummary{ID: artist.ID, Name: artist.Name, AlbumCount: artist.AlbumCount})
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	writeJSON(w, http.StatusOK, paginate(all, page, size))
}

func (s *Server) handleCreateArtist(w http.ResponseWriter, r *http.Request) {
	var req model.ArtistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "artist name is required")
		return
	}

	s.mu.Lock()
	artist := model.Artist{ID: s.nextID, Name: req.Name, Bio: req.Bio}
	s.artists[artist.ID] = artist
	s.nextID++
	s.mu.Unlock()

	s.Broadcast(model.Notification{
		Type:    model.NotificationArtistCreated,
		Title:   "Artist created",
		Message: artist.Name,
		Data:    json.RawMessage(fmt.Sprintf(`{"id":%d}`, artist.ID)),
	})

	writeJSON(w, http.StatusCreated, artist)
}

func (s *Server) handleGetArtist(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)

	s.mu.Lock()
	artist, ok := s.artists[id]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "artist not found")
		return
	}

	writeJSON(w, http.StatusOK, artist)
}

func (s *Server) handleDeleteArtist(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)

	s.mu.Lock()
	artist, ok := s.artists[id]
	delete(s.artists, id)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "artist not found")
		return
	}

	s.Broadcast(model.Notification{
		Type:    model.NotificationArtistDeleted,
		Title:   "Artist deleted",
		Message: artist.Name,
	})

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAlbums(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)

	s.mu.Lock()
	all := make([]model.AlbumSummary, 0, len(s.albums))
	for _, album := range s.albums {
		all = append(all, model.AlbumSummary{ID: album.ID, Title: album.Title})
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	writeJSON(w, http.StatusOK, paginate(all, page, size))
}

func (s *Server) handleUploadCover(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)

	if _, _, err := r.FormFile("file"); err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}

	s.mu.Lock()
	album, ok := s.albums[id]
	if !ok {
		album = model.Album{ID: id, Title: fmt.Sprintf("album-%d", id)}
	}
	album.CoverURLs = append(album.CoverURLs, fmt.Sprintf("/covers/%d.jpg", id))
	s.albums[id] = album
	s.mu.Unlock()

	s.Broadcast(model.Notification{
		Type:    model.NotificationAlbumCoverUploaded,
		Title:   "Cover uploaded",
		Message: album.Title,
		Data:    json.RawMessage(fmt.Sprintf(`{"id":%d}`, id)),
	})

	writeJSON(w, http.StatusOK, album)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns[conn] = true
	s.mu.Unlock()

	// Drain subscribe/unsubscribe frames until the client goes away.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 10
	}

	return page, size
}

func paginate[T any](all []T, page int, size int) model.PageResponse[T] {
	total := len(all)
	start := page * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	totalPages := (total + size - 1) / size

	return model.PageResponse[T]{
		Content:       all[start:end],
		PageNumber:    page,
		PageSize:      size,
		TotalElements: int64(total),
		TotalPages:    totalPages,
		First:         page == 0,
		Last:          end == total,
		Empty:         end == start,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
