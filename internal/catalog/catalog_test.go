package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-artists-client/internal/httpclient"
	"go-artists-client/internal/model"
	"go-artists-client/internal/tokenstore"
)

type noRefresh struct{}

func (noRefresh) Refresh(context.Context) (*model.User, error) { return nil, nil }
func (noRefresh) Logout()                                      {}

func newCatalogClient(t *testing.T, handler http.Handler) *httpclient.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := tokenstore.New(filepath.Join(t.TempDir(), "credentials.json"))
	require.NoError(t, tokens.Save(model.Credentials{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(15 * time.Minute).UnixMilli(),
		Username:     "admin",
	}))

	return httpclient.NewClient(srv.URL, 5*time.Second, tokens, noRefresh{})
}

func TestArtistService_ListPassesPaginationParams(t *testing.T) {
	var gotPath, gotQuery string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.PageResponse[model.ArtistSummary]{
			Content:  []model.ArtistSummary{{ID: 1, Name: "Nina Simone", AlbumCount: 3}},
			PageSize: 10,
		})
	})

	svc := NewArtistService(newCatalogClient(t, handler))

	page, err := svc.List(context.Background(), model.PageRequest{Page: 2, Size: 10, Sort: "name", Direction: "asc"}, "")
	require.NoError(t, err)

	assert.Equal(t, "/artists", gotPath)
	assert.Contains(t, gotQuery, "page=2")
	assert.Contains(t, gotQuery, "size=10")
	assert.Contains(t, gotQuery, "sortBy=name")
	assert.Contains(t, gotQuery, "direction=asc")

	require.Len(t, page.Content, 1)
	assert.Equal(t, "Nina Simone", page.Content[0].Name)
}

func TestArtistService_ListWithNameUsesSearchEndpoint(t *testing.T) {
	var gotPath string
	var gotName string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotName = r.URL.Query().Get("name")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.PageResponse[model.ArtistSummary]{})
	})

	svc := NewArtistService(newCatalogClient(t, handler))

	_, err := svc.List(context.Background(), model.PageRequest{Size: 10}, "nina")
	require.NoError(t, err)

	assert.Equal(t, "/artists/search", gotPath)
	assert.Equal(t, "nina", gotName)
}

func TestArtistService_SurfacesBackendMessage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "artist name already exists"})
	})

	svc := NewArtistService(newCatalogClient(t, handler))

	_, err := svc.Create(context.Background(), model.ArtistRequest{Name: "Nina Simone"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artist name already exists")
}

func TestArtistService_CreateAndGet(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost:
			var req model.ArtistRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			_ = json.NewEncoder(w).Encode(model.Artist{ID: 7, Name: req.Name, Bio: req.Bio})
		case r.Method == http.MethodGet:
			assert.Equal(t, "/artists/7", r.URL.Path)
			_ = json.NewEncoder(w).Encode(model.Artist{ID: 7, Name: "Nina Simone"})
		}
	})

	svc := NewArtistService(newCatalogClient(t, handler))

	created, err := svc.Create(context.Background(), model.ArtistRequest{Name: "Nina Simone", Bio: "High Priestess of Soul"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)

	got, err := svc.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Nina Simone", got.Name)
}

func TestAlbumService_SearchByTitle(t *testing.T) {
	var gotPath, gotTitle, gotSort string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTitle = r.URL.Query().Get("title")
		gotSort = r.URL.Query().Get("sort")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.PageResponse[model.AlbumSummary]{
			Content: []model.AlbumSummary{{ID: 3, Title: "Pastel Blues"}},
		})
	})

	svc := NewAlbumService(newCatalogClient(t, handler))

	page, err := svc.SearchByTitle(context.Background(), model.PageRequest{Size: 10, Sort: "title"}, "blues")
	require.NoError(t, err)

	assert.Equal(t, "/albums/search", gotPath)
	assert.Equal(t, "blues", gotTitle)
	assert.Equal(t, "title", gotSort)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "Pastel Blues", page.Content[0].Title)
}

func TestAlbumService_UploadCover(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/albums/3/cover", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "cover.jpg", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.Album{ID: 3, Title: "Pastel Blues", CoverURLs: []string{"/covers/3.jpg"}})
	})

	svc := NewAlbumService(newCatalogClient(t, handler))

	album, err := svc.UploadCover(context.Background(), 3, "cover.jpg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/covers/3.jpg"}, album.CoverURLs)
}

func TestAlbumService_Delete(t *testing.T) {
	var gotMethod, gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	svc := NewAlbumService(newCatalogClient(t, handler))

	require.NoError(t, svc.Delete(context.Background(), 5))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/albums/5", gotPath)
}
