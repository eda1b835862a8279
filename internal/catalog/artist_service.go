package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go-artists-client/internal/httpclient"
	"go-artists-client/internal/model"
)

// ArtistService is the typed surface over the artist endpoints. All calls go
// through the request pipeline, which handles credentials and 401 recovery.
type ArtistService struct {
	client *httpclient.Client
}

func NewArtistService(client *httpclient.Client) *ArtistService {
	return &ArtistService{client: client}
}

// List returns a page of artists. A non-empty name switches to the search
// endpoint and filters by it.
//
// The artist endpoints take the sort field as "sortBy"; the album endpoints
// use "sort". That asymmetry is the backend's, not ours.
func (s *ArtistService) List(ctx context.Context, page model.PageRequest, name string) (*model.PageResponse[model.ArtistSummary], error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page.Page))
	query.Set("size", strconv.Itoa(page.Size))
	if page.Sort != "" {
		query.Set("sortBy", page.Sort)
	}
	if page.Direction != "" {
		query.Set("direction", page.Direction)
	}

	path := "/artists"
	if name != "" {
		query.Set("name", name)
		path = "/artists/search"
	}

	resp, err := s.client.Get(ctx, path+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}

	var result model.PageResponse[model.ArtistSummary]
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (s *ArtistService) GetByID(ctx context.Context, id int64) (*model.Artist, error) {
	resp, err := s.client.Get(ctx, fmt.Sprintf("/artists/%d", id))
	if err != nil {
		return nil, fmt.Errorf("get artist %d: %w", id, err)
	}

	var artist model.Artist
	if err := resp.Decode(&artist); err != nil {
		return nil, err
	}

	return &artist, nil
}

func (s *ArtistService) Create(ctx context.Context, req model.ArtistRequest) (*model.Artist, error) {
	resp, err := s.client.Post(ctx, "/artists", req)
	if err != nil {
		return nil, fmt.Errorf("create artist: %w", err)
	}

	var artist model.Artist
	if err := resp.Decode(&artist); err != nil {
		return nil, err
	}

	return &artist, nil
}

func (s *ArtistService) Update(ctx context.Context, id int64, req model.ArtistRequest) (*model.Artist, error) {
	resp, err := s.client.Put(ctx, fmt.Sprintf("/artists/%d", id), req)
	if err != nil {
		return nil, fmt.Errorf("update artist %d: %w", id, err)
	}

	var artist model.Artist
	if err := resp.Decode(&artist); err != nil {
		return nil, err
	}

	return &artist, nil
}

func (s *ArtistService) Delete(ctx context.Context, id int64) error {
	if _, err := s.client.Delete(ctx, fmt.Sprintf("/artists/%d", id)); err != nil {
		return fmt.Errorf("delete artist %d: %w", id, err)
	}

	return nil
}
