package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go-artists-client/internal/httpclient"
	"go-artists-client/internal/model"
)

// AlbumService is the typed surface over the album endpoints.
type AlbumService struct {
	client *httpclient.Client
}

func NewAlbumService(client *httpclient.Client) *AlbumService {
	return &AlbumService{client: client}
}

func pageQuery(page model.PageRequest) url.Values {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page.Page))
	query.Set("size", strconv.Itoa(page.Size))
	if page.Sort != "" {
		query.Set("sort", page.Sort)
	}
	if page.Direction != "" {
		query.Set("direction", page.Direction)
	}

	return query
}

func (s *AlbumService) List(ctx context.Context, page model.PageRequest) (*model.PageResponse[model.AlbumSummary], error) {
	resp, err := s.client.Get(ctx, "/albums?"+pageQuery(page).Encode())
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}

	var result model.PageResponse[model.AlbumSummary]
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

// SearchByTitle returns a page of albums whose title matches.
func (s *AlbumService) SearchByTitle(ctx context.Context, page model.PageRequest, title string) (*model.PageResponse[model.AlbumSummary], error) {
	query := pageQuery(page)
	query.Set("title", title)

	resp, err := s.client.Get(ctx, "/albums/search?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("search albums: %w", err)
	}

	var result model.PageResponse[model.AlbumSummary]
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (s *AlbumService) GetByID(ctx context.Context, id int64) (*model.Album, error) {
	resp, err := s.client.Get(ctx, fmt.Sprintf("/albums/%d", id))
	if err != nil {
		return nil, fmt.Errorf("get album %d: %w", id, err)
	}

	var album model.Album
	if err := resp.Decode(&album); err != nil {
		return nil, err
	}

	return &album, nil
}

func (s *AlbumService) Create(ctx context.Context, req model.AlbumRequest) (*model.Album, error) {
	resp, err := s.client.Post(ctx, "/albums", req)
	if err != nil {
		return nil, fmt.Errorf("create album: %w", err)
	}

	var album model.Album
	if err := resp.Decode(&album); err != nil {
		return nil, err
	}

	return &album, nil
}

func (s *AlbumService) Update(ctx context.Context, id int64, req model.AlbumRequest) (*model.Album, error) {
	resp, err := s.client.Put(ctx, fmt.Sprintf("/albums/%d", id), req)
	if err != nil {
		return nil, fmt.Errorf("update album %d: %w", id, err)
	}

	var album model.Album
	if err := resp.Decode(&album); err != nil {
		return nil, err
	}

	return &album, nil
}

func (s *AlbumService) Delete(ctx context.Context, id int64) error {
	if _, err := s.client.Delete(ctx, fmt.Sprintf("/albums/%d", id)); err != nil {
		return fmt.Errorf("delete album %d: %w", id, err)
	}

	return nil
}

// UploadCover posts a cover image for the album as a multipart form with a
// single "file" field. Binary payloads bypass JSON encoding in the pipeline.
func (s *AlbumService) UploadCover(ctx context.Context, id int64, filename string, content []byte) (*model.Album, error) {
	resp, err := s.client.PostMultipart(ctx, fmt.Sprintf("/albums/%d/cover", id), "file", filename, content, nil)
	if err != nil {
		return nil, fmt.Errorf("upload cover for album %d: %w", id, err)
	}

	var album model.Album
	if err := resp.Decode(&album); err != nil {
		return nil, err
	}

	return &album, nil
}
