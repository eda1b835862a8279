package model

// Artist is the full artist record returned by get-by-id.
type Artist struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Bio        string         `json:"bio,omitempty"`
	AlbumCount int            `json:"albumCount"`
	Albums     []AlbumSummary `json:"albums,omitempty"`
	CreatedAt  string         `json:"createdAt,omitempty"`
	UpdatedAt  string         `json:"updatedAt,omitempty"`
}

// ArtistSummary is the reduced shape used by artist listings.
type ArtistSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	AlbumCount int    `json:"albumCount"`
}

// ArtistRequest creates or updates an artist.
type ArtistRequest struct {
	Name string `json:"name"`
	Bio  string `json:"bio,omitempty"`
}

// Album is the full album record returned by get-by-id.
type Album struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	ReleaseYear int             `json:"releaseYear,omitempty"`
	Artists     []ArtistInAlbum `json:"artists"`
	CoverURLs   []string        `json:"coverUrls"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	UpdatedAt   string          `json:"updatedAt,omitempty"`
}

// ArtistInAlbum is the reduced artist shape embedded in an album.
type ArtistInAlbum struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AlbumSummary is the reduced shape used by album listings.
type AlbumSummary struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	ReleaseYear int      `json:"releaseYear,omitempty"`
	ArtistNames []string `json:"artistNames,omitempty"`
	CoverURL    string   `json:"coverUrl,omitempty"`
}

// AlbumRequest creates or updates an album.
type AlbumRequest struct {
	Title       string  `json:"title"`
	ArtistIDs   []int64 `json:"artistIds"`
	ReleaseYear int     `json:"releaseYear,omitempty"`
}
