package model

// PageResponse is the backend's generic paginated envelope.
type PageResponse[T any] struct {
	Content       []T   `json:"content"`
	PageNumber    int   `json:"pageNumber"`
	PageSize      int   `json:"pageSize"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
	Empty         bool  `json:"empty"`
}

// PageRequest carries pagination and ordering parameters for list calls.
type PageRequest struct {
	Page      int
	Size      int
	Sort      string
	Direction string // "asc" or "desc"
}
