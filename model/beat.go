package model

// Beat represents one published clip in the feed.
//
// Field names follow the backend's wire format. LikesCount and LikedByUser
// are mutated optimistically on like toggles; the authoritative values are
// always re-derived from the next fetch.
type Beat struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	AudioURL    string    `json:"audio_url"`
	UserID      int64     `json:"user_id"`
	Author      string    `json:"username"`
	AuthorPhoto string    `json:"author_photo,omitempty"`
	CreatedAt   string    `json:"created_at"`
	Duration    float64   `json:"duration,omitempty"` // seconds, known once the audio is decoded
	LikesCount  int       `json:"likes_count"`
	LikedByUser bool      `json:"liked_by_user"`
	Comments    []Comment `json:"comments,omitempty"`
}

// FeedPage is one page of the paginated feed.
type FeedPage struct {
	Beats       []Beat `json:"beats"`
	Total       int    `json:"total"`
	Pages       int    `json:"pages"`
	CurrentPage int    `json:"current_page"`
}
