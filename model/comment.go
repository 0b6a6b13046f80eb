package model

// Comment is a time-stamped comment attached to a beat. Timestamp is an
// offset in seconds into the beat's audio, not wall-clock time, and is
// expected to lie within [0, beat duration].
type Comment struct {
	ID        int64   `json:"id"`
	BeatID    int64   `json:"beat_id,omitempty"`
	Content   string  `json:"content"`
	Timestamp float64 `json:"timestamp"`
	Author    string  `json:"username"`
	UserPhoto string  `json:"user_photo,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// CommentRequest is the body for adding a comment to a beat.
type CommentRequest struct {
	Content   string  `json:"content"`
	Timestamp float64 `json:"timestamp"`
}
