// Package client implements the Spit.box REST contract. Every call is a
// single request-response: failures surface immediately and retries are
// always user-initiated.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"spitbox/core/auth"
	"spitbox/model"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Body)
}

// Client talks to one Spit.box backend.
type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  *auth.TokenStore
}

// New creates a client for the backend at baseURL. tokens may hold an
// existing session; it is updated by Login/Register.
func New(baseURL string, tokens *auth.TokenStore) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 60 * time.Second},
		tokens:  tokens,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), "application/json", out)
}

// Login starts a session and stores the issued token.
func (c *Client) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.postJSON(ctx, "/auth/login", model.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	if err := c.tokens.Set(resp.Token); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and stores the issued token.
func (c *Client) Register(ctx context.Context, username, email, password string) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	req := model.RegisterRequest{Username: username, Email: email, Password: password}
	if err := c.postJSON(ctx, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	if err := c.tokens.Set(resp.Token); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GoogleLogin exchanges an OAuth credential for a session token.
func (c *Client) GoogleLogin(ctx context.Context, credential string) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.postJSON(ctx, "/auth/google", model.GoogleAuthRequest{Credential: credential}, &resp); err != nil {
		return nil, err
	}
	if err := c.tokens.Set(resp.Token); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the current user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var resp struct {
		User model.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Beats fetches one page of the feed. Older backends return a bare beat
// array instead of the paginated envelope; both shapes are accepted.
func (c *Client) Beats(ctx context.Context, page, perPage int) (*model.FeedPage, error) {
	path := fmt.Sprintf("/beats?page=%d&per_page=%d", page, perPage)

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, "", &raw); err != nil {
		return nil, err
	}

	if len(raw) > 0 && raw[0] == '[' {
		var beats []model.Beat
		if err := json.Unmarshal(raw, &beats); err != nil {
			return nil, fmt.Errorf("failed to decode beat list: %w", err)
		}
		return &model.FeedPage{Beats: beats, Total: len(beats), Pages: 1, CurrentPage: 1}, nil
	}

	var pageResp model.FeedPage
	if err := json.Unmarshal(raw, &pageResp); err != nil {
		return nil, fmt.Errorf("failed to decode feed page: %w", err)
	}
	return &pageResp, nil
}

// UserBeats lists one user's beats.
func (c *Client) UserBeats(ctx context.Context, username string) ([]model.Beat, error) {
	var beats []model.Beat
	if err := c.do(ctx, http.MethodGet, "/users/"+username+"/beats", nil, "", &beats); err != nil {
		return nil, err
	}
	return beats, nil
}

// UploadBeat posts a new beat as multipart form data. Satisfies
// capture.Uploader.
func (c *Client) UploadBeat(ctx context.Context, title, description, filename string, wavData []byte) (*model.Beat, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("audio", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, err
	}
	if title == "" {
		title = "Untitled Beat"
	}
	if err := w.WriteField("title", title); err != nil {
		return nil, err
	}
	if err := w.WriteField("description", description); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/beats", &body, w.FormDataContentType(), &raw); err != nil {
		return nil, err
	}

	// The backend wraps the created beat in {"beat": ...}; tolerate a bare
	// beat object too.
	var wrapper struct {
		Beat *model.Beat `json:"beat"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Beat != nil {
		return wrapper.Beat, nil
	}
	var beat model.Beat
	if err := json.Unmarshal(raw, &beat); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return &beat, nil
}

// ToggleLike flips the viewer's like on a beat and returns the
// authoritative beat.
func (c *Client) ToggleLike(ctx context.Context, beatID int64) (*model.Beat, error) {
	var beat model.Beat
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/beats/%d/like", beatID), nil, "", &beat); err != nil {
		return nil, err
	}
	return &beat, nil
}

// Comments lists a beat's comments, ordered by audio timestamp.
func (c *Client) Comments(ctx context.Context, beatID int64) ([]model.Comment, error) {
	var comments []model.Comment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/beats/%d/comments", beatID), nil, "", &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// AddComment attaches a comment at the given audio offset.
func (c *Client) AddComment(ctx context.Context, beatID int64, content string, timestamp float64) (*model.Comment, error) {
	var comment model.Comment
	req := model.CommentRequest{Content: content, Timestamp: timestamp}
	if err := c.postJSON(ctx, fmt.Sprintf("/beats/%d/comments", beatID), req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// DeleteComment removes a comment owned by the current user.
func (c *Client) DeleteComment(ctx context.Context, commentID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/comments/%d", commentID), nil, "", nil)
}
