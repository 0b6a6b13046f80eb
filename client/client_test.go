package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"spitbox/core/auth"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens, err := auth.NewTokenStore(filepath.Join(t.TempDir(), "token"))
	if err != nil {
		t.Fatal(err)
	}
	return New(srv.URL+"/api", tokens), srv
}

func TestLoginStoresToken(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@b.c" || body["password"] != "pw" {
			t.Errorf("login body = %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"token": "tok-1",
			"user":  map[string]any{"id": 7, "username": "ada"},
		})
	}))

	resp, err := c.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if resp.User.Username != "ada" {
		t.Errorf("user = %+v", resp.User)
	}
	if c.tokens.Token() != "tok-1" {
		t.Error("token not stored after login")
	}
}

func TestBearerHeaderAttached(t *testing.T) {
	var gotAuth string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"user":{"id":1,"username":"x"}}`))
	}))
	if err := c.tokens.Set("abc"); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Me(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer abc" {
		t.Fatalf("Authorization = %q, want Bearer abc", gotAuth)
	}
}

func TestBeatsPaginatedEnvelope(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("page = %q, want 2", got)
		}
		if got := r.URL.Query().Get("per_page"); got != "10" {
			t.Errorf("per_page = %q, want 10", got)
		}
		w.Write([]byte(`{"beats":[{"id":1,"title":"b1"}],"total":11,"pages":2,"current_page":2}`))
	}))

	page, err := c.Beats(context.Background(), 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Beats) != 1 || page.Total != 11 || page.Pages != 2 || page.CurrentPage != 2 {
		t.Fatalf("page = %+v", page)
	}
}

func TestBeatsBareArrayFallback(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"title":"b1"},{"id":2,"title":"b2"}]`))
	}))

	page, err := c.Beats(context.Background(), 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Beats) != 2 || page.CurrentPage != 1 || page.Pages != 1 {
		t.Fatalf("page = %+v", page)
	}
}

func TestUploadBeatMultipart(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("not multipart: %v", err)
		}
		if got := r.FormValue("title"); got != "My Beat" {
			t.Errorf("title = %q", got)
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Fatalf("audio part missing: %v", err)
		}
		defer file.Close()
		if header.Filename != "recording.wav" {
			t.Errorf("filename = %q", header.Filename)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"ok","beat":{"id":42,"title":"My Beat"}}`))
	}))

	beat, err := c.UploadBeat(context.Background(), "My Beat", "", "recording.wav", []byte("RIFFxxxx"))
	if err != nil {
		t.Fatal(err)
	}
	if beat.ID != 42 {
		t.Fatalf("beat = %+v", beat)
	}
}

func TestCommentsRoundTrip(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			w.Write([]byte(`[{"id":1,"content":"fire","timestamp":12.5,"username":"ada"}]`))
		case r.Method == http.MethodPost:
			var req map[string]any
			json.NewDecoder(r.Body).Decode(&req)
			if req["content"] != "nice" || req["timestamp"] != 3.5 {
				t.Errorf("comment body = %v", req)
			}
			w.Write([]byte(`{"id":2,"content":"nice","timestamp":3.5}`))
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	}))

	comments, err := c.Comments(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 || comments[0].Timestamp != 12.5 {
		t.Fatalf("comments = %+v", comments)
	}

	added, err := c.AddComment(context.Background(), 5, "nice", 3.5)
	if err != nil {
		t.Fatal(err)
	}
	if added.ID != 2 {
		t.Fatalf("added = %+v", added)
	}

	if err := c.DeleteComment(context.Background(), 2); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
}

func TestAPIErrorSurfacesStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"nope"}`, http.StatusUnauthorized)
	}))

	_, err := c.Me(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", apiErr.StatusCode)
	}
}
