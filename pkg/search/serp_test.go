package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchSendsQueryAndLocale(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		got = map[string]string{
			"engine":        q.Get("engine"),
			"q":             q.Get("q"),
			"api_key":       q.Get("api_key"),
			"location":      q.Get("location"),
			"google_domain": q.Get("google_domain"),
			"hl":            q.Get("hl"),
			"gl":            q.Get("gl"),
		}
		w.Write([]byte(`{"organic_results": [{"title": "hit"}]}`))
	}))
	defer srv.Close()

	c := NewClient("key-1", srv.URL, "google", Locale{
		Location:     "Austin, Texas, United States",
		GoogleDomain: "google.com",
		Language:     "en",
		Country:      "us",
	})

	results, err := c.Search(context.Background(), "solar panels")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := results["organic_results"]; !ok {
		t.Error("decoded results missing organic_results")
	}

	want := map[string]string{
		"engine": "google", "q": "solar panels", "api_key": "key-1",
		"location": "Austin, Texas, United States", "google_domain": "google.com",
		"hl": "en", "gl": "us",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("param %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestSearchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "google", Locale{})
	if _, err := c.Search(context.Background(), "anything"); err == nil {
		t.Fatal("expected an error")
	}
}
