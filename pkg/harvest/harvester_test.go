package harvest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Test page</title><script>tracking();</script></head>
<body>
  <nav><a href="/home">Home navigation menu</a></nav>
  <article>
    <h1>Quantum computing breakthrough announced</h1>
    <p>Researchers demonstrated a new error-correction scheme.
       Read the <a href="/paper/2024">full paper</a> for details.
       <img src="/img/chip.png" alt="the chip"></p>
  </article>
  <footer>Copyright footer text that should be stripped away</footer>
</body>
</html>`

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <item>
      <title>First feed entry</title>
      <link>https://example.com/one</link>
      <description>Something happened in the world today.</description>
    </item>
    <item>
      <title>Second feed entry</title>
      <link>https://example.com/two</link>
      <description>Something else happened shortly after.</description>
    </item>
  </channel>
</rss>`

func newHarvesterForTest() *Harvester {
	return New(1, 5*time.Second, "neuraletter-test/1.0")
}

func TestHarvestExtractsSectionsLinksAndImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	results := newHarvesterForTest().Harvest(context.Background(), []string{srv.URL + "/article"})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	page := results[0]
	if page.Error != "" {
		t.Fatalf("unexpected error: %s", page.Error)
	}
	if len(page.Sections) == 0 {
		t.Fatal("expected sections")
	}

	var foundLink, foundImage, foundNav bool
	for _, section := range page.Sections {
		for _, link := range section.Links {
			if link.URL == srv.URL+"/paper/2024" && link.Text == "full paper" {
				foundLink = true
			}
		}
		for _, img := range section.Images {
			if img.URL == srv.URL+"/img/chip.png" && img.Alt == "the chip" {
				foundImage = true
			}
		}
		if section.Text == "Home navigation menu" {
			foundNav = true
		}
	}
	if !foundLink {
		t.Error("relative link not absolutized into a section")
	}
	if !foundImage {
		t.Error("image not extracted")
	}
	if foundNav {
		t.Error("nav content should be stripped")
	}
}

func TestHarvestOneResultPerInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	urls := []string{srv.URL, "not a url at all", srv.URL + "/other"}
	results := newHarvesterForTest().Harvest(context.Background(), urls)
	if len(results) != len(urls) {
		t.Fatalf("got %d results, want %d", len(results), len(urls))
	}
	if results[1].Error != "invalid url" {
		t.Errorf("results[1].Error = %q", results[1].Error)
	}
	if results[0].Error != "" || results[2].Error != "" {
		t.Errorf("valid urls should succeed: %q / %q", results[0].Error, results[2].Error)
	}
}

func TestHarvestServerErrorBecomesMarker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	results := newHarvesterForTest().Harvest(context.Background(), []string{srv.URL + "/broken"})
	if results[0].Error == "" {
		t.Fatal("expected an error marker")
	}
	if len(results[0].Sections) != 0 {
		t.Error("failed page must carry no sections")
	}
}

func TestHarvestRespectsRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	results := newHarvesterForTest().Harvest(context.Background(), []string{
		srv.URL + "/private/secret",
		srv.URL + "/public/page",
	})
	if results[0].Error != "blocked by robots.txt" {
		t.Errorf("results[0].Error = %q", results[0].Error)
	}
	if results[1].Error != "" {
		t.Errorf("allowed path failed: %q", results[1].Error)
	}
}

func TestHarvestParsesFeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	results := newHarvesterForTest().Harvest(context.Background(), []string{srv.URL + "/feed.xml"})
	page := results[0]
	if page.Error != "" {
		t.Fatalf("unexpected error: %s", page.Error)
	}
	if len(page.Sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(page.Sections))
	}
	if len(page.Sections[0].Links) != 1 || page.Sections[0].Links[0].URL != "https://example.com/one" {
		t.Errorf("feed item link = %+v", page.Sections[0].Links)
	}
}
