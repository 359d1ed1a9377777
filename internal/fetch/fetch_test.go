package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Gut Flora</title><script>tracking()</script></head>
<body><nav>Home | About</nav><p>Microbes colonize the gut.</p><footer>Copyright</footer></body></html>`))
	}))
	defer srv.Close()

	c := NewClient(nil)
	page, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Title != "Gut Flora" {
		t.Errorf("title = %q", page.Title)
	}
	if !strings.Contains(page.Text, "Microbes colonize the gut.") {
		t.Errorf("text = %q", page.Text)
	}
	for _, junk := range []string{"tracking()", "Home | About", "Copyright"} {
		if strings.Contains(page.Text, junk) {
			t.Errorf("boilerplate leaked into text: %q", junk)
		}
	}
}

func TestFetchPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("abstract: microbes matter\n"))
	}))
	defer srv.Close()

	c := NewClient(nil)
	page, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Text != "abstract: microbes matter" {
		t.Errorf("text = %q", page.Text)
	}
	if page.Title != "" {
		t.Errorf("plain text has a title: %q", page.Title)
	}
}

func TestFetchSniffsHTMLWithoutContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte(`<!DOCTYPE html><html><head><title>Sniffed</title></head><body><p>hi</p></body></html>`))
	}))
	defer srv.Close()

	c := NewClient(nil)
	page, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Title != "Sniffed" {
		t.Errorf("title = %q, HTML not detected", page.Title)
	}
}

func TestFetchRejectsSchemes(t *testing.T) {
	c := NewClient(nil)
	for _, u := range []string{"ftp://host/file", "file:///etc/passwd", "javascript:alert(1)"} {
		if _, err := c.Fetch(context.Background(), u); err == nil {
			t.Errorf("scheme accepted: %s", u)
		}
	}
}

func TestFetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(nil)
	if _, err := c.Fetch(context.Background(), srv.URL); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("err = %v", err)
	}
}

func TestExtractHTMLKeepsParagraphs(t *testing.T) {
	title, text := extractHTML(`<html><head><title>T</title></head><body><p>one</p><p>two</p></body></html>`)
	if title != "T" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(text, "one") || !strings.Contains(text, "two") {
		t.Fatalf("text = %q", text)
	}
	if strings.Contains(text, "one two") {
		t.Errorf("paragraph boundary lost: %q", text)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	got := collapseWhitespace("  a   b \n\n\n\n c\t d  \n")
	want := "a b\n\nc d"
	if got != want {
		t.Errorf("collapseWhitespace = %q, want %q", got, want)
	}
}
