package bookmark

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testCredentials() Credentials {
	return Credentials{
		ClientKey:         "ck",
		ClientSecret:      "cs",
		AccessToken:       "at",
		AccessTokenSecret: "as",
	}
}

func TestBookmarkSignsAndPostsEntry(t *testing.T) {
	var gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST method, got %s", r.Method)
		}
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client, err := New(Options{PostURI: server.URL, Credentials: testCredentials(), Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Bookmark(context.Background(), "http://example.com/?a=1&b=2", ""); err != nil {
		t.Fatalf("bookmark failed: %v", err)
	}
	if !strings.HasPrefix(gotAuth, "OAuth ") || !strings.Contains(gotAuth, `oauth_consumer_key="ck"`) || !strings.Contains(gotAuth, `oauth_token="at"`) {
		t.Fatalf("unexpected authorization header: %s", gotAuth)
	}
	if !strings.Contains(gotAuth, `oauth_signature_method="HMAC-SHA1"`) {
		t.Fatalf("expected HMAC-SHA1 signature, got %s", gotAuth)
	}
	if !strings.Contains(gotBody, `href="http://example.com/?a=1&amp;b=2"`) {
		t.Fatalf("unexpected post body: %s", gotBody)
	}
}

func TestBookmarkCustomTemplate(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer server.Close()

	client, err := New(Options{
		PostURI:      server.URL,
		PostTemplate: "url={{.URI}} comment={{.Summary}}",
		Credentials:  testCredentials(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Bookmark(context.Background(), "http://x/", "nice"); err != nil {
		t.Fatalf("bookmark failed: %v", err)
	}
	if gotBody != "url=http://x/ comment=nice" {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestBookmarkFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := New(Options{PostURI: server.URL, Credentials: testCredentials()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = client.Bookmark(context.Background(), "http://x/", "")
	if err == nil || !strings.Contains(err.Error(), "status=401") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Options{PostURI: "http://example.com", Credentials: Credentials{ClientKey: "ck"}})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
