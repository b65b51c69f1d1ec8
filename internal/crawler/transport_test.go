package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPTransport(t *testing.T) {
	t.Parallel()

	t.Run("returns body and content type", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ua := r.Header.Get("User-Agent"); ua != DefaultUserAgent {
				t.Errorf("User-Agent = %q", ua)
			}
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>ok</html>")) //nolint:errcheck
		}))
		defer server.Close()

		transport, err := NewHTTPTransport(WithHTTPClient(server.Client()))
		if err != nil {
			t.Fatalf("NewHTTPTransport() error = %v", err)
		}

		resp, err := transport.Get(context.Background(), server.URL+"/")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(resp.Body) != "<html>ok</html>" {
			t.Errorf("Body = %q", resp.Body)
		}
		if resp.ContentType != "text/html" {
			t.Errorf("ContentType = %q", resp.ContentType)
		}
	})

	t.Run("non-2xx is a status error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusNotFound)
		}))
		defer server.Close()

		transport, err := NewHTTPTransport(WithHTTPClient(server.Client()))
		if err != nil {
			t.Fatalf("NewHTTPTransport() error = %v", err)
		}

		_, err = transport.Get(context.Background(), server.URL+"/missing")
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
			t.Errorf("error = %v, want 404 StatusError", err)
		}
	})

	t.Run("body over the limit", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("a", 2048))) //nolint:errcheck
		}))
		defer server.Close()

		transport, err := NewHTTPTransport(WithHTTPClient(server.Client()), WithMaxBodySize(1024))
		if err != nil {
			t.Fatalf("NewHTTPTransport() error = %v", err)
		}

		if _, err := transport.Get(context.Background(), server.URL); !errors.Is(err, ErrBodyTooLarge) {
			t.Errorf("error = %v, want ErrBodyTooLarge", err)
		}
	})

	t.Run("per-host headers and user agent", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Cookie"); got != "session=abc" {
				t.Errorf("Cookie = %q", got)
			}
			if got := r.Header.Get("User-Agent"); got != "custom/1.0" {
				t.Errorf("User-Agent = %q", got)
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		var askedHost string
		transport, err := NewHTTPTransport(
			WithHTTPClient(server.Client()),
			WithUserAgent("custom/1.0"),
			WithHeaderFunc(func(host string) map[string]string {
				askedHost = host
				return map[string]string{"Cookie": "session=abc"}
			}),
		)
		if err != nil {
			t.Fatalf("NewHTTPTransport() error = %v", err)
		}

		if _, err := transport.Get(context.Background(), server.URL); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if askedHost != "127.0.0.1" {
			t.Errorf("header func called with host %q", askedHost)
		}
	})

	t.Run("socks5 proxy option builds a client", func(t *testing.T) {
		t.Parallel()

		transport, err := NewHTTPTransport(WithSOCKS5Proxy("127.0.0.1:9050"))
		if err != nil {
			t.Fatalf("NewHTTPTransport() error = %v", err)
		}
		if transport.client == nil {
			t.Error("client is nil")
		}
	})
}
