package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"blockcheck/internal/models"
)

func hostOf(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "https://")
}

func TestHTTPProberStatusCodesAreReachable(t *testing.T) {
	codes := []int{http.StatusOK, http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError}
	for _, code := range codes {
		t.Run(http.StatusText(code), func(t *testing.T) {
			srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			}))
			defer srv.Close()

			p := NewHTTPProber(Options{Client: srv.Client(), Timeout: time.Second})
			if got := p.Probe(context.Background(), hostOf(srv)); got != models.Reachable {
				t.Errorf("expected reachable, got %s", got)
			}
		})
	}
}

func TestHTTPProberIssuesLiveHeadRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		if r.Header.Get("Cache-Control") != "no-store" {
			t.Errorf("expected no-store cache control, got %q", r.Header.Get("Cache-Control"))
		}
		hits.Add(1)
		w.Header().Set("Cache-Control", "max-age=3600")
	}))
	defer srv.Close()

	p := NewHTTPProber(Options{Client: srv.Client(), Timeout: time.Second})
	for i := 0; i < 2; i++ {
		p.Probe(context.Background(), hostOf(srv))
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 live requests, got %d", hits.Load())
	}
}

func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestHTTPProberFollowsRedirects(t *testing.T) {
	t.Run("to reachable host", func(t *testing.T) {
		var hits atomic.Int32
		target := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodHead {
				t.Errorf("expected HEAD after redirect, got %s", r.Method)
			}
			hits.Add(1)
		}))
		defer target.Close()
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, target.URL+"/landing", http.StatusFound)
		}))
		defer srv.Close()

		p := NewHTTPProber(Options{Client: srv.Client(), Timeout: time.Second})
		if got := p.Probe(context.Background(), hostOf(srv)); got != models.Reachable {
			t.Errorf("expected reachable, got %s", got)
		}
		if hits.Load() != 1 {
			t.Errorf("expected the redirect target to be contacted once, got %d", hits.Load())
		}
	})

	t.Run("to closed port", func(t *testing.T) {
		addr := closedAddr(t)
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "https://"+addr+"/", http.StatusFound)
		}))
		defer srv.Close()

		p := NewHTTPProber(Options{Client: srv.Client(), Timeout: time.Second})
		if got := p.Probe(context.Background(), hostOf(srv)); got != models.Blocked {
			t.Errorf("expected blocked, got %s", got)
		}
	})

	t.Run("redirect loop", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.Redirect(w, r, "/again", http.StatusFound)
		}))
		defer srv.Close()

		p := NewHTTPProber(Options{Client: srv.Client(), Timeout: time.Second})
		if got := p.Probe(context.Background(), hostOf(srv)); got != models.Blocked {
			t.Errorf("expected blocked, got %s", got)
		}
		if got := hits.Load(); got != MaxRedirects {
			t.Errorf("expected %d requests, got %d", MaxRedirects, got)
		}
	})
}

func TestHTTPProberTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewHTTPProber(Options{Client: srv.Client(), Timeout: 100 * time.Millisecond})
	started := time.Now()
	got := p.Probe(context.Background(), hostOf(srv))
	if got != models.Blocked {
		t.Errorf("expected blocked, got %s", got)
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Errorf("probe outlived its timeout: %s", elapsed)
	}
}

func TestHTTPProberNetworkFailuresAreBlocked(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		p := NewHTTPProber(Options{Timeout: time.Second})
		if got := p.Probe(context.Background(), closedAddr(t)); got != models.Blocked {
			t.Errorf("expected blocked, got %s", got)
		}
	})

	t.Run("tls failure", func(t *testing.T) {
		// Plain-text server: the TLS handshake cannot complete.
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()

		p := NewHTTPProber(Options{Timeout: time.Second})
		host := strings.TrimPrefix(srv.URL, "http://")
		if got := p.Probe(context.Background(), host); got != models.Blocked {
			t.Errorf("expected blocked, got %s", got)
		}
	})

	t.Run("invalid name", func(t *testing.T) {
		p := NewHTTPProber(Options{Timeout: time.Second})
		if got := p.Probe(context.Background(), "bad host\x7f"); got != models.Blocked {
			t.Errorf("expected blocked, got %s", got)
		}
	})

	t.Run("cancelled parent", func(t *testing.T) {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := NewHTTPProber(Options{Client: srv.Client(), Timeout: time.Second})
		if got := p.Probe(ctx, hostOf(srv)); got != models.Blocked {
			t.Errorf("expected blocked, got %s", got)
		}
	})
}

func TestDefaultTimeout(t *testing.T) {
	if got := NewHTTPProber(Options{}).Timeout(); got != 5*time.Second {
		t.Errorf("expected 5s default, got %s", got)
	}
}
