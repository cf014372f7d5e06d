// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tailscale/tscert"
)

// BuiltinBackend is an in-process reverse proxy routing by Host header.
// The table is swapped atomically, so in-flight requests keep the upstream
// they started with.
type BuiltinBackend struct {
	Listen       string // bind host
	HTTPPort     int
	HTTPSPort    int
	TLSTailscale bool // also serve HTTPS with certificates from the Tailscale daemon

	table atomic.Pointer[hostTable]

	mu      sync.Mutex
	servers []*http.Server
	addrs   []net.Addr
	serving atomic.Int32
}

// hostTable is an immutable routing table.
type hostTable struct {
	routes map[string]*hostRoute
}

type hostRoute struct {
	upstream *url.URL
	proxy    *httputil.ReverseProxy
}

// NewBuiltinBackend creates a builtin proxy listening on host:httpPort.
func NewBuiltinBackend(listen string, httpPort, httpsPort int, tlsTailscale bool) *BuiltinBackend {
	b := &BuiltinBackend{Listen: listen, HTTPPort: httpPort, HTTPSPort: httpsPort, TLSTailscale: tlsTailscale}
	b.table.Store(&hostTable{routes: map[string]*hostRoute{}})
	return b
}

func (b *BuiltinBackend) Name() string { return "builtin" }

// Apply compiles routes into a new table and swaps it in.
func (b *BuiltinBackend) Apply(ctx context.Context, routes []Route) error {
	table := &hostTable{routes: make(map[string]*hostRoute, len(routes))}
	for _, r := range routes {
		hr, err := newHostRoute(r)
		if err != nil {
			return err
		}
		table.routes[strings.ToLower(r.Domain)] = hr
	}
	b.table.Store(table)
	return nil
}

func newHostRoute(r Route) (*hostRoute, error) {
	u, err := url.Parse(r.URL())
	if err != nil {
		return nil, fmt.Errorf("invalid upstream %q: %w", r.Upstream, err)
	}

	proxy := httputil.NewSingleHostReverseProxy(u)
	proxy.FlushInterval = -1 // Immediate flushing for dev servers streaming HMR updates

	// Keep the original Host so apps can build absolute URLs for their domain.
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		host := req.Host
		originalDirector(req)
		req.Header.Set("X-Forwarded-Host", host)
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
		log.Printf("Proxy error [%s%s -> %s]: %v", req.Host, req.URL.Path, u.Host, err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}

	return &hostRoute{upstream: u, proxy: proxy}, nil
}

func (b *BuiltinBackend) lookup(host string) *hostRoute {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return b.table.Load().routes[strings.ToLower(host)]
}

// ServeHTTP routes a request by its Host header.
func (b *BuiltinBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route := b.lookup(r.Host)
	if route == nil {
		http.Error(w, fmt.Sprintf("No project is running at %s", r.Host), http.StatusNotFound)
		return
	}
	if isWebSocket(r) {
		serveWebSocket(w, r, route.upstream)
		return
	}
	route.proxy.ServeHTTP(w, r)
}

// serveWebSocket tunnels an upgrade request to target.
func serveWebSocket(w http.ResponseWriter, r *http.Request, target *url.URL) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	upstreamConn, err := dialer.Dial("tcp", target.Host)
	if err != nil {
		log.Printf("WebSocket proxy: failed to connect to %s: %v", target.Host, err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		upstreamConn.Close()
		http.Error(w, "WebSocket hijack not supported", http.StatusInternalServerError)
		return
	}
	clientConn, clientBuf, err := hijacker.Hijack()
	if err != nil {
		upstreamConn.Close()
		log.Printf("WebSocket proxy: hijack failed: %v", err)
		return
	}

	// Replay the upgrade request, headers included.
	if err := r.Write(upstreamConn); err != nil {
		clientConn.Close()
		upstreamConn.Close()
		log.Printf("WebSocket proxy: failed to write request to upstream: %v", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		io.Copy(clientConn, upstreamConn)
		clientConn.Close()
	}()

	go func() {
		defer wg.Done()
		if n := clientBuf.Reader.Buffered(); n > 0 {
			buffered := make([]byte, n)
			clientBuf.Read(buffered)
			upstreamConn.Write(buffered)
		}
		io.Copy(upstreamConn, clientConn)
		upstreamConn.Close()
	}()

	wg.Wait()
}

func isWebSocket(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// Start binds the listeners and serves in the background. Bind errors
// are returned; the backend is healthy once every listener is serving.
func (b *BuiltinBackend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.servers) > 0 {
		return nil
	}

	type binding struct {
		port int
		tls  *tls.Config
	}
	bindings := []binding{{port: b.HTTPPort}}
	if b.TLSTailscale {
		bindings = append(bindings, binding{
			port: b.HTTPSPort,
			tls:  &tls.Config{GetCertificate: tscert.GetCertificate},
		})
	}

	var listeners []net.Listener
	for _, bd := range bindings {
		addr := net.JoinHostPort(b.Listen, strconv.Itoa(bd.port))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			for _, l := range listeners {
				l.Close()
			}
			return fmt.Errorf("proxy listen %s: %w", addr, err)
		}
		if bd.tls != nil {
			ln = tls.NewListener(ln, bd.tls)
		}
		listeners = append(listeners, ln)
	}

	for _, ln := range listeners {
		srv := &http.Server{Handler: b, ReadHeaderTimeout: 30 * time.Second}
		b.servers = append(b.servers, srv)
		b.addrs = append(b.addrs, ln.Addr())
		b.serving.Add(1)
		log.Printf("Proxy listener starting on %s", ln.Addr())

		go func(srv *http.Server, ln net.Listener) {
			defer b.serving.Add(-1)
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Proxy listener %s error: %v", ln.Addr(), err)
			}
		}(srv, ln)
	}
	return nil
}

// Stop gracefully shuts down the listeners.
func (b *BuiltinBackend) Stop(ctx context.Context) error {
	b.mu.Lock()
	servers := b.servers
	b.servers = nil
	b.addrs = nil
	b.mu.Unlock()

	var firstErr error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down proxy listener: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Healthy reports whether every listener is serving.
func (b *BuiltinBackend) Healthy() bool {
	b.mu.Lock()
	n := len(b.servers)
	b.mu.Unlock()
	return n > 0 && int(b.serving.Load()) == n
}

// Addrs returns the bound listener addresses.
func (b *BuiltinBackend) Addrs() []net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]net.Addr(nil), b.addrs...)
}
