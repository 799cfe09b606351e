// server is the graphflow query execution core's main binary: it wires a
// configured Catalog/Storage backend into an Engine and exposes it over
// stdio MCP, HTTP MCP, a chi-routed REST API, and a gorilla/mux debug
// router.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	mcp "github.com/fredcamaral/gomcp-sdk"
	"github.com/fredcamaral/gomcp-sdk/protocol"
	"github.com/fredcamaral/gomcp-sdk/server"
	"github.com/fredcamaral/gomcp-sdk/transport"

	"graphflow/internal/catalog"
	"graphflow/internal/catalog/fixture"
	"graphflow/internal/catalog/pgcat"
	"graphflow/internal/catalog/sqlitecat"
	"graphflow/internal/config"
	"graphflow/internal/debugapi"
	"graphflow/internal/engine"
	"graphflow/internal/httpapi"
	"graphflow/internal/logging"
	"graphflow/internal/mcptools"
	"graphflow/internal/planner/planstore"
)

func main() {
	var (
		mode = flag.String("mode", "stdio", "Server mode: stdio or http")
		addr = flag.String("addr", "", "HTTP server address (when mode=http); overrides config server.port")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logging.SetDefaultLogger(logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level)))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng, closeBackend, err := buildEngine(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build engine: %v", err)
	}
	defer closeBackend()

	mcpServer := mcp.NewServer("graphflow", "1.0.0")
	mcptools.Register(mcpServer, eng)

	switch *mode {
	case "stdio":
		log.Printf("starting graphflow query server in stdio mode")
		stdioTransport := transport.NewStdioTransport()
		mcpServer.SetTransport(stdioTransport)
		if err := mcpServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("mcp server failed: %v", err)
		}

	case "http":
		listenAddr := *addr
		if listenAddr == "" {
			listenAddr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		}
		log.Printf("starting graphflow query server in http mode on %s", listenAddr)
		if err := runHTTPServer(ctx, cfg, eng, mcpServer, listenAddr); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("http server failed: %v", err)
		}

	default:
		log.Fatalf("invalid mode: %s (use 'stdio' or 'http')", *mode)
	}
}

// buildEngine constructs a catalog backend from cfg.Catalog.Backend, an
// optional Redis plan cache, and binds them into an Engine. The returned
// close func releases whichever backend resources were opened.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, func(), error) {
	var (
		cat     catalog.Catalog
		store   catalog.Storage
		closers []func()
	)

	switch cfg.Catalog.Backend {
	case "fixture":
		fc, err := fixture.Load(cfg.Catalog.Fixture.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("loading fixture catalog: %w", err)
		}
		cat, store = fc, fc

	case "sqlite":
		sc, err := sqlitecat.Open(ctx, cfg.Catalog.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite catalog: %w", err)
		}
		cat, store = sc, sc
		closers = append(closers, func() { _ = sc.Close() })

	case "postgres":
		pc, err := pgcat.Open(ctx, cfg.Catalog.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres catalog: %w", err)
		}
		cat, store = pc, pc
		closers = append(closers, func() { _ = pc.Close() })

	default:
		return nil, nil, fmt.Errorf("unknown catalog backend: %q", cfg.Catalog.Backend)
	}

	var cache *planstore.Store
	if cfg.Cache.Addr != "" {
		s, err := planstore.New(ctx, planstore.Config{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, nil, fmt.Errorf("connecting plan cache: %w", err)
		}
		cache = s
		closers = append(closers, func() { _ = s.Close() })
	}

	eng := engine.New(cat, store, cfg.Engine, cache)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return eng, closeAll, nil
}

// runHTTPServer serves the chi-routed REST API on cfg.Server.Port, the
// gorilla/mux debug router on cfg.Server.DebugPort, and a legacy
// MCP-over-HTTP JSON-RPC endpoint on the main listener, until ctx is
// canceled.
func runHTTPServer(ctx context.Context, cfg *config.Config, eng *engine.Engine, mcpServer *server.Server, addr string) error {
	mainMux := http.NewServeMux()
	mainMux.Handle("/", httpapi.NewRouter(eng).Handler())
	mainMux.HandleFunc("/mcp", mcpHTTPHandler(mcpServer))

	mainServer := &http.Server{
		Addr:              addr,
		Handler:           mainMux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	debugServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.DebugPort),
		Handler:           debugapi.NewServer(eng).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("debug introspection listening on %s", debugServer.Addr)
		if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("debug server error: %v", err)
		}
	}()

	go func() {
		log.Printf("query api listening on %s", addr)
		if err := mainServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = debugServer.Shutdown(shutdownCtx)
	return mainServer.Shutdown(shutdownCtx)
}

// mcpHTTPHandler adapts mcpServer's JSON-RPC handling to a plain HTTP
// endpoint, recovering from handler panics so one bad request can't take
// the process down.
func mcpHTTPHandler(mcpServer *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic in mcp handler: %v\n%s", rec, debug.Stack())
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(protocol.JSONRPCResponse{
					JSONRPC: "2.0",
					Error:   &protocol.JSONRPCError{Code: -32603, Message: "internal server error"},
				})
			}
		}()

		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req protocol.JSONRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON-RPC request", http.StatusBadRequest)
			return
		}

		resp := mcpServer.HandleRequest(r.Context(), &req)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Printf("failed to encode mcp response: %v", err)
		}
	}
}
