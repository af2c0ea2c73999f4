package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/authomatic/authomatic-sub000/config"
	"github.com/authomatic/authomatic-sub000/httpadapter"
	"github.com/authomatic/authomatic-sub000/metrics"
	"github.com/authomatic/authomatic-sub000/oauth"
	"github.com/authomatic/authomatic-sub000/oauth/callback"
	"github.com/authomatic/authomatic-sub000/session"
	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const defaultAddr = ":8080"

func newServeCmd(g *globals) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a login server with a /login/{provider} route per configured provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cfg.Server.Addr == "" {
				cfg.Server.Addr = defaultAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, g.logger())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overriding server.addr")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	h, err := newHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "base_url", cfg.Server.BaseURL)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newHandler wires the configured providers, session store and metrics into
// a router.
func newHandler(ctx context.Context, cfg *config.Config, logger hclog.Logger, opt ...config.Option) (http.Handler, error) {
	registry, err := cfg.Registry(ctx, opt...)
	if err != nil {
		return nil, err
	}
	base, err := oauth.NewHTTPClient(append(cfg.HTTPClientOptions(), oauth.WithLogger(logger.Named("http")))...)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	client, err := metrics.NewClient(base, metrics.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	a, err := oauth.New(registry, append(cfg.Options(), oauth.WithHTTPClient(client), oauth.WithLogger(logger))...)
	if err != nil {
		return nil, err
	}
	sessions, middleware, err := newSessions(cfg.Server.Session, logger.Named("session"))
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	if middleware != nil {
		r.Use(middleware)
	}
	r.Get("/", index(registry.Names()))
	providerParam := func(req *http.Request) string { return chi.URLParam(req, "provider") }
	trust := httpadapter.WithTrustForwardedHeaders(cfg.Server.TrustForwardedHeaders)
	r.HandleFunc("/login/{provider}", callback.LoginFunc(a, providerParam, sessions, callback.JSONSuccess(a), callback.JSONError, trust))
	r.HandleFunc("/popup/{provider}", callback.LoginFunc(a, providerParam, sessions, callback.PopupSuccess(a, ""), callback.JSONError, trust))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r, nil
}

// newSessions returns the session func of the configured store and, for
// scs, the middleware loading and committing sessions.
func newSessions(cfg config.Session, logger hclog.Logger) (callback.SessionFunc, func(http.Handler) http.Handler, error) {
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithTTL(cfg.TTL),
		session.WithInsecureCookies(cfg.InsecureCookies),
	}
	switch cfg.Store {
	case "", "memory":
		m, err := session.NewManager(session.NewMemory(opts...), opts...)
		if err != nil {
			return nil, nil, err
		}
		return m.Load, nil, nil
	case "redis":
		backend, err := session.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), opts...)
		if err != nil {
			return nil, nil, err
		}
		m, err := session.NewManager(backend, opts...)
		if err != nil {
			return nil, nil, err
		}
		return m.Load, nil, nil
	case "cookie":
		c, err := session.NewCookie([]byte(cfg.Secret), opts...)
		if err != nil {
			return nil, nil, err
		}
		return c.Load, nil, nil
	case "scs":
		manager := scs.New()
		if cfg.TTL > 0 {
			manager.Lifetime = cfg.TTL
		}
		manager.Cookie.Secure = !cfg.InsecureCookies
		s, err := session.NewSCS(manager)
		if err != nil {
			return nil, nil, err
		}
		return s.Load, manager.LoadAndSave, nil
	}
	return nil, nil, fmt.Errorf("unknown session store %q: %w", cfg.Store, oauth.ErrConfig)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><title>authomatic</title></head><body>
<h1>Log in with</h1>
<ul>{{range .}}<li><a href="/login/{{.}}">{{.}}</a></li>{{end}}</ul>
</body></html>
`))

func index(names []string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = indexTemplate.Execute(w, names)
	}
}
