/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/partyhub/games/celebrity"
	"github.com/Seednode/partyhub/games/impostor"
	"github.com/Seednode/partyhub/games/wavelength"
	"github.com/Seednode/partyhub/party"
	"github.com/julienschmidt/httprouter"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("partyhub v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Version page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// newManager builds the room registry with every game registered.
func newManager(cfg *Config, opts ...party.Option) *party.Manager {
	opts = append([]party.Option{
		party.WithIdleTimeout(cfg.sessionTimeout),
		party.WithCodeLength(cfg.codeLength),
		party.WithLogger(cfg.logger),
	}, opts...)

	m := party.NewManager(opts...)
	m.Register(impostor.New())
	m.Register(wavelength.New())
	m.Register(celebrity.New())

	return m
}

type services struct {
	manager *party.Manager
	metrics *metrics
	limiter *limiter
	music   musicSearcher
}

func newRouter(cfg *Config, svc services, errs chan<- error) *httprouter.Router {
	mux := httprouter.New()

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		if strings.HasPrefix(r.URL.Path, cfg.prefix+"/api/") {
			writeJSON(cfg, w, http.StatusInternalServerError, response{Error: "internal server error"}, errs)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))

	mux.Handler("GET", cfg.prefix+"/metrics", svc.metrics.handler())

	mux.GET(cfg.prefix+"/games", serveGames(cfg, svc.manager, errs))

	mux.POST(cfg.prefix+"/api/:game", rateLimited(cfg, svc.limiter, svc.metrics, errs, serveAction(cfg, svc.manager, svc.metrics, errs)))

	mux.GET(cfg.prefix+"/api/:game/:code", serveState(cfg, svc.manager, errs))

	mux.GET(cfg.prefix+"/api/:game/:code/qr", serveQR(cfg, svc.manager, errs))

	if svc.music != nil {
		mux.GET(cfg.prefix+"/music/search", rateLimited(cfg, svc.limiter, svc.metrics, errs, serveMusicSearch(cfg, svc.music, errs)))
	}

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	return mux
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	logf(cfg, "START: partyhub v%s", releaseVersion)

	shutdownTracer, err := initTracer(ctx, cfg)
	if err != nil {
		return err
	}

	svc := services{manager: newManager(cfg)}
	svc.metrics = newMetrics(svc.manager)

	go svc.manager.Run(ctx)

	if cfg.rateLimit > 0 {
		svc.limiter = newLimiter(cfg.rateLimit, cfg.rateBurst)

		go svc.limiter.run(ctx)
	}

	if cfg.musicAPI != "" {
		svc.music = newITunesClient(cfg.musicAPI)
	}

	errs := make(chan error, 64)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errs:
				cfg.logger.Errorf("ERROR: %v", err)
			}
		}
	}()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           otelhttp.NewHandler(newRouter(cfg, svc, errs), "partyhub"),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	serveErr := make(chan error, 1)

	go func() {
		var err error
		logf(cfg, "SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		_ = shutdownTracer(context.Background())

		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = shutdownTracer(shutdownCtx)

	logf(cfg, "STOP: partyhub v%s", releaseVersion)

	return nil
}
