package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"cricchat.local/internal/platform/config"
)

// New 对外服务；WriteTimeout 不作用于已升级的 websocket 连接
func New(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// NewAdmin 管理端口（metrics/readyz/pprof），只应监听本机或内网
func NewAdmin(cfg config.Config, handler http.Handler) *http.Server {
	srv := New(cfg, handler)
	srv.Addr = cfg.AdminAddr
	// pprof profile 默认采样 30s
	if srv.WriteTimeout < 40*time.Second {
		srv.WriteTimeout = 40 * time.Second
	}
	return srv
}

// RunWithGracefulShutdownContext 监听直到 stopCtx 结束，再在 shutdownTimeout 内优雅关闭
func RunWithGracefulShutdownContext(srv *http.Server, shutdownTimeout time.Duration, stopCtx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-stopCtx.Done():
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		slog.Info("http server stopped", "addr", srv.Addr)
	}
	return nil
}
