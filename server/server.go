package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/gin-gonic/gin"
)

const (
	defaultReadTimeout = 30 * time.Second
	shutdownTimeout    = 5 * time.Second
)

// NewHandler builds the gin engine serving the bridge API
func NewHandler(s *bridgeService, auth *Authenticator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware(), requestLogMiddleware(), requestMetricsMiddleware())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.GET("/token-prices", s.TokenPrices)
	r.POST("/precheck", s.Precheck)
	r.POST("/bridge", s.Bridge)
	r.POST("/bridge-status", s.BridgeStatus)

	r.GET("/valts", s.Valts)
	r.GET("/valt/:network", s.Valt)
	r.GET("/user-liquidity", s.UserLiquidity)
	r.GET("/fee", s.GetFee)

	r.POST("/add-liquidity", auth.RequireAdmin(true), s.AddLiquidity)
	r.POST("/withdraw", auth.RequireAuth(), s.Withdraw)

	admin := r.Group("/", auth.RequireAdmin(false))
	admin.POST("/fee", s.SetFee)
	admin.POST("/requeue", s.Requeue)
	admin.GET("/deposits", s.Deposits)
	return r
}

// RunServer serves the HTTP API until ctx is done
func RunServer(ctx context.Context, cfg Config, handler http.Handler) error {
	if len(cfg.HTTPPort) == 0 {
		return fmt.Errorf("invalid TCP port for HTTP server: '%s'", cfg.HTTPPort)
	}
	readTimeout := cfg.ReadTimeout.Duration
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: cfg.WriteTimeout.Duration,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("error shutting down http server: %v", err)
		}
	}()

	log.Info("Restful Server is serving at ", cfg.HTTPPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
