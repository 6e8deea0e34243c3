package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"investex.com/internal/auth"
	"investex.com/internal/wallet/handler"
	middleware2 "investex.com/pkg/middleware"
	"investex.com/pkg/ratelimit"
)

// NewRouter 组装路由和中间件
// ctx 由调用方持有，限流表的清理协程随它退出
func NewRouter(ctx context.Context, addr string, verifier auth.TokenVerifier, h *handler.WalletHandler) *http.Server {
	// 限流
	store := ratelimit.NewStore(1000, 2000, 10*time.Minute)
	store.StartJanitor(ctx, time.Minute)
	// 监控
	r := gin.New()
	p := ginprom.NewPrometheus("investex")
	p.Use(r)
	r.Use(
		otelgin.Middleware("deposit-service"),
		middleware2.ReqId(),
		cors.Default(),
		middleware2.Recover(),
		middleware2.RateLimit(store),
	)

	api := r.Group("/api")
	wallet := api.Group("/wallet", middleware2.Auth(verifier))
	{
		wallet.POST("/address", h.AllocateAddress)
		wallet.POST("/sync", h.SyncDeposits)
		wallet.GET("/balance", h.GetBalance)
		wallet.GET("/deposits", h.ListDeposits)
	}

	s := &http.Server{
		Addr:           addr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second, // 同步 pass 要等链上 RPC，放宽写超时
		MaxHeaderBytes: 1 << 20,
	}
	return s
}
