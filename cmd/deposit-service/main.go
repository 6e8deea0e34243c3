package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"investex.com/internal/auth"
	"investex.com/internal/chain/eth"
	"investex.com/internal/wallet/handler"
	whttp "investex.com/internal/wallet/http"
	"investex.com/internal/wallet/repo"
	"investex.com/internal/wallet/service"
	"investex.com/pkg/config"
	"investex.com/pkg/hdwallet"
	"investex.com/pkg/logger"
	"investex.com/pkg/metrics"
	"investex.com/pkg/orm"
	"investex.com/pkg/ratelimit"
	"investex.com/pkg/safe"
	"investex.com/pkg/trace"
	"investex.com/pkg/xredis"
)

const serviceName = "deposit-service"

type Config struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`

	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`

	Mysql struct {
		DSN         string `mapstructure:"dsn"`
		MaxIdle     int    `mapstructure:"max_idle"`
		MaxOpen     int    `mapstructure:"max_open"`
		MaxLifetime int    `mapstructure:"max_lifetime"`
	} `mapstructure:"mysql"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Chain struct {
		RPCURL string `mapstructure:"rpc_url"`
		// 账户级扩展公钥 (m/44'/60'/0')，生产必填；私钥绝不进这台机器
		Xpub string `mapstructure:"xpub"`
		// 开发环境兜底：从助记词本地推出 xpub，仅限测试
		DevMnemonic    string `mapstructure:"dev_mnemonic"`
		TokenContract  string `mapstructure:"token_contract"`
		TokenDecimals  int32  `mapstructure:"token_decimals"`
		TokenSymbol    string `mapstructure:"token_symbol"`
		RPCTimeoutSec  int    `mapstructure:"rpc_timeout_sec"`
		SweepIntervals int    `mapstructure:"sweep_interval_sec"`
	} `mapstructure:"chain"`

	Trace struct {
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"trace"`
}

func main() {
	// 1. 加载配置 (config/deposit.yaml，支持环境变量覆盖和热更新)
	var c Config
	if _, err := config.LoadAndWatch("deposit", &c); err != nil {
		panic("load config failed: " + err.Error())
	}

	// 2. 初始化日志
	if c.Name == "" {
		c.Name = serviceName
	}
	logger.Init(c.Name, c.LogLevel)
	defer logger.Sync()
	ctx := context.Background()

	// 3. 链路追踪 (可选，endpoint 为空则跳过)
	if c.Trace.Endpoint != "" {
		shutdown, err := trace.InitTrace(c.Name, c.Trace.Endpoint)
		if err != nil {
			logger.Fatal(ctx, "init trace failed", zap.Error(err))
		}
		defer shutdown(context.Background())
	}

	// 4. 基础设施
	db := orm.NewMySQL(&orm.Config{
		DSN:         c.Mysql.DSN,
		MaxIdle:     c.Mysql.MaxIdle,
		MaxOpen:     c.Mysql.MaxOpen,
		MaxLifetime: c.Mysql.MaxLifetime,
	})
	logger.Info(ctx, "✅ MySQL 连接成功")

	rdb := xredis.NewRedis(&xredis.Config{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
	logger.Info(ctx, "✅ Redis 连接成功")

	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal(ctx, "auto migrate failed", zap.Error(err))
	}

	// 5. HD 钱包。xpub 配置错误直接 Fatal：派生出错误地址比起不来服务严重得多
	wallet, err := newWallet(&c)
	if err != nil {
		logger.Fatal(ctx, "init hd wallet failed", zap.Error(err))
	}

	// 6. 链上网关，带熔断
	breakers := ratelimit.NewBreakerManager(ratelimit.BreakerRule{
		TripConsecutiveFailures: 5,
		Timeout:                 15 * time.Second,
	}, nil)
	gateway, err := eth.NewAdapter(c.Chain.RPCURL, c.Chain.TokenContract,
		breakers, time.Duration(c.Chain.RPCTimeoutSec)*time.Second)
	if err != nil {
		logger.Fatal(ctx, "init eth gateway failed", zap.Error(err))
	}
	defer gateway.Close()

	// 7. 业务装配
	metrics.MustRegister()
	r := repo.New(db)
	token := service.TokenConfig{
		Contract: c.Chain.TokenContract,
		Decimals: c.Chain.TokenDecimals,
		Symbol:   c.Chain.TokenSymbol,
	}
	addressSvc := service.NewAddressService(r, wallet)
	syncSvc := service.NewSyncService(r, r, r, gateway, token, xredis.NewLock(rdb))
	balanceSvc := service.NewBalanceService(r, rdb)

	// 后台协程 (定时扫描、限流清理) 统一挂在 runCtx 下，退出时一起收掉
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	// 8. 后台定时扫描
	sweeper := service.NewSweeper(r, syncSvc, balanceSvc,
		time.Duration(c.Chain.SweepIntervals)*time.Second)
	if err := sweeper.Start(runCtx); err != nil {
		logger.Fatal(ctx, "start sweeper failed", zap.Error(err))
	}
	defer sweeper.Stop()

	// 9. HTTP
	verifier := auth.NewSessionVerifier(rdb)
	h := handler.NewWalletHandler(addressSvc, syncSvc, balanceSvc)
	srv := whttp.NewRouter(runCtx, c.HTTP.Addr, verifier, h)

	safe.Go(func() {
		logger.Info(ctx, "🚀 deposit-service listening", zap.String("addr", c.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "http server failed", zap.Error(err))
		}
	})

	// 10. 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "shutting down ...")

	runCancel()
	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "http shutdown error", zap.Error(err))
	}
	logger.Info(ctx, "bye")
}

func newWallet(c *Config) (*hdwallet.XpubWallet, error) {
	if c.Chain.Xpub != "" {
		return hdwallet.NewFromXpub(c.Chain.Xpub)
	}
	// 仅限本地联调，生产必须配 xpub
	return hdwallet.NewFromMnemonic(c.Chain.DevMnemonic)
}
