package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"SProject/global/config"
	"SProject/logger"
	mid "SProject/middleware"
	midsec "SProject/middleware/security"
	"SProject/module/user"
	usersrv "SProject/module/user/service"
	"SProject/service/bruteforce"
	"SProject/service/chat"
	"SProject/service/health"
	"SProject/service/ratelimit"
	mongostore "SProject/service/storage/mongo"
	redisstore "SProject/service/storage/redis"
	"SProject/tools/ids"
	jwtlib "SProject/tools/security"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Errorf("load config failed: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)
	ids.SetNodeID(cfg.NodeId)

	secret := cfg.JwtSecret
	if secret == "" {
		// 本地开发兜底；生产必须走 JWT_SECRET
		secret = "dev-only-secret-change-me"
		logger.Warn("jwt secret not configured, using dev default")
	}
	jwtOpts := jwtlib.DefaultOptions([]byte(secret))

	// —— 适配器：显式构造、显式注入 ——
	cache, err := redisstore.New(redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		logger.Errorf("redis connect failed: %v", err)
		os.Exit(1)
	}
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	mgo, err := mongostore.New(ctx, &mongostore.Config{
		Uri:         cfg.Mongo.Uri,
		Database:    cfg.Mongo.Database,
		Username:    cfg.Mongo.Username,
		Password:    cfg.Mongo.Password,
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
	})
	if err != nil {
		logger.Errorf("mongo connect failed: %v", err)
		os.Exit(1)
	}
	defer func() { _ = mgo.Close(context.Background()) }()

	if err := usersrv.EnsureSessionIndexes(ctx, mgo.DB()); err != nil {
		logger.Warnf("ensure indexes: %v", err)
	}

	// —— 降级探活 ——
	monitor := health.NewMonitor(cache,
		time.Duration(cfg.Probe.IntervalSec)*time.Second,
		time.Duration(cfg.Probe.TimeoutSec)*time.Second,
	)
	monitor.Start()
	defer monitor.Stop()

	// —— 核心组件 ——
	limiter := ratelimit.New(cache, monitor, cfg.RateLimit)
	guard := bruteforce.New(cache,
		cfg.Guard.MaxAttempts,
		time.Duration(cfg.Guard.BlockSec)*time.Second,
	)
	sessions := usersrv.NewSessionManager(
		usersrv.NewMongoSessionRepo(mgo.DB()),
		cache,
		time.Duration(cfg.Session.WebTTLSec)*time.Second,
		time.Duration(cfg.Session.AppTTLSec)*time.Second,
	)
	auth := usersrv.NewAuthenticator(mgo.DB(), func(storedHash, plain string) bool {
		// 口令散列由注册侧的密码库生成，这里只做比对
		return storedHash != "" && jwtlib.HashToken(plain) == storedHash
	})

	h := &user.Handler{
		Auth:     auth,
		Sessions: sessions,
		Guard:    guard,
		JwtOpts:  jwtOpts,
	}
	gw := chat.NewGateway(sessions, jwtOpts)

	mid.Setup(midsec.Middleware(midsec.DefaultOptions(), jwtOpts, sessions), limiter)

	r := gin.New()
	r.Use(gin.Recovery())

	mid.POST(r, "/api/login", h.HandlerLogin, mid.RouteOpt{Tier: ratelimit.TierLogin})
	mid.POST(r, "/api/logout", h.HandlerLogout, mid.RouteOpt{IsAuth: true, Tier: ratelimit.TierDefault})
	mid.GET(r, "/api/sessions", h.HandlerListSessions, mid.RouteOpt{IsAuth: true, Tier: ratelimit.TierDefault})
	mid.DELETE(r, "/api/sessions/:id", h.HandlerDeleteSession, mid.RouteOpt{IsAuth: true, Tier: ratelimit.TierStrict})
	mid.POST(r, "/api/sessions/revoke_others", h.HandlerDeleteOtherSessions, mid.RouteOpt{IsAuth: true, Tier: ratelimit.TierStrict})

	r.GET("/chat", gw.HandleWS) // e.g. ws://localhost:8080/chat?token=xxx

	r.GET("/healthz", func(c *gin.Context) {
		if monitor.Healthy() {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "cache store unreachable"})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Infof("api node listening on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
}
