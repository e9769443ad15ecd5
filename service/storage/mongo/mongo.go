package mongo

import (
	"context"
	"time"

	"SProject/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultMaxPoolSize = 100
	connectTimeout     = 10 * time.Second
	opTimeout          = 10 * time.Second
)

// Config represents the MongoDB configuration.
type Config struct {
	Uri         string
	Database    string
	Username    string
	Password    string
	AuthSource  string
	MaxPoolSize int
	MaxRetry    int
}

// Manager 持久存储适配器。同步建连（带重试退避），显式注入实例；
// 会话集合在这里只是可枚举索引，不承担 TTL 权威。
type Manager struct {
	client *mongo.Client
	db     *mongo.Database
}

// 将 Config 应用到 ClientOptions
func applyConfigToOptions(cfg *Config) (*options.ClientOptions, error) {
	if cfg.Uri == "" {
		return nil, errs.New("mongo uri is required")
	}
	opts := options.Client().ApplyURI(cfg.Uri)

	// 连接池
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = defaultMaxPoolSize
	}
	opts.SetMaxPoolSize(uint64(cfg.MaxPoolSize))
	opts.SetConnectTimeout(connectTimeout)
	opts.SetServerSelectionTimeout(connectTimeout)

	// 认证：单独给了用户名/密码时，以代码覆盖 URI 中的认证
	if cfg.Username != "" {
		cred := options.Credential{
			Username:   cfg.Username,
			Password:   cfg.Password,
			AuthSource: cfg.AuthSource,
		}
		opts.SetAuth(cred)
	}

	return opts, nil
}

// New 建连并 Ping；失败按 MaxRetry 做指数退避重试
func New(ctx context.Context, cfg *Config) (*Manager, error) {
	opts, err := applyConfigToOptions(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Database == "" {
		return nil, errs.New("mongo database is required")
	}

	maxRetry := cfg.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 3
	}

	backoff := 200 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxRetry; attempt++ {
		cli, err := mongo.Connect(ctx, opts)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
			err = cli.Ping(pingCtx, readpref.Primary())
			cancel()
			if err == nil {
				return &Manager{client: cli, db: cli.Database(cfg.Database)}, nil
			}
			_ = cli.Disconnect(context.Background())
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
	return nil, errs.WrapMsg(lastErr, "mongo connect failed", "uri", cfg.Uri)
}

func (m *Manager) DB() *mongo.Database {
	return m.db
}

func (m *Manager) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Manager) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
