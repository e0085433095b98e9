package bootstrap

import (
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/leadtriage/internal/classify"
	appconfig "github.com/wolfman30/leadtriage/internal/config"
	"github.com/wolfman30/leadtriage/internal/events"
	"github.com/wolfman30/leadtriage/internal/kvstore"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

// Backends are the optional connections the kv and marker stores draw on.
type Backends struct {
	Redis    *redis.Client
	Postgres *pgxpool.Pool
	AWS      *aws.Config
}

// BuildKVStore selects the lead/throttle persistence backend. The returned
// closer is non-nil only for backends that own resources.
func BuildKVStore(cfg *appconfig.Config, b Backends, logger *logging.Logger) (kvstore.Store, io.Closer, error) {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.KVBackend {
	case "memory":
		logger.Warn("using in-memory kv store; state is lost on restart")
		return kvstore.NewMemoryStore(), nil, nil
	case "", "badger":
		store, err := kvstore.OpenBadger(cfg.BadgerDir)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case "redis":
		if b.Redis == nil {
			return nil, nil, fmt.Errorf("bootstrap: KV_BACKEND=redis requires REDIS_ADDR")
		}
		return kvstore.NewRedisStore(b.Redis), nil, nil
	case "postgres":
		if b.Postgres == nil {
			return nil, nil, fmt.Errorf("bootstrap: KV_BACKEND=postgres requires DATABASE_URL")
		}
		return kvstore.NewPostgresStore(b.Postgres), nil, nil
	case "dynamodb":
		if b.AWS == nil {
			return nil, nil, fmt.Errorf("bootstrap: KV_BACKEND=dynamodb requires AWS config")
		}
		return kvstore.NewDynamoStore(dynamodb.NewFromConfig(*b.AWS), cfg.KVDynamoDBTable), nil, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown KV_BACKEND %q", cfg.KVBackend)
	}
}

// BuildProcessedStore prefers Postgres, then Redis, then memory.
func BuildProcessedStore(b Backends) events.ProcessedStore {
	switch {
	case b.Postgres != nil:
		return events.NewPostgresProcessedStore(b.Postgres, events.DefaultRetention)
	case b.Redis != nil:
		return events.NewRedisProcessedStore(b.Redis, events.DefaultRetention)
	default:
		return events.NewMemoryProcessedStore(events.DefaultRetention)
	}
}

// BuildClassificationCache returns a Redis cache when Redis is available and
// an in-memory cache otherwise. sweeper is set only for the memory cache.
func BuildClassificationCache(cfg *appconfig.Config, b Backends) (cache classify.Cache, sweeper *classify.MemoryCache) {
	ttl := cfg.ClassifierCacheTTL
	if ttl <= 0 {
		ttl = classify.DefaultCacheTTL
	}
	if b.Redis != nil {
		return classify.NewRedisCache(b.Redis, ttl), nil
	}
	mem := classify.NewMemoryCache(ttl)
	return mem, mem
}
