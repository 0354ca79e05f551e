package app

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sealedbid/tender-service/internal/config"
	"github.com/sealedbid/tender-service/internal/repositories"
	"github.com/sealedbid/tender-service/internal/utils"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	maxRetries     = 5
	connectTimeout = 5 * time.Second
	initialBackoff = 500 * time.Millisecond
)

// App owns the process-wide connections. Redis, Mongo and S3 are only
// opened when the configuration selects them.
type App struct {
	Config *config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Mongo  *mongo.Client
	S3     *s3.Client
}

func NewApp(cfg *config.Config) (*App, error) {
	var (
		dbPool  *pgxpool.Pool
		err     error
		backoff = initialBackoff
	)

	for i := 1; i <= maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		dbPool, err = newDBPool(ctx, cfg.DBUrl)
		cancel()
		if err == nil {
			utils.Logger.Infof("%s connected to DB on attempt %d", cfg.AppName, i)
			break
		}

		utils.Logger.WithError(err).Warnf(
			"Failed DB connect on attempt %d/%d. Retrying in %v...",
			i, maxRetries, backoff,
		)

		if i == maxRetries {
			return nil, fmt.Errorf("unable to connect after %d attempts: %w", maxRetries, err)
		}
		time.Sleep(backoff)
		backoff *= 2
	}

	a := &App{Config: cfg, DB: dbPool}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		utils.Logger.Info("Login challenges stored in Redis")
	}

	if cfg.AuditSink == config.AuditSinkMongo {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to mongo: %w", err)
		}
		a.Mongo = client
		if err := client.Ping(ctx, nil); err != nil {
			a.Close()
			return nil, fmt.Errorf("pinging mongo: %w", err)
		}
		utils.Logger.Infof("Audit log stored in MongoDB database %s", cfg.MongoDatabase)
	}

	if cfg.DocumentStore == config.DocumentStoreS3 {
		a.S3, err = repositories.NewS3Client(ctx, repositories.S3Config{
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			UsePathStyle: cfg.S3Endpoint != "",
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("configuring s3: %w", err)
		}
		utils.Logger.Infof("Supporting documents stored in S3 bucket %s", cfg.S3Bucket)
	}

	return a, nil
}

// ChallengeStore returns the Redis store when Redis is configured, else the
// in-process store, which only works for a single replica.
func (a *App) ChallengeStore() repositories.ChallengeStore {
	if a.Redis != nil {
		return repositories.NewRedisChallengeStore(a.Redis)
	}
	utils.Logger.Warn("REDIS_URL not set; login challenges are kept in memory")
	return repositories.NewMemoryChallengeStore()
}

func (a *App) AuditLogRepository() repositories.AuditLogRepository {
	if a.Mongo != nil {
		return repositories.NewMongoAuditLogRepository(a.Mongo.Database(a.Config.MongoDatabase))
	}
	return repositories.NewAuditLogRepository(a.DB)
}

func (a *App) DocumentStore() repositories.DocumentStore {
	if a.S3 != nil {
		return repositories.NewS3DocumentStore(a.S3, a.Config.S3Bucket)
	}
	return repositories.NewPostgresDocumentStore(a.DB)
}

// Ping checks every backing store the app opened.
func (a *App) Ping(ctx context.Context) error {
	if err := a.DB.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if a.Mongo != nil {
		if err := a.Mongo.Ping(ctx, nil); err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
	}
	return nil
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		_ = a.Mongo.Disconnect(ctx)
	}
	if a.DB != nil {
		a.DB.Close()
		utils.Logger.Infof("%s DB connection closed.", a.Config.AppName)
	}
}

func newDBPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnIdleTime = 2 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	return pgxpool.ConnectConfig(ctx, cfg)
}
