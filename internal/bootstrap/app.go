package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"neuropathx/internal/config"
	"neuropathx/internal/inference"
	"neuropathx/internal/model"
	mysqlClient "neuropathx/internal/platform/mysql"
	rabbitmqClient "neuropathx/internal/platform/rabbitmq"
	redisClient "neuropathx/internal/platform/redis"
	"neuropathx/internal/repository"
	"neuropathx/internal/worker"
)

type App struct {
	Config     *config.Config
	MySQL      *gorm.DB
	Redis      *redis.Client
	MQConn     *amqp.Connection
	Engine     *inference.Engine
	ScanWorker *worker.ScanPersistWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.ScanRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	scanRepo := repository.NewScanRepository(mysqlDB)
	scanWorker := worker.NewScanPersistWorker(mqConn, scanRepo, cfg.RabbitMQ.ScanPersistQueue)
	if err := scanWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start scan worker failed: %w", err)
	}

	// The engine loads its artifacts lazily on first use; constructing it
	// here only fixes the configuration.
	engine := inference.NewEngine(cfg.Model)

	return &App{
		Config:     cfg,
		MySQL:      mysqlDB,
		Redis:      redisCli,
		MQConn:     mqConn,
		Engine:     engine,
		ScanWorker: scanWorker,
		StartedAt:  time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Engine != nil {
		a.Engine.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.ScanWorker != nil {
		a.ScanWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
