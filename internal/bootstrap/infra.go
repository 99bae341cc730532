// Package bootstrap opens the external connections the service depends on.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Wilyos/sistemas-box/configs"
	_ "github.com/go-sql-driver/mysql"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

func OpenMySQL(ctx context.Context, cfg configs.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, err
	}
	lifetime := cfg.MySQL.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	db.SetConnMaxLifetime(lifetime)
	db.SetMaxOpenConns(orDefault(cfg.MySQL.MaxOpenConns, 16))
	db.SetMaxIdleConns(orDefault(cfg.MySQL.MaxIdleConns, 16))

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql ping: %w", err)
	}
	return db, nil
}

func OpenRedis(ctx context.Context, cfg configs.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// OpenRabbit dials the broker. Callers open their own channels; a publisher in
// confirm mode must not share its channel with consumers.
func OpenRabbit(cfg configs.Config) (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(cfg.Rabbit.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Properties: amqp.Table{
			"connection_name": cfg.App.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	return conn, nil
}

func orDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
