// Command depcheck verifies that the services the proximity server depends
// on are reachable with the current environment configuration.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/cache/redisstore"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/config"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/httpclient"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/geocode"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/logger"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/postal"
)

type check struct {
	name string
	run  func(ctx context.Context) error
}

func main() {
	sample := flag.String("postal-code", "H2J 2J9", "postal code geocoded by the nominatim check")
	only := flag.String("only", "", "comma separated subset: redis,nominatim,kafka,postgres")
	flag.Parse()

	cfg := config.FromEnv()
	zl := logger.Build(logger.Config{Level: "info", Console: true, Component: "depcheck"}, os.Stderr)
	log := logger.NewSlog(&zl)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	checks := []check{
		{"redis", func(ctx context.Context) error { return checkRedis(ctx, cfg.RedisAddr) }},
		{"nominatim", func(ctx context.Context) error { return checkNominatim(ctx, log, cfg.Geocode, *sample) }},
		{"kafka", func(context.Context) error { return checkKafka(cfg.SearchEvents.Brokers, cfg.SearchEvents.Topic) }},
		{"postgres", func(ctx context.Context) error { return checkPostgres(ctx, cfg.DatabaseURL) }},
	}

	failed := 0
	for _, c := range checks {
		if !selected(*only, c.name) {
			continue
		}
		start := time.Now()
		if err := c.run(ctx); err != nil {
			failed++
			log.Error("check failed", "check", c.name, "err", err)
			continue
		}
		log.Info("check ok", "check", c.name, "took", time.Since(start))
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func selected(only, name string) bool {
	if strings.TrimSpace(only) == "" {
		return true
	}
	for _, s := range strings.Split(only, ",") {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

func checkRedis(ctx context.Context, addr string) error {
	cli, err := redisstore.New(ctx, addr, redisstore.WithDialTimeout(2*time.Second))
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	const key = "depcheck:ping"
	if err := cli.Set(ctx, key, []byte("ok"), 30*time.Second); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if _, err := cli.Get(ctx, key); err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	return cli.Del(ctx, key)
}

func checkNominatim(ctx context.Context, log *slog.Logger, cfg config.GeocodeCfg, code string) error {
	norm := postal.Normalize(code)
	if !postal.IsValid(norm) {
		return fmt.Errorf("sample postal code %q is not valid", code)
	}
	n, err := geocode.NewNominatim(httpclient.NewOutbound(cfg.Timeout), cfg.URL, cfg.UserAgent)
	if err != nil {
		return err
	}
	c, err := n.Geocode(ctx, postal.Format(norm))
	if err != nil {
		return err
	}
	log.Info("nominatim answered", "postal_code", norm, "coordinate", c.String())
	return nil
}

func checkKafka(brokers []string, topic string) error {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Version = sarama.V2_5_0_0
	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("producer create: %w", err)
	}
	defer func() { _ = prod.Close() }()

	payload, _ := json.Marshal(map[string]any{
		"outcome": "depcheck",
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
	})
	if _, _, err := prod.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(payload),
	}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func checkPostgres(ctx context.Context, url string) error {
	if url == "" {
		return errors.New("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()
	return pool.Ping(ctx)
}
