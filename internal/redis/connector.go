// Package redis opens the shared go-redis client. The data service, its
// change feed and the broadcast bus all run on the client returned by New.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Umairyojo/NexMark/internal/config"
	"github.com/Umairyojo/NexMark/internal/logger"
)

// ConnectOptions holds the client settings and the startup retry policy.
type ConnectOptions struct {
	Addr         string
	User         string
	Password     string
	RedisDB      int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	ConnectTimeout time.Duration // budget for all startup pings
	RetryInterval  time.Duration // first pause, doubled after each failure
	MaxWait        time.Duration // pause ceiling
	PingTimeout    time.Duration // per ping
	WarnThreshold  int           // failures logged as warnings before escalating to errors
}

// OptionsFromConfig maps the REDIS_* settings to ConnectOptions.
func OptionsFromConfig(cfg *config.Config) ConnectOptions {
	return ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}
}

// Validate reports every invalid retry setting at once.
func (o ConnectOptions) Validate() error {
	var errs []error
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %v", name, d))
		}
	}
	positive("ConnectTimeout", o.ConnectTimeout)
	positive("RetryInterval", o.RetryInterval)
	positive("MaxWait", o.MaxWait)
	positive("PingTimeout", o.PingTimeout)
	if o.WarnThreshold < 0 {
		errs = append(errs, fmt.Errorf("WarnThreshold must be >= 0, got %d", o.WarnThreshold))
	}
	return errors.Join(errs...)
}

func (o ConnectOptions) clientOptions() *redis.Options {
	return &redis.Options{
		Addr:         o.Addr,
		Username:     o.User,
		Password:     o.Password,
		DB:           o.RedisDB,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		PoolSize:     o.PoolSize,
	}
}

// backoff doubles its pause up to max.
type backoff struct {
	next time.Duration
	max  time.Duration
}

func (b *backoff) pause() time.Duration {
	d := b.next
	b.next = min(b.next*2, b.max)
	return d
}

// New creates a Redis client and pings it with exponential backoff until
// ConnectTimeout elapses or ctx is done.
func New(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if err := opts.Validate(); err != nil {
		log.Error("invalid redis connect options", logger.Error(err))
		return nil, fmt.Errorf("redis options: %w", err)
	}

	client := redis.NewClient(opts.clientOptions())
	if err := waitReady(ctx, client, opts, log.With(logger.String("addr", opts.Addr))); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func waitReady(parent context.Context, client *redis.Client, opts ConnectOptions, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(parent, opts.ConnectTimeout)
	defer cancel()

	log.Info("connecting to redis", logger.Duration("timeout", opts.ConnectTimeout))
	start := time.Now()
	wait := backoff{next: opts.RetryInterval, max: opts.MaxWait}

	for attempt := 1; ; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(ctx, opts.PingTimeout)
		err := client.Ping(pingCtx).Err()
		pingCancel()

		if err == nil {
			if attempt > 1 {
				log.Warn("connected to redis after retry",
					logger.Int("attempts", attempt),
					logger.Duration("elapsed", time.Since(start)))
			} else {
				log.Info("connected to redis")
			}
			return nil
		}

		pause := wait.pause()
		fields := []logger.Field{
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", pause),
			logger.Error(err),
		}
		if attempt <= opts.WarnThreshold {
			log.Warn("redis connection failed, retrying", fields...)
		} else {
			log.Error("redis still unavailable, retrying", fields...)
		}

		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Error("redis unavailable, giving up",
				logger.Int("attempts", attempt),
				logger.Duration("timeout", opts.ConnectTimeout),
				logger.Error(err))
			return fmt.Errorf("redis unavailable at %s after %d attempts (timeout: %v): %w",
				opts.Addr, attempt, opts.ConnectTimeout, err)
		case <-timer.C:
		}
	}
}
