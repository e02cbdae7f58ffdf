package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// dependencyCheck reports whether one backing service is reachable.
type dependencyCheck struct {
	name  string
	check func(ctx context.Context) error
}

type HealthHandler struct {
	checks []dependencyCheck
}

// NewHealthHandler checks every non-nil dependency on /readyz. Redis and
// RabbitMQ are optional and skipped when nil.
func NewHealthHandler(dbPool *pgxpool.Pool, redisClient *redis.Client, amqpConn *amqp.Connection) *HealthHandler {
	h := &HealthHandler{}
	if dbPool != nil {
		h.checks = append(h.checks, dependencyCheck{"postgres", dbPool.Ping})
	}
	if redisClient != nil {
		h.checks = append(h.checks, dependencyCheck{"redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	if amqpConn != nil {
		h.checks = append(h.checks, dependencyCheck{"rabbitmq", func(context.Context) error {
			if amqpConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}})
	}
	return h
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	code := http.StatusOK
	for _, dep := range h.checks {
		if err := dep.check(c.Request.Context()); err != nil {
			resp[dep.name] = "unavailable"
			resp["status"] = "error"
			code = http.StatusServiceUnavailable
			continue
		}
		resp[dep.name] = "connected"
	}
	c.JSON(code, resp)
}
