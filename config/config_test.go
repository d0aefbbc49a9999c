package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 24, cfg.JWTTTLHours)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.Equal(t, "project-files", cfg.Storage.Minio.Bucket)
	assert.Equal(t, "us-east-1", cfg.Storage.S3.Region)
	assert.Equal(t, "none", cfg.MQ.Backend)
	assert.True(t, cfg.MQ.RabbitMQ.QueueDurable)
	assert.Equal(t, 60, cfg.Redis.StatsTTLSeconds)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("APP_DEBUG", "yes")
	t.Setenv("PUBLIC_BASE_URL", "https://files.example.org/")
	t.Setenv("JWT_SECRET", "  s3cret ")
	t.Setenv("STORAGE_BACKEND", "S3")
	t.Setenv("S3_USE_PATH_STYLE", "true")
	t.Setenv("MQ_BACKEND", "RabbitMQ")
	t.Setenv("RABBITMQ_QUEUE_DURABLE", "off")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "https://files.example.org", cfg.PublicBaseURL)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.True(t, cfg.Storage.S3.UsePathStyle)
	assert.Equal(t, "rabbitmq", cfg.MQ.Backend)
	assert.False(t, cfg.MQ.RabbitMQ.QueueDurable)
	assert.Equal(t, "redis://localhost:6379/1", cfg.Redis.URL)
}
