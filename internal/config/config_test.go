package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 3*time.Hour, cfg.Workflow.AcceptWindow)
	assert.Equal(t, 30*time.Minute, cfg.Workflow.PlanWindow)
	assert.Equal(t, "flat", cfg.Workflow.DeadlinePolicy)
	assert.Equal(t, 10*time.Minute, cfg.Settings.CacheTTL)
	assert.Equal(t, "@every 1m", cfg.Jobs.OverdueSchedule)
	assert.Len(t, cfg.Workflow.BusinessDays, 6)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("WORKFLOW_PLAN_WINDOW", "45m")
	t.Setenv("AUTH_MODE", "HMAC")
	t.Setenv("BUSINESS_DAYS", "Monday,wed,fri")
	t.Setenv("INVOICE_BASE_URL", "https://cdn.example.com/slips/")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 45*time.Minute, cfg.Workflow.PlanWindow)
	assert.Equal(t, "hmac", cfg.Auth.Mode)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, cfg.Workflow.BusinessDays)
	assert.Equal(t, "https://cdn.example.com/slips", cfg.Invoice.BaseURL)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("WORKFLOW_ACCEPT_WINDOW", "3 hours")
	t.Setenv("REDIS_ENABLED", "maybe")
	t.Setenv("BUSINESS_DAYS", "someday")

	cfg := Load()

	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 3*time.Hour, cfg.Workflow.AcceptWindow)
	assert.True(t, cfg.Redis.Enabled)
	assert.Len(t, cfg.Workflow.BusinessDays, 6)
}
