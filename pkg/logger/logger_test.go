package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContext_AddsIDs(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("info", &buf)

	ctx := WithSyncRunID(WithRequestID(context.Background(), "req-1"), "run-1")
	log.WithContext(ctx).WithField("account_id", "123").Info("Account synced")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Account synced", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "run-1", line["sync_run_id"])
	assert.Equal(t, "123", line["account_id"])
	assert.Contains(t, line, "timestamp")
}

func TestWithContext_NoIDs(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("info", &buf)

	log.WithContext(context.Background()).Info("Plain")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "request_id")
	assert.NotContains(t, line, "sync_run_id")
}

func TestNewWithOutput_Level(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewWithOutput("debug", &bytes.Buffer{}).GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewWithOutput("chatty", &bytes.Buffer{}).GetLevel())

	var buf bytes.Buffer
	NewWithOutput("warn", &buf).Info("dropped")
	assert.Empty(t, buf.String())
}
