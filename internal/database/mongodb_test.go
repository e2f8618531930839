package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/config"
)

func TestConnectWithRetry_InvalidURI(t *testing.T) {
	_, err := ConnectWithRetry(context.Background(), config.MongoDBConfig{URI: "bogus://nowhere", Timeout: time.Second}, 1, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 1 attempts")
}

func TestConnectWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := ConnectWithRetry(ctx, config.MongoDBConfig{URI: "bogus://nowhere", Timeout: time.Second}, 5, zap.NewNop())
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)
	require.Less(t, time.Since(start), time.Second)
}
