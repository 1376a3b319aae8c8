package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dailyplan/internal/config"
	"dailyplan/internal/queue"
)

func TestServe_ReturnsWhenListenFails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	a := &app{
		cfg: config.Config{
			HTTP:   config.HTTPConfig{Addr: busy.Addr().String()},
			Google: config.GoogleConfig{RenewAt: "03:00", RenewWindow: time.Hour},
		},
		logger: zap.NewNop(),
		worker: queue.NewWorker(queue.NewMemoryStore(), zap.NewNop(), queue.WithPollInterval(10*time.Millisecond)),
	}

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), a) }()

	select {
	case err := <-done:
		assert.Error(t, err, "the listen error is returned")
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after the listener failed")
	}
}
