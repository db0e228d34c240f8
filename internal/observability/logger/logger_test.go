package logger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFrom_FallsBackToSingleton(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	From(context.Background()).Info("hello", ClientID("web-app"))
	require.Equal(t, 1, logs.Len())
	require.Equal(t, "web-app", logs.All()[0].ContextMap()["client_id"])
}

func TestFrom_UsesScopedLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).With(RequestID("r-1")))

	From(ctx).Debug("minted", GrantType("password"), JTI("abc"), Subject("alice"), ClientIP("203.0.113.9"))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	require.Equal(t, "r-1", fields["request_id"])
	require.Equal(t, "password", fields["grant_type"])
	require.Equal(t, "abc", fields["jti"])
	require.Equal(t, "alice", fields["sub"])
	require.Equal(t, "203.0.113.9", fields["client_ip"])
}

func TestToContext_NilLoggerKeepsContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	ctx := ToContext(context.Background(), nil)
	From(ctx).Info("fallback")
	require.Equal(t, 1, logs.Len())
}

func TestL_ConcurrentFirstUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NotNil(t, L())
		}()
	}
	wg.Wait()
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, parseLevel(" DEBUG "))
	require.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	require.Equal(t, zapcore.InfoLevel, parseLevel("nonsense"))
}

func TestBuild_Environments(t *testing.T) {
	require.NotNil(t, build(Config{Env: "prod", Level: "error", ServiceName: "authcore"}))
	require.NotNil(t, build(Config{Env: "dev"}))
}
