package logging

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"

	"github.com/gametester/runctl/internal/constants"
	"github.com/gametester/runctl/internal/executioncontext"
	"github.com/gametester/runctl/pkg/api"
)

type ShutdownFunc func() error

// NewLogger creates a structured logger using zap as the underlying
// implementation, wrapped with slog's interface. The logger uses the zap
// production settings with ISO8601 time encoding.
func NewLogger() (*slog.Logger, ShutdownFunc, error) {
	return newLogger(zap.NewProductionConfig())
}

// NewCLILogger is the logger of the interactive commands. It writes to stderr
// so that command output on stdout stays parseable.
func NewCLILogger(verbose bool) (*slog.Logger, ShutdownFunc, error) {
	logConfig := zap.NewProductionConfig()
	logConfig.Encoding = "console"
	logConfig.OutputPaths = []string{"stderr"}
	logConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		logConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return newLogger(logConfig)
}

func newLogger(logConfig zap.Config) (*slog.Logger, ShutdownFunc, error) {
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapLog, err := logConfig.Build()
	if err != nil {
		return nil, nil, err
	}
	f := newShutdownFunc(zapLog.Core())
	// we want the caller in our logs for debugging purposes, for now this is always set to true
	return slog.New(zapslog.NewHandler(zapLog.Core(), zapslog.WithCaller(true))), f, nil
}

func FallbackLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// DiscardLogger drops every record
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newShutdownFunc(core zapcore.Core) ShutdownFunc {
	return func() error {
		return core.Sync()
	}
}

// SkipCallersForInfo logs a message at the given level, reporting the caller
// skip frames up the stack instead of this function.
func SkipCallersForInfo(ctx context.Context, logger *slog.Logger, level slog.Level, skip int, msg string, args ...any) {
	if !logger.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(skip, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = logger.Handler().Handle(ctx, r)
}

func LogRequestStarted(ctx *executioncontext.ExecutionContext) {
	SkipCallersForInfo(ctx.Ctx, ctx.Logger, slog.LevelInfo, 3, "Request started")
}

func LogRequestFailed(ctx *executioncontext.ExecutionContext, code int, errorMessage string) {
	// the request details and requestId have already been added to the logger
	SkipCallersForInfo(ctx.Ctx, ctx.Logger, slog.LevelInfo, 3, "Request failed", "error", errorMessage, "code", code, "duration", time.Since(ctx.StartedAt).String())
}

func LogRequestSuccess(ctx *executioncontext.ExecutionContext, code int, response any) {
	if response != nil {
		SkipCallersForInfo(ctx.Ctx, ctx.Logger, slog.LevelInfo, 3, "Request successful", "code", code, "response", response, "duration", time.Since(ctx.StartedAt).String())
	} else {
		SkipCallersForInfo(ctx.Ctx, ctx.Logger, slog.LevelInfo, 3, "Request successful", "code", code, "duration", time.Since(ctx.StartedAt).String())
	}
}

// LogRunTransition records a lifecycle or polling phase change of a run.
func LogRunTransition(ctx context.Context, logger *slog.Logger, runID string, from api.PollPhase, to api.PollPhase, args ...any) {
	args = append([]any{constants.LOG_RUN_ID, runID, "from", string(from), "to", string(to)}, args...)
	SkipCallersForInfo(ctx, logger, slog.LevelInfo, 3, "Run transition", args...)
}
