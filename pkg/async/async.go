package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/richxcame/fraud-investigator/pkg/logger"
	"go.uber.org/zap"
)

// Go runs a long-lived background task with panic recovery. The task shares
// ctx, so cancelling it stops the task. The returned channel is closed once
// fn has returned.
//
// Usage:
//
//	done := async.Go(ctx, "retention", func(ctx context.Context) {
//	    svc.RunRetention(ctx, days, interval)
//	})
//	<-done
func Go(ctx context.Context, taskName string, fn func(ctx context.Context)) <-chan struct{} {
	done := make(chan struct{})
	start := time.Now()

	go func() {
		defer close(done)
		defer recoverWithLogging(ctx, taskName)

		fn(ctx)

		logger.DebugContext(ctx, "background task finished",
			zap.String("task", taskName),
			zap.Duration("duration", time.Since(start)),
		)
	}()
	return done
}

// GoWithCallback runs a one-shot task and hands its error to callback.
// Failures are logged whether or not a callback is given.
func GoWithCallback(ctx context.Context, taskName string, fn func(ctx context.Context) error, callback func(error)) <-chan struct{} {
	return Go(ctx, taskName, func(ctx context.Context) {
		err := fn(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "background task failed",
				zap.String("task", taskName),
				zap.Error(err),
			)
		}
		if callback != nil {
			callback(err)
		}
	})
}

// Wait blocks until every channel is closed or timeout elapses, reporting
// whether all tasks finished in time
func Wait(timeout time.Duration, tasks ...<-chan struct{}) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for _, done := range tasks {
		select {
		case <-done:
		case <-deadline.C:
			return false
		}
	}
	return true
}

func recoverWithLogging(ctx context.Context, taskName string) {
	if r := recover(); r != nil {
		logger.ErrorContext(ctx, "background task panicked",
			zap.String("task", taskName),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
	}
}
