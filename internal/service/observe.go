package service

import (
	"chat_relation_backend/internal/util"
	"chat_relation_backend/pkg/logger"
	"chat_relation_backend/pkg/monitoring"
	"chat_relation_backend/pkg/tracing"
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// startOp opens a span for op; the returned func records the outcome of *errp.
//
//	ctx, end := startOp(ctx, "chat.rename")
//	defer end(&err)
func startOp(ctx context.Context, op string) (context.Context, func(errp *error)) {
	ctx, span := tracing.Tracer.Start(ctx, op)
	start := time.Now()
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		monitoring.ObserveOperation(op, err, time.Since(start))

		switch util.KindOf(err) {
		case 0:
		case util.KindServer:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Log.Error("engine operation failed", zap.String("op", op), zap.Error(err))
		default:
			span.SetStatus(codes.Error, util.KindOf(err).String())
			logger.Log.Debug("engine operation rejected", zap.String("op", op), zap.Error(err))
		}
		span.End()
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// notFoundOr 将记录不存在转换为 NotFound，其余按存储错误处理
func notFoundOr(op string, err error, format string, args ...any) error {
	if isNotFound(err) {
		return util.NotFound(format, args...)
	}
	return util.ServerError(op, err)
}
