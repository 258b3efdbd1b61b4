package errors

import (
	"context"
	"fmt"

	"github.com/pickme-go/log/v2"
)

// Handler receives the error that terminated a join evaluation. It is called
// at most once per evaluation.
type Handler interface {
	Handle(ctx context.Context, err *JoinError)
}

type HandlerFunc func(ctx context.Context, err *JoinError)

func (f HandlerFunc) Handle(ctx context.Context, err *JoinError) {
	f(ctx, err)
}

type logHandler struct {
	logger log.Logger
}

func NewLogHandler(logger log.Logger) Handler {
	return &logHandler{
		logger: logger,
	}
}

func (h *logHandler) Handle(ctx context.Context, err *JoinError) {
	h.logger.ErrorContext(ctx, fmt.Sprintf(`join failed [%s] - %+v`, err.Kind, err.Err))
}

// NoopHandler drops errors; the caller still receives them from the rows.
var NoopHandler Handler = HandlerFunc(func(context.Context, *JoinError) {})
