package middleware

import (
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	httpctx "keygate/internal/http/ctx"
)

// RequestID propagates X-Request-ID or assigns a fresh one.
func RequestID(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id := string(ctx.Request.Header.Peek("X-Request-ID"))
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}
		httpctx.SetRequestID(ctx, id)
		ctx.Response.Header.Set("X-Request-ID", id)
		next(ctx)
	}
}
