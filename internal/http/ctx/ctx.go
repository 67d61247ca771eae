package ctx

import (
	"github.com/valyala/fasthttp"
)

const (
	RequestIDKey = "requestID"
	CallerKey    = "caller"
)

func SetRequestID(ctx *fasthttp.RequestCtx, id string) {
	ctx.SetUserValue(RequestIDKey, id)
}

func RequestIDFromCtx(ctx *fasthttp.RequestCtx) (string, bool) {
	v := ctx.UserValue(RequestIDKey)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// SetCaller records who authenticated the request: the admin username or
// "bot" for the chat front-end.
func SetCaller(ctx *fasthttp.RequestCtx, caller string) {
	ctx.SetUserValue(CallerKey, caller)
}

func CallerFromCtx(ctx *fasthttp.RequestCtx) (string, bool) {
	v := ctx.UserValue(CallerKey)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
