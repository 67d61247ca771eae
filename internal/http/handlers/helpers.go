package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/valyala/fasthttp"

	httpctx "keygate/internal/http/ctx"
	"keygate/internal/license"
)

// RequestLogger logs one line per request with its id and authenticated caller.
func RequestLogger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		reqID, _ := httpctx.RequestIDFromCtx(ctx)
		caller, ok := httpctx.CallerFromCtx(ctx)
		if !ok {
			caller = "-"
		}
		log.Printf("%s %s -> %d (%s) ip=%s req=%s caller=%s", ctx.Method(), ctx.Path(), ctx.Response.StatusCode(), time.Since(start), ctx.RemoteAddr(), reqID, caller)
	}
}

func jsonResponse(ctx *fasthttp.RequestCtx, data any) {
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(data)
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, code int, msg string) {
	ctx.SetStatusCode(code)
	ctx.SetBodyString(msg)
}

// arg reads name from the query string, falling back to the form body.
func arg(ctx *fasthttp.RequestCtx, name string) string {
	if v := ctx.QueryArgs().Peek(name); len(v) > 0 {
		return string(v)
	}
	return string(ctx.PostArgs().Peek(name))
}

// statusFor maps a license error to its HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	var lerr *license.Error
	if !errors.As(err, &lerr) {
		return fasthttp.StatusInternalServerError
	}
	switch lerr.Code {
	case license.CodeInvalidCount, license.CodeInvalidDuration, license.CodeMissingKey, license.CodeMissingOwner:
		return fasthttp.StatusBadRequest
	case license.CodeInvalidKey, license.CodeNotActivated, license.CodeExpired, license.CodeFingerprintMismatch:
		return fasthttp.StatusForbidden
	case license.CodeNotFound:
		return fasthttp.StatusNotFound
	case license.CodeDuplicateKey, license.CodeAlreadyActivated, license.CodeOwnerAlreadyBound:
		return fasthttp.StatusConflict
	case license.CodePayloadUnavailable:
		return fasthttp.StatusServiceUnavailable
	}
	return fasthttp.StatusInternalServerError
}

// errorCode is the stable code for err, or "INTERNAL".
func errorCode(err error) string {
	var lerr *license.Error
	if errors.As(err, &lerr) {
		return lerr.Code
	}
	return "INTERNAL"
}

// writeError sends a JSON error body for the key management API.
func writeError(ctx *fasthttp.RequestCtx, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == fasthttp.StatusInternalServerError {
		log.Printf("internal error on %s: %v", ctx.Path(), err)
		msg = "internal error"
	}
	ctx.SetStatusCode(status)
	jsonResponse(ctx, map[string]any{
		"status": "error",
		"code":   errorCode(err),
		"error":  msg,
	})
}

type keyView struct {
	Key          string     `json:"key"`
	Activated    bool       `json:"activated"`
	OwnerID      string     `json:"owner_id,omitempty"`
	Fingerprint  string     `json:"hwid,omitempty"`
	DurationDays int        `json:"duration_days"`
	CreatedAt    time.Time  `json:"created_at"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

func viewOf(k license.LicenseKey) keyView {
	return keyView{
		Key:          k.ID,
		Activated:    k.Activated,
		OwnerID:      k.OwnerID,
		Fingerprint:  k.Fingerprint,
		DurationDays: k.DurationDays,
		CreatedAt:    k.CreatedAt,
		ActivatedAt:  k.ActivatedAt,
		ExpiresAt:    k.ExpiresAt,
	}
}
