package handlers

import (
	"context"
	"strconv"

	"github.com/valyala/fasthttp"

	dbpkg "keygate/internal/db"
	"keygate/internal/license"
)

// GenerateKeys creates `count` unbound keys valid for `days` after redemption.
func GenerateKeys(lc *license.Lifecycle) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		count, err := strconv.Atoi(arg(ctx, "count"))
		if err != nil {
			writeError(ctx, license.ErrInvalidCount)
			return
		}
		durationDays, err := strconv.Atoi(arg(ctx, "days"))
		if err != nil {
			writeError(ctx, license.ErrInvalidDuration)
			return
		}

		ids, err := lc.Generate(ctx, count, durationDays)
		keysGeneratedTotal.Add(float64(len(ids)))
		if err != nil {
			writeError(ctx, err)
			return
		}

		ctx.SetStatusCode(fasthttp.StatusCreated)
		jsonResponse(ctx, map[string]any{
			"status":        "created",
			"duration_days": durationDays,
			"keys":          ids,
		})
	}
}

// ActivateKey binds `key` to `owner`.
func ActivateKey(lc *license.Lifecycle) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		key, err := lc.Activate(ctx, arg(ctx, "key"), arg(ctx, "owner"))
		if err != nil {
			activationsTotal.WithLabelValues(errorCode(err)).Inc()
			writeError(ctx, err)
			return
		}
		activationsTotal.WithLabelValues("activated").Inc()
		jsonResponse(ctx, viewOf(key))
	}
}

// DescribeKey reports each validation check for `key` and `hwid` without
// granting access.
func DescribeKey(v *license.Validator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		rep, err := v.Describe(arg(ctx, "key"), arg(ctx, "hwid"))
		if err != nil {
			writeError(ctx, err)
			return
		}
		jsonResponse(ctx, rep)
	}
}

// GetKey returns the stored record for the {id} path parameter.
func GetKey(reg *license.Registry) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, _ := ctx.UserValue("id").(string)
		if id == "" {
			writeError(ctx, license.ErrMissingKey)
			return
		}
		key, ok := reg.Get(id)
		if !ok {
			writeError(ctx, license.ErrNotFound)
			return
		}
		jsonResponse(ctx, viewOf(key))
	}
}

// AuditReader lists stored authorize outcomes. *db.AuditLog implements it.
type AuditReader interface {
	RecentForKey(ctx context.Context, keyID string, limit int) ([]dbpkg.AuthEvent, error)
}

// KeyEvents lists recent authorize outcomes for the {id} path parameter.
func KeyEvents(audit AuditReader) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if audit == nil {
			errResponse(ctx, fasthttp.StatusServiceUnavailable, "audit log disabled")
			return
		}
		id, _ := ctx.UserValue("id").(string)
		limit, _ := strconv.Atoi(arg(ctx, "limit"))
		if limit > 200 {
			limit = 200
		}
		events, err := audit.RecentForKey(ctx, id, limit)
		if err != nil {
			writeError(ctx, err)
			return
		}
		jsonResponse(ctx, map[string]any{
			"key":    id,
			"events": events,
		})
	}
}
