package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"

	"keygate/internal/config"
	dbpkg "keygate/internal/db"
	httpctx "keygate/internal/http/ctx"
	"keygate/internal/license"
	"keygate/internal/payload"
	ui "keygate/web"
)

// AuditRecorder stores authorize outcomes. *db.AuditLog implements it.
type AuditRecorder interface {
	Record(ctx context.Context, ev dbpkg.AuthEvent) error
}

// MachineIDFunc picks the machine identifier a challenge fingerprint is
// derived from.
type MachineIDFunc func(ctx *fasthttp.RequestCtx) string

// MachineIDSource returns the identifier source selected by configuration.
// "host" reproduces the legacy behaviour: every requester gets the server's
// own identity.
func MachineIDSource(cfg *config.Config) MachineIDFunc {
	if cfg.FingerprintSource == config.FingerprintFromRemote {
		return func(ctx *fasthttp.RequestCtx) string {
			return ctx.RemoteIP().String() + "|" + string(ctx.UserAgent())
		}
	}
	host := license.HostMachineID()
	return func(*fasthttp.RequestCtx) string { return host }
}

// Authorize serves /auth: a challenge script when no hwid is presented, the
// payload wrapped in a loader banner once the key and hwid check out.
func Authorize(v *license.Validator, payloads payload.Store, audit AuditRecorder, machineID MachineIDFunc, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		req := license.AuthRequest{
			KeyID:       arg(ctx, "key"),
			Fingerprint: arg(ctx, "hwid"),
			MachineID:   machineID(ctx),
		}
		asJSON := arg(ctx, "format") == "json"

		res, err := v.Check(ctx, req)
		if err != nil {
			authorizeTotal.WithLabelValues(errorCode(err)).Inc()
			writeAuthError(ctx, err, asJSON)
			record(ctx, audit, req.KeyID, errorCode(err), req.Fingerprint, asJSON, 0)
			return
		}

		if res.Decision == license.DecisionChallenge {
			authorizeTotal.WithLabelValues(res.Decision.String()).Inc()
			renderChallenge(ctx, cfg, res, asJSON)
			record(ctx, audit, res.KeyID, res.Decision.String(), res.Fingerprint, asJSON, 0)
			return
		}

		start := time.Now()
		body, err := payloads.Fetch(ctx, cfg.PayloadID)
		payloadFetchSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			log.Printf("payload fetch failed for %s: %v", license.MaskKey(res.KeyID), err)
			err = fmt.Errorf("%w: %v", license.ErrPayloadUnavailable, err)
			authorizeTotal.WithLabelValues(license.CodePayloadUnavailable).Inc()
			ctx.Response.Header.Set("Retry-After", "5")
			writeAuthError(ctx, err, asJSON)
			record(ctx, audit, res.KeyID, license.CodePayloadUnavailable, res.Fingerprint, asJSON, 0)
			return
		}

		authorizeTotal.WithLabelValues(res.Decision.String()).Inc()
		renderGranted(ctx, cfg, res, body, asJSON)
		record(ctx, audit, res.KeyID, res.Decision.String(), res.Fingerprint, asJSON, len(body))
	}
}

func writeAuthError(ctx *fasthttp.RequestCtx, err error, asJSON bool) {
	if asJSON {
		writeError(ctx, err)
		return
	}
	status := statusFor(err)
	msg := "Internal error"
	var lerr *license.Error
	if errors.As(err, &lerr) {
		msg = strings.ToUpper(lerr.Message[:1]) + lerr.Message[1:]
	}
	errResponse(ctx, status, "ERROR: "+msg)
}

func renderChallenge(ctx *fasthttp.RequestCtx, cfg *config.Config, res license.Result, asJSON bool) {
	retry := cfg.PublicURL + "/auth?key=" + url.QueryEscape(res.KeyID) + "&hwid=" + url.QueryEscape(res.Fingerprint)
	if asJSON {
		jsonResponse(ctx, map[string]any{
			"status": res.Decision.String(),
			"key":    res.KeyID,
			"hwid":   res.Fingerprint,
			"retry":  retry,
		})
		return
	}
	var buf bytes.Buffer
	data := ui.ChallengeData{Key: res.KeyID, HWID: res.Fingerprint, URL: retry}
	if err := ui.Scripts().ExecuteTemplate(&buf, "challenge.lua.tmpl", data); err != nil {
		errResponse(ctx, fasthttp.StatusInternalServerError, "ERROR: render error")
		return
	}
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBody(buf.Bytes())
}

func renderGranted(ctx *fasthttp.RequestCtx, cfg *config.Config, res license.Result, body []byte, asJSON bool) {
	if asJSON {
		jsonResponse(ctx, map[string]any{
			"status":     res.Decision.String(),
			"key":        res.KeyID,
			"owner_id":   res.OwnerID,
			"hwid":       res.Fingerprint,
			"expires_at": res.ExpiresAt,
			"payload":    string(body),
		})
		return
	}
	var buf bytes.Buffer
	data := ui.GrantedData{Product: cfg.ProductName, ExpiresAt: res.ExpiresAt, Payload: string(body)}
	if err := ui.Scripts().ExecuteTemplate(&buf, "granted.lua.tmpl", data); err != nil {
		errResponse(ctx, fasthttp.StatusInternalServerError, "ERROR: render error")
		return
	}
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBody(buf.Bytes())
}

func record(ctx *fasthttp.RequestCtx, audit AuditRecorder, keyID, outcome, fingerprint string, asJSON bool, payloadBytes int) {
	if audit == nil {
		return
	}
	reqID, _ := httpctx.RequestIDFromCtx(ctx)
	format := "script"
	if asJSON {
		format = "json"
	}
	ev := dbpkg.AuthEvent{
		RequestID:   reqID,
		KeyID:       keyID,
		Outcome:     outcome,
		Status:      ctx.Response.StatusCode(),
		Fingerprint: fingerprint,
		RemoteIP:    ctx.RemoteIP().String(),
		Attributes: datatypes.JSONMap{
			"user_agent":    string(ctx.UserAgent()),
			"format":        format,
			"payload_bytes": payloadBytes,
		},
	}
	if err := audit.Record(ctx, ev); err != nil {
		log.Printf("audit record failed: %v", err)
	}
}
