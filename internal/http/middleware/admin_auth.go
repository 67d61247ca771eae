package middleware

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"log"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"keygate/internal/config"
	httpctx "keygate/internal/http/ctx"
)

// AdminAuth returns middleware that checks HTTP basic credentials against the
// configured admin account. The password is hashed once at construction.
func AdminAuth(cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("admin auth disabled: %v", err)
	}

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			user, pass, ok := basicAuth(ctx.Request.Header.Peek("Authorization"))
			if !ok || hash == nil || cfg.AdminUser == "" {
				unauthorized(ctx)
				return
			}
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.AdminUser)) == 1
			if bcrypt.CompareHashAndPassword(hash, []byte(pass)) != nil || !userOK {
				unauthorized(ctx)
				return
			}

			httpctx.SetCaller(ctx, user)
			next(ctx)
		}
	}
}

func basicAuth(header []byte) (user, pass string, ok bool) {
	const prefix = "Basic "
	if !bytes.HasPrefix(header, []byte(prefix)) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(string(header[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	i := bytes.IndexByte(decoded, ':')
	if i < 0 {
		return "", "", false
	}
	return string(decoded[:i]), string(decoded[i+1:]), true
}

func unauthorized(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("WWW-Authenticate", `Basic realm="keygate"`)
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetBodyString("unauthorized")
}
