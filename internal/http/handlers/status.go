package handlers

import (
	"bytes"

	"github.com/valyala/fasthttp"

	"keygate/internal/config"
	"keygate/internal/license"
	ui "keygate/web"
)

type statusPage struct {
	Title        string
	Stats        license.Stats
	TestEndpoint bool
}

// Home renders the public status page.
func Home(reg *license.Registry, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		data := statusPage{
			Title:        cfg.ProductName + " Auth Server",
			Stats:        reg.Stats(),
			TestEndpoint: cfg.EnableTestEndpoint,
		}
		var buf bytes.Buffer
		if err := ui.Templates().ExecuteTemplate(&buf, "index", data); err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString("render error")
			return
		}
		ctx.SetContentType("text/html; charset=utf-8")
		ctx.SetBody(buf.Bytes())
	}
}

// Stats reports registry counts.
func Stats(reg *license.Registry) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		s := reg.Stats()
		jsonResponse(ctx, map[string]any{
			"total_keys":  s.Total,
			"active_keys": s.Activated,
			"bound_keys":  s.Bound,
			"status":      "online",
		})
	}
}

// Test is the optional smoke-test endpoint.
func Test(cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		jsonResponse(ctx, map[string]any{
			"status":  "ok",
			"product": cfg.ProductName,
		})
	}
}
