package handlers

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/valyala/fasthttp"

	"keygate/internal/commands"
)

// Commands is the chat front-end webhook. The front-end forwards each
// message as {"user_id", "text"} and relays the reply.
func Commands(d *commands.Dispatcher) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var cmd commands.Command
		if err := json.Unmarshal(ctx.PostBody(), &cmd); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(cmd.UserID) == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "user_id required")
			return
		}

		reply, err := d.Handle(ctx, cmd)
		if err != nil {
			log.Printf("command %q from %s failed: %v", cmd.Text, cmd.UserID, err)
			errResponse(ctx, fasthttp.StatusInternalServerError, "command failed")
			return
		}
		jsonResponse(ctx, reply)
	}
}
