package web

import (
	"embed"
	htmltemplate "html/template"
	"io/fs"
	"sync"
	texttemplate "text/template"
	"time"
)

//go:embed index.html app.css
var content embed.FS

//go:embed *.lua.tmpl
var scripts embed.FS

var (
	tmpl       *htmltemplate.Template
	scriptTmpl *texttemplate.Template
	once       sync.Once
)

func parse() {
	tmpl = htmltemplate.Must(htmltemplate.ParseFS(content, "*.html"))
	scriptTmpl = texttemplate.Must(texttemplate.ParseFS(scripts, "*.lua.tmpl"))
}

// Templates returns the parsed HTML templates for the status page, embedded at build time.
func Templates() *htmltemplate.Template {
	once.Do(parse)
	return tmpl
}

// Scripts returns the loader script templates served by /auth
// (challenge.lua.tmpl and granted.lua.tmpl).
func Scripts() *texttemplate.Template {
	once.Do(parse)
	return scriptTmpl
}

// ChallengeData fills challenge.lua.tmpl.
type ChallengeData struct {
	Key  string
	HWID string
	URL  string
}

// GrantedData fills granted.lua.tmpl.
type GrantedData struct {
	Product   string
	ExpiresAt time.Time
	Payload   string
}

// StaticFS exposes embedded static assets such as CSS.
func StaticFS() fs.FS {
	return content
}
