package server

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"

	"github.com/morezero/order-assistant/pkg/toolserver"
)

// homePageTemplate is the HTML for the service home page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Order Management MCP Server</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    .status-ok { color: #0066cc; font-weight: bold; }
    .status-degraded { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    code { background: #f0f4f8; padding: 0 0.25rem; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>Order Management MCP Server</h1>
  <p class="meta">Version {{.Health.Version}}</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>Database: {{.Health.Database}}{{if .Health.Detail}} ({{.Health.Detail}}){{end}}</p>
  </section>

  <section>
    <h2>Tools</h2>
    <table>
      <thead>
        <tr><th>Tool</th><th>Parameters</th><th>Description</th></tr>
      </thead>
      <tbody>
        {{range .Tools}}
        <tr>
          <td><code>{{.Name}}</code></td>
          <td>{{range $p, $t := .Spec.Params}}<code>{{$p}}</code>: {{$t}}<br>{{end}}</td>
          <td>{{.Spec.Description}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    <p class="meta">Invoke with <code>POST /mcp/invoke</code> and a body of <code>{"tool": "...", "args": {...}}</code>.</p>
  </section>
</body>
</html>
`

type homeTool struct {
	Name string
	Spec toolserver.ToolSpec
}

type homeData struct {
	Health *HealthOutput
	Tools  []homeTool
}

// handleHome returns an HTTP handler for the service home page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		data := homeData{Health: s.Health(r.Context())}
		for name, spec := range toolserver.Tools() {
			data.Tools = append(data.Tools, homeTool{Name: name, Spec: spec})
		}
		sort.Slice(data.Tools, func(i, j int) bool { return data.Tools[i].Name < data.Tools[j].Name })

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
