package mcp

import "net/http"

const landingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>docchat</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: #f8fafc; color: #0f172a; max-width: 640px; margin: 3rem auto; padding: 0 1rem; }
  h1 { font-size: 1.6rem; }
  code { font-family: Menlo, monospace; background: #e2e8f0; padding: 0 0.25rem; border-radius: 4px; }
  li { margin: 0.35rem 0; }
</style>
</head>
<body>
<h1>docchat</h1>
<p>Upload a PDF or Markdown file and ask questions about it.</p>
<ul>
  <li><code>POST /api/upload</code> upload a document</li>
  <li><code>POST /api/chat</code> ask a question</li>
  <li><code>POST /api/chat/stream</code> ask with a streamed answer</li>
  <li><code>GET /api/chat/history/{id}</code> conversation for a document</li>
  <li><code>/mcp</code> MCP Streamable HTTP (tools: list_documents, ask_document, get_history, clear_history)</li>
  <li><a href="/health"><code>/health</code></a> health check</li>
</ul>
</body>
</html>`

// NewLandingHandler returns an HTTP handler that serves the landing page at /.
func NewLandingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(landingHTML))
	}
}
