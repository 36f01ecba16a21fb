package httpd

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

const pageTemplate = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #aaa; padding: 4px 10px; text-align: left; }
th { background: #eee; }
.footer { margin-top: 2em; font-size: 0.8em; color: #888; }
</style>
</head>
<body>
%s
<div class="footer">genoserve</div>
</body>
</html>`

func renderPage(title, body string) []byte {
	return []byte(fmt.Sprintf(pageTemplate, html.EscapeString(title), body))
}

// renderMessagePage renders a minimal page with a heading and a single
// paragraph, used for error pages and plain confirmations.
func renderMessagePage(title, message string) []byte {
	body := fmt.Sprintf("<h1>%s</h1>\n<p>%s</p>", html.EscapeString(title), html.EscapeString(message))
	return renderPage(title, body)
}

var categoryNames = map[ParamCategory]string{
	ParamPath:  "path",
	ParamQuery: "query",
	ParamForm:  "form",
	ParamAny:   "query or form",
}

var authNames = map[AuthType]string{
	AuthNone:  "none",
	AuthToken: "session token",
	AuthBasic: "basic",
}

// RenderHelpIndex lists every registered endpoint with its method and
// description.
func RenderHelpIndex(endpoints []*Endpoint) []byte {
	var b strings.Builder
	b.WriteString("<h1>Available endpoints</h1>\n<table>\n")
	b.WriteString("<tr><th>Route</th><th>Method</th><th>Authentication</th><th>Description</th></tr>\n")
	for _, ep := range endpoints {
		fmt.Fprintf(&b, "<tr><td><a href=\"/v1/help/%s\">%s</a></td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			html.EscapeString(ep.Path), html.EscapeString(ep.Path),
			string(ep.Method), authNames[ep.Auth], html.EscapeString(ep.Description))
	}
	b.WriteString("</table>\n")
	return renderPage("Available endpoints", b.String())
}

// RenderHelpEndpoint describes the parameter contract of one or more
// endpoints registered under a route.
func RenderHelpEndpoint(endpoints []*Endpoint) []byte {
	var b strings.Builder
	for _, ep := range endpoints {
		fmt.Fprintf(&b, "<h1>%s %s</h1>\n<p>%s</p>\n", string(ep.Method),
			html.EscapeString(ep.Path), html.EscapeString(ep.Description))
		if len(ep.Params) == 0 {
			b.WriteString("<p>No parameters.</p>\n")
			continue
		}
		b.WriteString("<table>\n<tr><th>Parameter</th><th>Location</th><th>Required</th><th>Description</th></tr>\n")
		names := make([]string, 0, len(ep.Params))
		for name := range ep.Params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			spec := ep.Params[name]
			required := "yes"
			if spec.Optional {
				required = "no"
			}
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
				html.EscapeString(name), categoryNames[spec.Category], required,
				html.EscapeString(spec.Description))
		}
		b.WriteString("</table>\n")
	}
	title := "Endpoint help"
	if len(endpoints) > 0 {
		title = endpoints[0].Path
	}
	return renderPage(title, b.String())
}

// FolderEntry is one row of a directory listing page.
type FolderEntry struct {
	Name  string
	IsDir bool
	Size  int64
}

// RenderFolderListing renders a directory index with links relative to the
// requested location.
func RenderFolderListing(location string, entries []FolderEntry) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>Index of %s</h1>\n<table>\n", html.EscapeString(location))
	b.WriteString("<tr><th>Name</th><th>Size</th></tr>\n")
	for _, entry := range entries {
		name := entry.Name
		size := fmt.Sprintf("%d", entry.Size)
		if entry.IsDir {
			name += "/"
			size = "-"
		}
		fmt.Fprintf(&b, "<tr><td><a href=\"%s\">%s</a></td><td>%s</td></tr>\n",
			html.EscapeString(name), html.EscapeString(name), size)
	}
	b.WriteString("</table>\n")
	return renderPage("Index of "+location, b.String())
}
