package web

import (
	"bytes"
	"html/template"
	"strings"
)

// rowsMarker is the magic comment the shell template splits on: everything
// before it is sent immediately after the document prelude, everything
// after is sent once all rows have streamed, so the server never re-renders
// the shell per request.
const rowsMarker = "<!--loglens:rows-->"

// shellParts is the shell fragment split around rowsMarker, computed once
// per process and reused by every request.
type shellParts struct {
	Before string
	After  string
}

var shellTemplate = template.Must(template.New("shell").Parse(`<div id="loglens-app">
  <header class="loglens-header">
    <h1>loglens</h1>
    <div id="loglens-status">loading&hellip;</div>
  </header>
  <div id="loglens-toolbar">
    <input id="loglens-from" type="text" placeholder="from" />
    <input id="loglens-to" type="text" placeholder="to" />
    <input id="loglens-level" type="text" placeholder="level" />
    <input id="loglens-module" type="text" placeholder="module" />
  </div>
  <table id="loglens-table">
    <thead>
      <tr><th>time</th><th>level</th><th>module</th><th>msg</th></tr>
    </thead>
    <tbody id="loglens-rows">
` + rowsMarker + `
    </tbody>
  </table>
</div>`))

// buildShell renders shellTemplate exactly once and splits it on rowsMarker.
func buildShell() shellParts {
	var buf bytes.Buffer
	if err := shellTemplate.Execute(&buf, nil); err != nil {
		panic("web: shell template must always render: " + err.Error())
	}

	rendered := buf.String()
	idx := strings.Index(rendered, rowsMarker)
	if idx < 0 {
		panic("web: shell template missing rows marker")
	}

	return shellParts{
		Before: rendered[:idx],
		After:  rendered[idx+len(rowsMarker):],
	}
}

var rowTemplate = template.Must(template.New("row").Parse(
	`<tr class="loglens-row loglens-level-{{.Level}}" data-time="{{.Time}}">` +
		`<td>{{.Time}}</td><td>{{.Level}}</td><td>{{.Module}}</td><td>{{.Msg}}</td></tr>
`))

type rowView struct {
	Time   string
	Level  string
	Module string
	Msg    string
}

// renderRow escapes via html/template, the one place in the HTML path user
// log content (msg, module) reaches the response body.
func renderRow(w *bytes.Buffer, view rowView) error {
	return rowTemplate.Execute(w, view)
}
