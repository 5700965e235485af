package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	. "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	. "maragu.dev/gomponents/html"

	"duckstack/internal/render"
)

const stylesheet = `body{font-family:system-ui,sans-serif;margin:0;background:#f6f8fa;color:#1f2328}
header{background:#24292f;color:#fff;padding:12px 24px}header a{color:#fff;text-decoration:none}
main{max-width:960px;margin:24px auto;padding:0 16px}
.card{background:#fff;border:1px solid #d0d7de;border-radius:6px;padding:16px;margin-bottom:16px}
.metrics{display:flex;flex-wrap:wrap;gap:16px}.metric{flex:1 1 180px}
.metric .value{font-size:1.8em;font-weight:600}.muted{color:#656d76;font-size:.9em}
table{border-collapse:collapse;width:100%}th,td{text-align:left;padding:6px 8px;border-bottom:1px solid #d0d7de}
input{width:100%;padding:6px;box-sizing:border-box}code{font-size:.85em}`

func renderHTML(w http.ResponseWriter, status int, node Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}

func page(title string, body ...Node) Node {
	return HTML(
		Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
			TitleEl(Text(title+" | duckstack")),
			Link(Rel("icon"), Href("data:,")),
			StyleEl(Raw(stylesheet)),
			Script(
				Type("module"),
				Src("https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.7/bundles/datastar.js"),
			),
		),
		Body(
			Header(A(Href("/"), Strong(Text("duckstack")))),
			Main(H1(Text(title)), Group(body)),
		),
	)
}

func errorPage(status int, message string) Node {
	return page(http.StatusText(status), Div(Class("card"), P(Text(message)), P(A(Href("/"), Text("Back to dashboards")))))
}

// containsExpr is a datastar expression that is true when the quick filter
// is empty or matches value.
func containsExpr(value string) string {
	return "$q === '' || " + strconv.Quote(strings.ToLower(value)) + ".includes($q.toLowerCase())"
}

func (s *Server) indexPage(w http.ResponseWriter, r *http.Request) {
	list, err := s.summaries()
	if err != nil {
		s.logger.Error("list dashboards", "error", err, "request_id", RequestIDFromContext(r.Context()))
		renderHTML(w, http.StatusInternalServerError, errorPage(http.StatusInternalServerError, err.Error()))
		return
	}
	if len(list) == 0 {
		renderHTML(w, http.StatusOK, page("Dashboards",
			Div(Class("card"), P(Class("muted"), Text("Nothing rendered yet. Run the stack to produce dashboards.")))))
		return
	}

	rows := make([]Node, 0, len(list))
	for _, d := range list {
		rows = append(rows, Tr(
			data.Show(containsExpr(d.Name)),
			Td(A(Href("/dashboards/"+d.Slug), Text(d.Name))),
			Td(Text(strconv.Itoa(d.Metrics))),
			Td(Text(strconv.Itoa(d.Charts))),
			Td(Class("muted"), Text(orDash(d.GeneratedAt))),
		))
	}
	renderHTML(w, http.StatusOK, page("Dashboards",
		Div(
			data.Signals(map[string]any{"q": ""}),
			Div(Class("card"),
				Label(Text("Quick filter")),
				Input(Type("text"), data.Bind("q"), Placeholder("Filter by dashboard name")),
			),
			Div(Class("card"),
				Table(
					THead(Tr(Th(Text("Name")), Th(Text("Metrics")), Th(Text("Charts")), Th(Text("Generated")))),
					TBody(Group(rows)),
				),
			),
		),
	))
}

func (s *Server) dashboardPage(w http.ResponseWriter, r *http.Request) {
	d, err := render.Read(s.opts.Dir, chi.URLParam(r, "slug"))
	if err != nil {
		status := statusFor(err)
		renderHTML(w, status, errorPage(status, err.Error()))
		return
	}
	renderHTML(w, http.StatusOK, page(d.Config.Name, dashboardBody(d)...))
}

func dashboardBody(d *render.Rendered) []Node {
	formats := make(map[string]string, len(d.Config.Metrics))
	for _, m := range d.Config.Metrics {
		formats[m.Name] = m.Format
	}

	metrics := make([]Node, 0, len(d.Values))
	for _, v := range d.Values {
		metrics = append(metrics, Div(Class("card metric"),
			Div(Class("muted"), Text(v.Name)),
			Div(Class("value"), Text(formatValue(v.Value, formats[v.Name]))),
		))
	}

	charts := make([]Node, 0, len(d.Config.Charts))
	for _, c := range d.Config.Charts {
		charts = append(charts, Tr(
			Td(Text(c.Name)),
			Td(Text(c.Type)),
			Td(Text(axes(c))),
			Td(Code(Text(c.Query))),
		))
	}

	body := []Node{
		P(Class("muted"), Text(fmt.Sprintf("Refresh %s. Generated %s. Tables: %s.",
			orDash(d.Config.RefreshInterval), orDash(d.GeneratedAt), orDash(strings.Join(d.Config.Tables, ", "))))),
	}
	if len(metrics) > 0 {
		body = append(body, Div(Class("metrics"), Group(metrics)))
	}
	if len(charts) > 0 {
		body = append(body, Div(Class("card"),
			H2(Text("Charts")),
			Table(
				THead(Tr(Th(Text("Name")), Th(Text("Type")), Th(Text("Axes")), Th(Text("Query")))),
				TBody(Group(charts)),
			),
		))
	}
	return body
}

func axes(c render.ChartConfig) string {
	var parts []string
	if c.XAxis != "" {
		parts = append(parts, "x="+c.XAxis)
	}
	if c.YAxis != "" {
		parts = append(parts, "y="+c.YAxis)
	}
	if c.ColorBy != "" {
		parts = append(parts, "color="+c.ColorBy)
	}
	return orDash(strings.Join(parts, " "))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
