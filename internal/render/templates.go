package render

import (
	"embed"
	"html/template"
	"strconv"
	"strings"
)

// SafeURL marks an image reference as a safe URL so inline data URLs
// survive the template's URL sanitizer.
func SafeURL(s string) template.URL {
	return template.URL(s)
}

//go:embed templates/*.html
var templateFS embed.FS

var cardTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"px": func(v float64) string {
			return strconv.FormatFloat(v, 'f', -1, 64) + "px"
		},
		"safeURL": SafeURL,
	}

	templateContent, err := templateFS.ReadFile("templates/card.html")
	if err != nil {
		// Fallback to built-in template if file not found
		cardTemplate = template.Must(template.New("card").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	cardTemplate = template.Must(template.New("card").Funcs(funcMap).Parse(string(templateContent)))
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { margin: 0; padding: 0; background: #e2e8f0; font-family: Inter, Arial, sans-serif; }
    .card { position: relative; width: {{px .Width}}; height: {{px .Height}}; margin: 24px auto; border-radius: 12px; overflow: hidden; }
    .bg-image { position: absolute; top: 0; left: 0; width: 100%; height: 100%; background-size: cover; background-position: center; }
    .node { position: absolute; white-space: nowrap; line-height: 1.2; }
    .node img { display: block; }
    .node-qr img { background: #ffffff; padding: 4px; border-radius: 6px; }
    .pill { padding: 3px 10px; border-radius: 999px; background: rgba(255,255,255,0.14); }
    .round img { border-radius: 50%; object-fit: cover; }
  </style>
</head>
<body>
{{range .Faces}}
  <div id="card-{{.Face}}" class="card" style="background: linear-gradient(160deg, {{.Background.ColorTop}}, {{.Background.ColorBottom}});">
    {{if .Background.ImageURL}}<div class="bg-image" style="background-image: url('{{.Background.ImageURL}}'); opacity: {{.Background.Opacity}};"></div>{{end}}
    {{range .Visuals}}
    <div class="node node-{{.Kind}}{{if .Round}} round{{end}}{{if .Button}} pill{{end}}" style="left: {{px .X}}; top: {{px .Y}}; color: {{.Color}}; font-family: {{.FontFamily}}, Arial, sans-serif; font-size: {{px .Size}};">
      {{if .ImageURL}}<img src="{{.ImageURL}}" width="{{.Size}}" alt="{{.Kind}}">{{else}}{{if .Platform}}<span class="platform">{{lower .Platform}}</span> {{end}}{{.Text}}{{end}}
    </div>
    {{end}}
  </div>
{{end}}
</body>
</html>`
