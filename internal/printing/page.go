package printing

import (
	"fmt"
	"html/template"
	"io"
)

var pageTemplate = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Print Badge{{if .Ref}} {{.Ref}}{{end}}</title>
<style>
@page { size: {{.PageWidth}} {{.PageHeight}}; margin: 0; }
html, body { margin: 0; padding: 0; width: {{.PageWidth}}; height: {{.PageHeight}}; overflow: hidden; }
.page { width: 100%; height: 100%; display: flex; align-items: center; justify-content: center; }
img { width: 100%; height: 100%; object-fit: contain;{{if .Rotate}} transform: rotate(270deg);{{end}} }
</style>
</head>
<body>
<div class="page"><img id="badge" src="{{.ImageURL}}" alt="badge"></div>
<script>
document.getElementById("badge").addEventListener("load", function () { window.print(); });
</script>
</body>
</html>
`))

type pageData struct {
	ImageURL   template.URL
	Rotate     bool
	Ref        string
	PageWidth  template.CSS
	PageHeight template.CSS
}

// RenderPage writes the print view for a job: the image fills a fixed physical
// page and the print dialog opens once it has loaded.
func (d *Dispatcher) RenderPage(w io.Writer, job *Job) error {
	data := pageData{
		// data URLs are not in html/template's safe scheme list
		ImageURL:   template.URL(job.ImageURL),
		Rotate:     job.Rotate,
		Ref:        job.Ref,
		PageWidth:  template.CSS(d.cfg.PageWidth),
		PageHeight: template.CSS(d.cfg.PageHeight),
	}
	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render print page: %w", err)
	}
	return nil
}
