// Package generator renders the static portfolio site from the project
// collection. Committed thumbnails are copied into the output directory
// under content-hashed names so browsers never serve a stale image.
package generator

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"path"
	"sort"
	"strings"

	"github.com/ostberg/folio/internal/assets"
	"github.com/ostberg/folio/internal/checksum"
	"github.com/ostberg/folio/internal/models"
	"github.com/ostberg/folio/internal/storage"
)

// Generator builds the public site into outputDir.
type Generator struct {
	fs        storage.Provider
	assetsDir string
	outputDir string
	tmpl      *template.Template
}

// New creates a generator reading assets from assetsDir and writing the
// rendered site into outputDir (both relative to the site root).
func New(fs storage.Provider, assetsDir, outputDir string) (*Generator, error) {
	tmpl, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("generator: parse template: %w", err)
	}
	return &Generator{fs: fs, assetsDir: assetsDir, outputDir: outputDir, tmpl: tmpl}, nil
}

type pageProject struct {
	models.Project
	ThumbnailSrc string
	IsFeatured   bool
}

type pageData struct {
	SiteName string
	Tagline  string
	Projects []pageProject
}

// Build renders index.html and copies referenced thumbnails. Featured
// projects come first, newest first within each group.
func (g *Generator) Build(_ context.Context, col models.Collection) error {
	ordered := make([]models.Project, len(col.Projects))
	copy(ordered, col.Projects)
	sort.SliceStable(ordered, func(i, j int) bool {
		fi := ordered[i].Featured != nil && *ordered[i].Featured
		fj := ordered[j].Featured != nil && *ordered[j].Featured
		if fi != fj {
			return fi
		}
		return ordered[i].CreationDate > ordered[j].CreationDate
	})

	data := pageData{
		SiteName: configString(col.Config, "siteName", "Portfolio"),
		Tagline:  configString(col.Config, "tagline", ""),
	}
	for _, p := range ordered {
		src, err := g.resolveThumbnail(p)
		if err != nil {
			return err
		}
		data.Projects = append(data.Projects, pageProject{
			Project:      p,
			ThumbnailSrc: src,
			IsFeatured:   p.Featured != nil && *p.Featured,
		})
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("generator: render: %w", err)
	}
	if err := g.fs.Write(path.Join(g.outputDir, "index.html"), buf.Bytes()); err != nil {
		return err
	}
	return nil
}

// resolveThumbnail turns a record's thumbnailLink into a page-relative src.
// External URLs pass through; asset:// references are copied into the
// output under a content-hashed name.
func (g *Generator) resolveThumbnail(p models.Project) (string, error) {
	link := p.ThumbnailLink
	if link == "" {
		return "", nil
	}
	if !assets.IsRef(link) {
		return link, nil
	}
	name, err := assets.Filename(link)
	if err != nil {
		return "", fmt.Errorf("generator: project %q: %w", p.ID, err)
	}
	data, err := g.fs.Read(path.Join(g.assetsDir, name))
	if err != nil {
		return "", fmt.Errorf("generator: project %q thumbnail: %w", p.ID, err)
	}
	ext := path.Ext(name)
	hashed := strings.TrimSuffix(name, ext) + "." + checksum.Short(data) + ext
	if err := g.fs.Write(path.Join(g.outputDir, "assets", hashed), data); err != nil {
		return "", err
	}
	return "assets/" + hashed, nil
}

func configString(cfg map[string]interface{}, key, fallback string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.SiteName}}</title>
</head>
<body>
<header>
<h1>{{.SiteName}}</h1>
{{- if .Tagline}}
<p>{{.Tagline}}</p>
{{- end}}
</header>
<main>
{{- range .Projects}}
<article id="{{.ID}}"{{if .IsFeatured}} class="featured"{{end}}>
{{- if .ThumbnailSrc}}
<img src="{{.ThumbnailSrc}}" alt="{{.Title}}">
{{- end}}
<h2><a href="{{.PageLink}}">{{.Title}}</a></h2>
<p>{{.Description}}</p>
<time datetime="{{.CreationDate}}">{{.CreationDate}}</time>
{{- if .Tags}}
<ul>
{{- range .Tags}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
{{- if .SourceLink}}
<a href="{{.SourceLink}}">Source</a>
{{- end}}
</article>
{{- end}}
</main>
</body>
</html>
`
