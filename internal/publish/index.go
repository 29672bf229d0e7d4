package publish

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/template"
)

// The self-index artifact is the one on-wire shape peers parse: a JSON
// object {"ipns": {name: target}} plus a human-browsable HTML listing.

const indexJSONName = "index.json"
const indexHTMLName = "index.html"

// text/template, not html/template: the listing links ipns:// URLs,
// which html/template's URL filter would rewrite.

var indexTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>IPNS Index</title>
  <style>
    body { font-family: sans-serif; padding: 2rem; }
    li { margin: 0.5rem 0; }
    code { background: #eee; padding: 0.2rem 0.4rem; }
  </style>
</head>
<body>
  <h1>IPNS Index</h1>
  <ul>
{{- range .}}
    <li><a href="ipns://{{.IPNSName}}">{{.Name}}</a> <code>{{.IPNSName}}</code></li>
{{- end}}
  </ul>
</body>
</html>
`))

// IndexJSON renders the machine-readable index for a set of published
// keys (name -> IPNS name).
func IndexJSON(keys map[string]string) ([]byte, error) {
	doc := struct {
		IPNS map[string]string `json:"ipns"`
	}{IPNS: keys}
	return json.MarshalIndent(doc, "", "  ")
}

type indexEntry struct {
	Name     string
	IPNSName string
}

// IndexHTML renders the browsable listing, entries sorted by name.
func IndexHTML(keys map[string]string) ([]byte, error) {
	entries := make([]indexEntry, 0, len(keys))
	for name, ipnsName := range keys {
		entries = append(entries, indexEntry{Name: name, IPNSName: ipnsName})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeIndexDir materializes both artifacts into a fresh temp directory
// ready to be added to the network. The caller removes it.
func writeIndexDir(keys map[string]string) (string, error) {
	dir, err := os.MkdirTemp("", "peerdex-index-")
	if err != nil {
		return "", fmt.Errorf("creating index dir: %w", err)
	}

	jsonBytes, err := IndexJSON(keys)
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("rendering %s: %w", indexJSONName, err)
	}
	if err := os.WriteFile(filepath.Join(dir, indexJSONName), jsonBytes, 0644); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("writing %s: %w", indexJSONName, err)
	}

	htmlBytes, err := IndexHTML(keys)
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("rendering %s: %w", indexHTMLName, err)
	}
	if err := os.WriteFile(filepath.Join(dir, indexHTMLName), htmlBytes, 0644); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("writing %s: %w", indexHTMLName, err)
	}

	return dir, nil
}
