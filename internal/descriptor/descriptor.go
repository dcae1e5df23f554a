// Package descriptor renders the .flatpakrepo file clients use to add the
// mirror as a remote.
package descriptor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"text/template"

	"github.com/bianoble/repo-mirror/internal/sandbox"
)

// Extension is the file extension of a repo descriptor.
const Extension = ".flatpakrepo"

var repoTemplate = template.Must(template.New("flatpakrepo").Funcs(template.FuncMap{
	"base64": func(b []byte) string { return base64.StdEncoding.EncodeToString(b) },
}).Option("missingkey=error").Parse(`[Flatpak Repo]
Title={{ .Title }}
Url={{ .URL }}
{{- if .Homepage }}
Homepage={{ .Homepage }}
{{- end }}
{{- if .Comment }}
Comment={{ .Comment }}
{{- end }}
{{- if .GPGKey }}
GPGKey={{ base64 .GPGKey }}
{{- end }}
`))

// Descriptor is the client bootstrap information for one repository.
// A nil GPGKey means clients are not told to verify signatures.
type Descriptor struct {
	Name     string
	Title    string
	URL      string
	Comment  string
	Homepage string
	GPGKey   []byte
}

// FileName returns the descriptor's file name relative to the repository.
func (d Descriptor) FileName() string {
	return d.Name + Extension
}

// Validate checks that the descriptor can be written as a key file.
func (d Descriptor) Validate() error {
	if d.Name == "" || strings.ContainsAny(d.Name, `/\`) || d.Name == "." || d.Name == ".." {
		return fmt.Errorf("invalid descriptor name '%s'", d.Name)
	}
	if d.Title == "" {
		return fmt.Errorf("descriptor '%s': title is required", d.Name)
	}
	if d.URL == "" {
		return fmt.Errorf("descriptor '%s': url is required", d.Name)
	}
	for key, v := range map[string]string{"title": d.Title, "url": d.URL, "comment": d.Comment, "homepage": d.Homepage} {
		if strings.ContainsAny(v, "\r\n") {
			return fmt.Errorf("descriptor '%s': %s must be a single line", d.Name, key)
		}
	}
	return nil
}

// Render returns the key file content.
func Render(d Descriptor) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := repoTemplate.Execute(&buf, d); err != nil {
		return nil, fmt.Errorf("rendering descriptor: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders d into the repository root and returns the relative path
// written.
func Write(root string, d Descriptor) (string, error) {
	content, err := Render(d)
	if err != nil {
		return "", err
	}
	name := d.FileName()
	if err := sandbox.WriteFile(root, name, content, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return name, nil
}
