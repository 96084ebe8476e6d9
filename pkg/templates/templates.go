// Package templates holds the configuration files kubestrap renders onto
// the host, embedded in the binary so an install needs no external assets.
package templates

import (
	"bytes"
	"embed"
	"io/fs"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"
	sigsyaml "sigs.k8s.io/yaml"
)

//go:embed sysctl/*.tmpl
//go:embed containerd/*.tmpl
//go:embed kubernetes/*.tmpl
//go:embed helm/*.tmpl
var embedded embed.FS

// Get returns the raw content of an embedded template, addressed by its
// relative path, e.g. "kubernetes/kubeadm-config.yaml.tmpl".
func Get(name string) (string, error) {
	content, err := fs.ReadFile(embedded, name)
	if err != nil {
		return "", errors.Wrapf(err, "reading embedded template %q", name)
	}
	return string(content), nil
}

// List returns the relative paths of every embedded template.
func List() ([]string, error) {
	var files []string
	err := fs.WalkDir(embedded, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walking embedded templates")
	}
	return files, nil
}

// Render executes an embedded template with the given data. Missing keys are
// errors; a half-rendered config file on the host is worse than no file.
func Render(name string, data any) (string, error) {
	raw, err := Get(name)
	if err != nil {
		return "", err
	}
	return RenderString(name, raw, data)
}

// RenderString renders template text that is not embedded.
func RenderString(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return "", errors.Wrapf(err, "parsing template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "rendering template %q", name)
	}
	return buf.String(), nil
}

// Values marshals a helm values map to YAML.
func Values(values map[string]any) (string, error) {
	out, err := sigsyaml.Marshal(values)
	if err != nil {
		return "", errors.Wrap(err, "marshaling helm values")
	}
	return string(out), nil
}
