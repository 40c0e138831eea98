// Package render writes nginx virtual hosts and placeholder pages for project domains.
package render

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/demos-sh/demos/system"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var (
	vhostTemplate = template.Must(template.ParseFS(templatesFS, "templates/vhost.conf.tmpl"))
	pageTemplate  = htmltemplate.Must(htmltemplate.ParseFS(templatesFS, "templates/502.html.tmpl"))
)

const placeholderPageName = "502.html"

type Options struct {
	VhostDir      string
	PageDir       string
	BaseHost      string
	ReloadCommand string
	UpstreamHost  string
	ListenPort    int
}

// Renderer owns the files under VhostDir and PageDir. Writes are serialized
// so a file and the reload that activates it are never interleaved with
// another write.
type Renderer struct {
	opts   Options
	runner system.Runner
	mu     sync.Mutex
}

func NewRenderer(runner system.Runner, opts Options) *Renderer {
	if opts.UpstreamHost == "" {
		opts.UpstreamHost = "localhost"
	}
	if opts.ListenPort == 0 {
		opts.ListenPort = 80
	}
	if opts.ReloadCommand == "" {
		opts.ReloadCommand = "service nginx reload"
	}
	return &Renderer{opts: opts, runner: runner}
}

type vhostData struct {
	Domain       string
	Port         int
	UpstreamHost string
	ListenPort   int
	PageRoot     string
}

type pageData struct {
	Domain   string
	Label    string
	BaseHost string
}

// VhostPath returns the vhost file path for domain.
func (r *Renderer) VhostPath(domain string) string {
	return filepath.Join(r.opts.VhostDir, domain+".conf")
}

// PageRoot returns the directory holding domain's placeholder page.
func (r *Renderer) PageRoot(domain string) string {
	return filepath.Join(r.opts.PageDir, domain)
}

// PagePath returns the placeholder page path for domain.
func (r *Renderer) PagePath(domain string) string {
	return filepath.Join(r.PageRoot(domain), placeholderPageName)
}

// Vhost renders the server block for domain. Port 0 renders the placeholder
// variant, which answers every request with the 502 page.
func (r *Renderer) Vhost(domain string, port int) ([]byte, error) {
	if err := checkName(domain); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err := vhostTemplate.Execute(&buf, vhostData{
		Domain:       domain,
		Port:         port,
		UpstreamHost: r.opts.UpstreamHost,
		ListenPort:   r.opts.ListenPort,
		PageRoot:     r.PageRoot(domain),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render vhost for %s: %w", domain, err)
	}
	return buf.Bytes(), nil
}

// RenderVhost writes domain's vhost and reloads nginx. Port 0 writes the
// placeholder variant. If the reload fails the previous file is put back and
// the reload error is returned.
func (r *Renderer) RenderVhost(ctx context.Context, domain string, port int) error {
	content, err := r.Vhost(domain, port)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.VhostPath(domain)
	previous, readErr := os.ReadFile(path)
	hadPrevious := readErr == nil
	if readErr != nil && !errors.Is(readErr, os.ErrNotExist) {
		return fmt.Errorf("failed to read existing vhost %s: %w", path, readErr)
	}

	if err := os.MkdirAll(r.opts.VhostDir, 0o755); err != nil {
		return fmt.Errorf("failed to create vhost directory: %w", err)
	}
	if err := system.WriteFileAtomic(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write vhost %s: %w", path, err)
	}

	if _, err := system.RunLine(ctx, r.runner, r.opts.ReloadCommand); err != nil {
		var restoreErr error
		if hadPrevious {
			restoreErr = system.WriteFileAtomic(path, previous, 0o644)
		} else {
			restoreErr = os.Remove(path)
		}
		slog.Error("Nginx reload failed, vhost rolled back",
			"layer", "render",
			"operation", "render_vhost",
			"domain", domain,
			"port", port,
			"restore_error", restoreErr,
			"error", err)
		return fmt.Errorf("failed to reload nginx for %s: %w", domain, err)
	}

	slog.Info("Vhost rendered",
		"layer", "render",
		"domain", domain,
		"port", port,
		"path", path)
	return nil
}

// RemoveVhost deletes domain's vhost and reloads nginx if a file was removed.
func (r *Renderer) RemoveVhost(ctx context.Context, domain string) error {
	if err := checkName(domain); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.VhostPath(domain)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to remove vhost %s: %w", path, err)
	}

	if _, err := system.RunLine(ctx, r.runner, r.opts.ReloadCommand); err != nil {
		return fmt.Errorf("failed to reload nginx after removing %s: %w", domain, err)
	}

	slog.Info("Vhost removed", "layer", "render", "domain", domain)
	return nil
}

// RenderPlaceholderPage writes the static page served while domain is not connected.
func (r *Renderer) RenderPlaceholderPage(domain string) error {
	if err := checkName(domain); err != nil {
		return err
	}

	label, _, _ := strings.Cut(domain, ".")
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, pageData{
		Domain:   domain,
		Label:    label,
		BaseHost: r.opts.BaseHost,
	}); err != nil {
		return fmt.Errorf("failed to render placeholder page for %s: %w", domain, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.PageRoot(domain), 0o755); err != nil {
		return fmt.Errorf("failed to create page directory: %w", err)
	}
	if err := system.WriteFileAtomic(r.PagePath(domain), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write placeholder page for %s: %w", domain, err)
	}
	return nil
}

// RemovePlaceholderPage deletes domain's page directory. Missing files are not an error.
func (r *Renderer) RemovePlaceholderPage(domain string) error {
	if err := checkName(domain); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.RemoveAll(r.PageRoot(domain)); err != nil {
		return fmt.Errorf("failed to remove placeholder page for %s: %w", domain, err)
	}
	return nil
}

// checkName rejects names that would escape the managed directories.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}
