package plugin_parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/files"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/log"
)

var Logger = log.NewLogger()

// headerBytes is how much of a main file is searched for header fields.
const headerBytes = 8 * 1024

var ErrUnknownComponent = errors.New("unknown component")

type ComponentType string

const (
	TypePlugin   ComponentType = "plugin"
	TypeMuPlugin ComponentType = "muplugin"
)

// Component is an installed plugin as described by its header comment.
type Component struct {
	ID          string        `json:"id" yaml:"id" toml:"id"`
	Slug        string        `json:"slug" yaml:"slug" toml:"slug"`
	Type        ComponentType `json:"type" yaml:"type" toml:"type"`
	Name        string        `json:"name" yaml:"name" toml:"name"`
	Version     string        `json:"version" yaml:"version" toml:"version"`
	UpdateURI   string        `json:"update_uri,omitempty" yaml:"update_uri,omitempty" toml:"update_uri,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Author      string        `json:"author,omitempty" yaml:"author,omitempty" toml:"author,omitempty"`
	File        string        `json:"file" yaml:"file" toml:"file"`
}

var headerFields = map[string]*regexp.Regexp{}

func init() {
	for _, field := range []string{"Plugin Name", "Version", "Update URI", "Description", "Author"} {
		headerFields[field] = regexp.MustCompile(`(?mi)^[ \t/*#@]*` + regexp.QuoteMeta(field) + `:(.*)$`)
	}
}

var headerCommentEnd = regexp.MustCompile(`\s*(?:\*/|\?>).*`)

// ParseHeader extracts the header fields from the start of a main file.
func ParseHeader(r io.Reader) (map[string]string, error) {
	buf, err := io.ReadAll(io.LimitReader(r, headerBytes))
	if err != nil {
		return nil, err
	}
	text := strings.ReplaceAll(string(buf), "\r", "\n")

	fields := make(map[string]string, len(headerFields))
	for field, re := range headerFields {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		fields[field] = strings.TrimSpace(headerCommentEnd.ReplaceAllString(m[1], ""))
	}
	return fields, nil
}

// SlugFromID returns the first path segment of a component id without a
// trailing .php, e.g. "hello-dolly/hello.php" -> "hello-dolly".
func SlugFromID(id string) string {
	first, _, _ := strings.Cut(filepath.ToSlash(id), "/")
	return strings.TrimSuffix(first, ".php")
}

// Parser reads components from a plugins directory and a must-use
// plugins directory.
type Parser struct {
	fs           afero.Fs
	pluginsDir   string
	muPluginsDir string
}

// New reads from the package filesystem in files.
func New(pluginsDir, muPluginsDir string) *Parser {
	return NewWithFs(files.FileSystem(), pluginsDir, muPluginsDir)
}

func NewWithFs(fs afero.Fs, pluginsDir, muPluginsDir string) *Parser {
	return &Parser{fs: fs, pluginsDir: pluginsDir, muPluginsDir: muPluginsDir}
}

func (p *Parser) PluginsDir() string {
	return p.pluginsDir
}

func (p *Parser) MuPluginsDir() string {
	return p.muPluginsDir
}

// List returns all components sorted by id. Unreadable entries are
// logged and skipped.
func (p *Parser) List() ([]Component, error) {
	var components []Component

	if p.pluginsDir != "" {
		plugins, err := p.listPlugins()
		if err != nil {
			return nil, err
		}
		components = append(components, plugins...)
	}
	if p.muPluginsDir != "" {
		mu, err := p.listMuPlugins()
		if err != nil {
			return nil, err
		}
		components = append(components, mu...)
	}

	sort.Slice(components, func(i, j int) bool { return components[i].ID < components[j].ID })
	return components, nil
}

func (p *Parser) listPlugins() ([]Component, error) {
	entries, err := afero.ReadDir(p.fs, p.pluginsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read plugins directory: %w", err)
	}

	var components []Component
	for _, entry := range entries {
		if !entry.IsDir() {
			if isPHP(entry.Name()) {
				if c, ok := p.read(TypePlugin, p.pluginsDir, entry.Name()); ok {
					components = append(components, c)
				}
			}
			continue
		}

		children, err := afero.ReadDir(p.fs, filepath.Join(p.pluginsDir, entry.Name()))
		if err != nil {
			Logger.Warn("Skipping unreadable plugin directory", "dir", entry.Name(), "err", err)
			continue
		}
		for _, child := range children {
			if child.IsDir() || !isPHP(child.Name()) {
				continue
			}
			if c, ok := p.read(TypePlugin, p.pluginsDir, entry.Name()+"/"+child.Name()); ok {
				components = append(components, c)
				break
			}
		}
	}
	return components, nil
}

func (p *Parser) listMuPlugins() ([]Component, error) {
	entries, err := afero.ReadDir(p.fs, p.muPluginsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read must-use plugins directory: %w", err)
	}

	var components []Component
	for _, entry := range entries {
		if entry.IsDir() || !isPHP(entry.Name()) {
			continue
		}
		if c, ok := p.read(TypeMuPlugin, p.muPluginsDir, entry.Name()); ok {
			components = append(components, c)
		}
	}
	return components, nil
}

// Get returns the component with the given id.
func (p *Parser) Get(id string) (Component, error) {
	id = filepath.ToSlash(strings.TrimSpace(id))
	if id == "" || strings.Contains(id, "..") {
		return Component{}, fmt.Errorf("%w: %q", ErrUnknownComponent, id)
	}

	if strings.Contains(id, "/") {
		if c, ok := p.read(TypePlugin, p.pluginsDir, id); ok {
			return c, nil
		}
		return Component{}, fmt.Errorf("%w: %q", ErrUnknownComponent, id)
	}
	if p.muPluginsDir != "" {
		if c, ok := p.read(TypeMuPlugin, p.muPluginsDir, id); ok {
			return c, nil
		}
	}
	if p.pluginsDir != "" {
		if c, ok := p.read(TypePlugin, p.pluginsDir, id); ok {
			return c, nil
		}
	}
	return Component{}, fmt.Errorf("%w: %q", ErrUnknownComponent, id)
}

// read parses root/id. Regular plugins need a Plugin Name header;
// must-use plugins fall back to their file name.
func (p *Parser) read(kind ComponentType, root, id string) (Component, bool) {
	path := filepath.Join(root, filepath.FromSlash(id))
	f, err := p.fs.Open(path)
	if err != nil {
		return Component{}, false
	}
	defer func() { _ = f.Close() }()

	fields, err := ParseHeader(f)
	if err != nil {
		Logger.Warn("Could not read plugin header", "file", path, "err", err)
		return Component{}, false
	}

	name := fields["Plugin Name"]
	if name == "" {
		if kind != TypeMuPlugin {
			return Component{}, false
		}
		name = strings.TrimSuffix(filepath.Base(id), ".php")
	}

	return Component{
		ID:          id,
		Slug:        SlugFromID(id),
		Type:        kind,
		Name:        name,
		Version:     fields["Version"],
		UpdateURI:   fields["Update URI"],
		Description: fields["Description"],
		Author:      fields["Author"],
		File:        path,
	}, true
}

func isPHP(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".php")
}
