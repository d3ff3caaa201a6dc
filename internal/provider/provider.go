// Package provider loads modalias provider plugins and matches device
// modalias strings against them to find installable driver packages.
package provider

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// PluginExt is the file extension provider plugin files carry.
const PluginExt = ".modaliases"

// Provider describes one installable driver option for a device.
type Provider struct {
	// Package is the distribution package providing the driver.
	Package string `json:"package"`
	// Module is the kernel module the package ships.
	Module string `json:"module"`
	// Plugin names the plugin file the match came from.
	Plugin string `json:"plugin"`
	// Priority orders competing providers, higher wins.
	Priority int `json:"priority"`
}

// alias is one pattern line from a plugin file.
type alias struct {
	pattern string
	module  string
	pkg     string
}

// Plugin is a parsed modalias plugin file. A plugin maps modalias
// patterns to a driver package, optionally with a priority used to
// rank it against other plugins.
type Plugin struct {
	name     string
	priority int
	aliases  []alias
}

// Name returns the plugin name, the file base name without extension.
func (p *Plugin) Name() string { return p.name }

// Priority returns the plugin priority, 0 unless the file set one.
func (p *Plugin) Priority() int { return p.priority }

// ParsePlugin reads a plugin definition. The format is line based:
//
//	# comment
//	priority 100
//	alias pci:v000010DEd*sv*sd*bc03sc*i* nvidia nvidia-glx-driver
//
// Alias patterns use shell-style globbing.
func ParsePlugin(name string, r io.Reader) (*Plugin, error) {
	p := &Plugin{name: name}

	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "priority":
			if len(fields) != 2 {
				return nil, fmt.Errorf("%s:%d: priority needs one argument", name, lineno)
			}
			prio, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: bad priority %q", name, lineno, fields[1])
			}
			p.priority = prio
		case "alias":
			if len(fields) != 4 {
				return nil, fmt.Errorf("%s:%d: alias needs pattern, module and package", name, lineno)
			}
			p.aliases = append(p.aliases, alias{
				pattern: fields[1],
				module:  fields[2],
				pkg:     fields[3],
			})
		default:
			return nil, fmt.Errorf("%s:%d: unknown directive %q", name, lineno, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadPluginFile parses one plugin file. The plugin name is the file
// base name without the .modaliases extension.
func LoadPluginFile(file string) (*Plugin, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(file), PluginExt)
	return ParsePlugin(name, f)
}

// LoadDir loads every .modaliases file in dir, sorted by file name. A
// missing directory yields no plugins and no error.
func LoadDir(dir string) ([]*Plugin, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var plugins []*Plugin
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), PluginExt) {
			continue
		}
		plugin, err := LoadPluginFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return plugins, err
		}
		plugins = append(plugins, plugin)
	}
	return plugins, nil
}

// Match returns the provider for the first alias matching the modalias
// string, or nil when nothing matches. Plugin files routinely carry
// many alias lines for the same package, so the first hit is enough.
func (p *Plugin) Match(modalias string) *Provider {
	if modalias == "" {
		return nil
	}
	for _, a := range p.aliases {
		ok, err := path.Match(a.pattern, modalias)
		if err != nil || !ok {
			continue
		}
		return &Provider{
			Package:  a.pkg,
			Module:   a.module,
			Plugin:   p.name,
			Priority: p.priority,
		}
	}
	return nil
}

// Sort orders providers by priority descending, then package name
// ascending so equal-priority results stay deterministic.
func Sort(providers []*Provider) {
	sort.SliceStable(providers, func(i, j int) bool {
		if providers[i].Priority != providers[j].Priority {
			return providers[i].Priority > providers[j].Priority
		}
		return providers[i].Package < providers[j].Package
	})
}
