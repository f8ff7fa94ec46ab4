// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package webserver

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/drydock-dev/drydock/lib/unit"
)

// DefaultConfigDir is where per-application site files are installed.
// The main Caddyfile imports every file in it.
const DefaultConfigDir = "/etc/caddy/conf.d"

// ConfigPath is the default installed location of app's site file.
func ConfigPath(app string) string {
	return path.Join(DefaultConfigDir, app+".caddy")
}

// Route maps a request path to a target. Exactly one of Static,
// Process and Upstream must be set.
type Route struct {
	// Path is a Caddy path matcher such as "/static/*". "/" is the
	// catch-all route.
	Path string

	// Static is a directory served with file_server.
	Static string

	// Process names a ProcessSpec to proxy to.
	Process string

	// Upstream is an explicit proxy address.
	Upstream string
}

// Site is the reverse proxy configuration of one application.
type Site struct {
	App    string
	Domain string

	// Upstream is the fallback proxy address for process routes whose
	// process declares neither a listen address nor a socket.
	Upstream string

	Routes []Route
}

// Validate checks the site against the application's processes. It
// rejects malformed routes, routes naming unknown processes, and
// routes to multi-replica processes that have no per-instance socket.
func (s Site) Validate(specs []unit.ProcessSpec) error {
	var issues []string
	if s.Domain == "" {
		issues = append(issues, "domain is required")
	}
	if strings.ContainsAny(s.Domain, " \t\r\n{}") {
		issues = append(issues, fmt.Sprintf("domain %q contains whitespace or braces", s.Domain))
	}
	if len(s.Routes) == 0 {
		issues = append(issues, "at least one route is required")
	}

	byName := processIndex(specs)
	seen := make(map[string]bool, len(s.Routes))
	for _, route := range s.Routes {
		prefix := fmt.Sprintf("route %q", route.Path)
		if !strings.HasPrefix(route.Path, "/") {
			issues = append(issues, prefix+": path must start with /")
		}
		if seen[route.Path] {
			issues = append(issues, prefix+": duplicate path")
		}
		seen[route.Path] = true

		targets := 0
		for _, target := range []string{route.Static, route.Process, route.Upstream} {
			if target != "" {
				targets++
			}
		}
		if targets != 1 {
			issues = append(issues, prefix+": exactly one of static, process or upstream must be set")
			continue
		}
		if route.Process == "" {
			continue
		}
		spec, ok := byName[route.Process]
		if !ok {
			issues = append(issues, fmt.Sprintf("%s: unknown process %q", prefix, route.Process))
			continue
		}
		if spec.Replicas > 1 && !spec.Socket {
			issues = append(issues, fmt.Sprintf("%s: process %q has %d replicas and no socket to proxy to", prefix, spec.Name, spec.Replicas))
		}
		if spec.Timer != nil {
			issues = append(issues, fmt.Sprintf("%s: process %q is a scheduled job", prefix, spec.Name))
		}
		if !spec.Socket && spec.Listen == "" && spec.Replicas == 1 && s.Upstream == "" {
			issues = append(issues, fmt.Sprintf("%s: process %q has no listen address and no default upstream is set", prefix, spec.Name))
		}
	}

	if len(issues) > 0 {
		return fmt.Errorf("invalid webserver configuration: %s", strings.Join(issues, "; "))
	}
	return nil
}

func processIndex(specs []unit.ProcessSpec) map[string]unit.ProcessSpec {
	byName := make(map[string]unit.ProcessSpec, len(specs))
	for _, spec := range specs {
		byName[spec.Name] = spec
	}
	return byName
}

// Upstreams resolves the proxy addresses of a process, one per
// instance for socket-activated templates.
func Upstreams(c unit.Context, spec unit.ProcessSpec, fallback string) []string {
	switch {
	case spec.Socket && spec.Template():
		socket := c.SocketPath(spec)
		upstreams := make([]string, 0, spec.Replicas)
		for instance := 1; instance <= spec.Replicas; instance++ {
			upstreams = append(upstreams, "unix/"+strings.Replace(socket, "%i", strconv.Itoa(instance), 1))
		}
		return upstreams
	case spec.Socket && spec.Listen == "":
		return []string{"unix/" + c.SocketPath(spec)}
	case spec.Listen != "":
		if strings.HasPrefix(spec.Listen, "/") {
			return []string{"unix/" + spec.Listen}
		}
		return []string{spec.Listen}
	}
	return []string{fallback}
}

// Render produces the site file for s. Routes are emitted most
// specific first, with "/" last as the catch-all handle block.
func Render(s Site, c unit.Context, specs []unit.ProcessSpec) (string, error) {
	if err := s.Validate(specs); err != nil {
		return "", err
	}
	byName := processIndex(specs)

	routes := append([]Route(nil), s.Routes...)
	sort.SliceStable(routes, func(i, j int) bool {
		if (routes[i].Path == "/") != (routes[j].Path == "/") {
			return routes[j].Path == "/"
		}
		return len(routes[i].Path) > len(routes[j].Path)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "# Caddyfile for %s, generated by drydock\n\n", s.App)
	fmt.Fprintf(&b, "%s {\n", s.Domain)
	for index, route := range routes {
		if index > 0 {
			b.WriteString("\n")
		}
		if route.Path == "/" {
			b.WriteString("\thandle {\n")
		} else {
			fmt.Fprintf(&b, "\thandle %s {\n", route.Path)
		}
		switch {
		case route.Static != "":
			fmt.Fprintf(&b, "\t\troot * %s\n", route.Static)
			b.WriteString("\t\tfile_server\n")
		case route.Upstream != "":
			fmt.Fprintf(&b, "\t\treverse_proxy %s\n", route.Upstream)
		default:
			upstreams := Upstreams(c, byName[route.Process], s.Upstream)
			fmt.Fprintf(&b, "\t\treverse_proxy %s\n", strings.Join(upstreams, " "))
		}
		b.WriteString("\t}\n")
	}
	b.WriteString("}\n")
	return b.String(), nil
}
