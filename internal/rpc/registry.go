package rpc

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry resolves (interface, version, method) to a Procedure.
type Registry struct {
	mu     sync.RWMutex
	ifaces map[string]map[int]map[string]Procedure
}

func NewRegistry() *Registry {
	return &Registry{ifaces: make(map[string]map[int]map[string]Procedure)}
}

// Register adds p under iface.version/method.
func (r *Registry) Register(iface string, version int, method string, p Procedure) error {
	iface = strings.TrimSpace(iface)
	method = strings.TrimSpace(method)
	if iface == "" || method == "" || p == nil {
		return fmt.Errorf("%w: iface=%q method=%q", ErrInvalidMethod, iface, method)
	}
	if strings.ContainsAny(iface, "./") || strings.Contains(method, "/") {
		return fmt.Errorf("%w: reserved characters in %s/%s", ErrInvalidMethod, iface, method)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	versions, ok := r.ifaces[iface]
	if !ok {
		versions = make(map[int]map[string]Procedure)
		r.ifaces[iface] = versions
	}
	methods, ok := versions[version]
	if !ok {
		methods = make(map[string]Procedure)
		versions[version] = methods
	}
	if _, ok := methods[method]; ok {
		return fmt.Errorf("%w: %s.%d/%s", ErrDuplicate, iface, version, method)
	}
	methods[method] = p
	return nil
}

// Lookup finds a procedure. A nil version resolves to the highest
// registered version of iface.
func (r *Registry) Lookup(iface string, version *int, method string) (Procedure, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions, ok := r.ifaces[iface]
	if !ok {
		return nil, false
	}
	var ver int
	if version != nil {
		ver = *version
	} else {
		latest, ok := latestVersion(versions)
		if !ok {
			return nil, false
		}
		ver = latest
	}
	p, ok := versions[ver][method]
	return p, ok
}

// InterfaceInfo describes one registered interface version.
type InterfaceInfo struct {
	Iface   string   `json:"iface"`
	Version int      `json:"version"`
	Methods []string `json:"methods"`
}

// Interfaces lists registrations in deterministic order.
func (r *Registry) Interfaces() []InterfaceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]InterfaceInfo, 0, len(r.ifaces))
	for iface, versions := range r.ifaces {
		for ver, methods := range versions {
			names := make([]string, 0, len(methods))
			for name := range methods {
				names = append(names, name)
			}
			sort.Strings(names)
			out = append(out, InterfaceInfo{Iface: iface, Version: ver, Methods: names})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Iface != out[j].Iface {
			return out[i].Iface < out[j].Iface
		}
		return out[i].Version < out[j].Version
	})
	return out
}

func latestVersion(versions map[int]map[string]Procedure) (int, bool) {
	found := false
	latest := 0
	for v := range versions {
		if !found || v > latest {
			latest = v
			found = true
		}
	}
	return latest, found
}
