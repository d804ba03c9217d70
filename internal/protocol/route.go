package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Route is the routing part of a call or event packet.
// Version is nil when the peer did not pin one.
type Route struct {
	Iface   string
	Version *int
	Member  string
}

// Ver returns a route version pointer for v.
func Ver(v int) *int {
	return &v
}

// Key composes the dynamic wire key.
func (r Route) Key() string {
	service := r.Iface
	if r.Version != nil {
		service += "." + strconv.Itoa(*r.Version)
	}
	return service + "/" + r.Member
}

func (r Route) String() string {
	return r.Key()
}

// ParseRoute splits a dynamic wire key. Versions are only recognised when
// withVersion is set (call packets); event keys carry none.
func ParseRoute(key string, withVersion bool) (Route, error) {
	service, member, ok := strings.Cut(key, "/")
	if !ok {
		return Route{}, fmt.Errorf("%w: %q", ErrMalformedRoute, key)
	}
	route := Route{Iface: service, Member: member}
	if !withVersion {
		return route, nil
	}
	iface, rawVer, hasVer := strings.Cut(service, ".")
	route.Iface = iface
	if !hasVer {
		return route, nil
	}
	ver, err := strconv.Atoi(rawVer)
	if err != nil {
		return Route{}, fmt.Errorf("%w: version %q", ErrMalformedRoute, rawVer)
	}
	route.Version = &ver
	return route, nil
}
