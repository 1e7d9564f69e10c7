package httpx

import (
	"context"
	"errors"
	"net"
	"net/netip"

	"golang.org/x/net/idna"
)

// Resolver maps a host name to a numeric address.
type Resolver interface {
	Resolve(ctx context.Context, host string) (netip.Addr, error)
}

// NetResolver resolves through net.Resolver. Internationalized names are
// converted to their ASCII form first; numeric hosts are returned as-is.
type NetResolver struct {
	// Resolver defaults to net.DefaultResolver.
	Resolver *net.Resolver
	// PreferIPv6 picks an IPv6 address when both families are returned.
	PreferIPv6 bool
}

func (r NetResolver) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	if a, err := netip.ParseAddr(host); err == nil {
		return a.Unmap(), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return netip.Addr{}, err
	}
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	addrs, err := res.LookupNetIP(ctx, "ip", ascii)
	if err != nil {
		return netip.Addr{}, err
	}
	return pickAddr(addrs, r.PreferIPv6)
}

func pickAddr(addrs []netip.Addr, preferV6 bool) (netip.Addr, error) {
	if len(addrs) == 0 {
		return netip.Addr{}, errors.New("no addresses")
	}
	for _, a := range addrs {
		a = a.Unmap()
		if a.Is6() == preferV6 {
			return a, nil
		}
	}
	return addrs[0].Unmap(), nil
}
