// Package netcidr carves IPv4 address blocks into fixed-size subnets.
//
// It works like Terraform's cidrsubnet: subnet n of a parent block is the n-th
// consecutive block of the requested prefix length, counted from the parent's
// network address.
package netcidr

import (
	"fmt"
	"net/netip"
)

// InvalidCIDRError reports an address block that is not a usable IPv4 CIDR.
type InvalidCIDRError struct {
	CIDR   string
	Reason string
}

func (e *InvalidCIDRError) Error() string {
	return fmt.Sprintf("invalid CIDR %q: %s", e.CIDR, e.Reason)
}

// AddressSpaceExhaustedError reports a parent block too small to hold the
// requested number of subnets.
type AddressSpaceExhaustedError struct {
	CIDR      string
	NewPrefix int
	Required  int
	Available int
}

func (e *AddressSpaceExhaustedError) Error() string {
	return fmt.Sprintf("address block %s cannot hold %d non-overlapping /%d subnets (room for %d)",
		e.CIDR, e.Required, e.NewPrefix, e.Available)
}

// Parse parses an IPv4 CIDR block. The address must be the network address of
// the block (no host bits set).
func Parse(cidr string) (netip.Prefix, error) {
	if cidr == "" {
		return netip.Prefix{}, &InvalidCIDRError{CIDR: cidr, Reason: "empty"}
	}

	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return netip.Prefix{}, &InvalidCIDRError{CIDR: cidr, Reason: err.Error()}
	}
	if !prefix.Addr().Is4() {
		return netip.Prefix{}, &InvalidCIDRError{CIDR: cidr, Reason: "only IPv4 blocks are supported"}
	}
	if prefix.Masked() != prefix {
		return netip.Prefix{}, &InvalidCIDRError{
			CIDR:   cidr,
			Reason: fmt.Sprintf("host bits set, network address is %s", prefix.Masked()),
		}
	}

	return prefix, nil
}

// Capacity returns how many /newPrefix subnets fit in parent. It returns 0 if
// newPrefix is not longer than the parent prefix.
func Capacity(parent netip.Prefix, newPrefix int) int {
	extra := newPrefix - parent.Bits()
	if extra <= 0 || newPrefix > 32 {
		return 0
	}
	if extra >= 31 {
		return 1 << 30
	}
	return 1 << extra
}

// Subnet returns subnet number netnum of size /newPrefix inside parent.
func Subnet(parent netip.Prefix, newPrefix, netnum int) (netip.Prefix, error) {
	available := Capacity(parent, newPrefix)
	if netnum < 0 || netnum >= available {
		return netip.Prefix{}, &AddressSpaceExhaustedError{
			CIDR:      parent.String(),
			NewPrefix: newPrefix,
			Required:  netnum + 1,
			Available: available,
		}
	}

	base := addrToUint32(parent.Masked().Addr())
	size := uint32(1) << (32 - newPrefix)
	// #nosec G115
	start := uint32ToAddr(base + uint32(netnum)*size)

	return netip.PrefixFrom(start, newPrefix), nil
}

// Split parses cidr and returns the first count consecutive /newPrefix subnets.
// Malformed input fails with *InvalidCIDRError before any arithmetic runs; a
// block that is too small fails with *AddressSpaceExhaustedError.
func Split(cidr string, newPrefix, count int) ([]netip.Prefix, error) {
	parent, err := Parse(cidr)
	if err != nil {
		return nil, err
	}

	if available := Capacity(parent, newPrefix); available < count {
		return nil, &AddressSpaceExhaustedError{
			CIDR:      cidr,
			NewPrefix: newPrefix,
			Required:  count,
			Available: available,
		}
	}

	subnets := make([]netip.Prefix, 0, count)
	for i := 0; i < count; i++ {
		subnet, err := Subnet(parent, newPrefix, i)
		if err != nil {
			return nil, err
		}
		subnets = append(subnets, subnet)
	}
	return subnets, nil
}

// Contains reports whether child lies entirely inside parent.
func Contains(parent, child netip.Prefix) bool {
	return parent.Bits() <= child.Bits() && parent.Contains(child.Addr())
}

// AddressCount returns the number of addresses in the block.
func AddressCount(p netip.Prefix) uint64 {
	return uint64(1) << (32 - p.Bits())
}

func addrToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func uint32ToAddr(v uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}
