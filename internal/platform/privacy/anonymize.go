// Package privacy provides helpers for handling personally identifiable
// information before it leaves the system.
package privacy

import (
	"fmt"
	"net"
)

// AnonymizeIP truncates an IP address to remove the host-identifying portion.
// IPv4 addresses lose their last octet (masked to /24); IPv6 addresses keep
// only the /48 prefix. Returns "invalid" for unparseable addresses and
// "unknown" for empty input.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	// Service-originated entries carry a symbolic address, not a host.
	if ip == "internal" {
		return ip
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "invalid"
	}

	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.0", v4[0], v4[1], v4[2])
	}

	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x::",
		parsed[0], parsed[1],
		parsed[2], parsed[3],
		parsed[4], parsed[5])
}
