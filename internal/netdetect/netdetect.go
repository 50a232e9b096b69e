// Package netdetect carries forward the teacher's network_utils.go CGNAT/VPN
// interface heuristic, adapted so config can use it to pick a default ICE
// transport policy instead of a TURN-forcing flag for a file transfer CLI.
package netdetect

import (
	"net"
	"strings"
)

// LooksLikeRestrictedNetwork reports whether the host appears to be behind
// a VPN, CGNAT, or similar restrictive network where direct peer-to-peer
// connectivity commonly fails and relaying through TURN is worth defaulting
// to. It inspects local interfaces only; it never makes a network call.
func LooksLikeRestrictedNetwork() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	_, cgnatBlock, _ := net.ParseCIDR("100.64.0.0/10")

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		name := strings.ToLower(iface.Name)
		if strings.Contains(name, "tun") ||
			strings.Contains(name, "tap") ||
			strings.Contains(name, "wg") ||
			strings.Contains(name, "ppp") ||
			strings.Contains(name, "warp") {
			return true
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip != nil && cgnatBlock.Contains(ip) {
				return true
			}
		}
	}

	return false
}
