package connectivity

import "net"

// hasActiveLink reports whether the host has any interface that is up,
// running, and not loopback. This is the startup hint and the signal checked
// after a netlink event; actual reachability still requires a probe.
func hasActiveLink() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if iface.Flags&net.FlagRunning == 0 {
			continue
		}
		return true
	}
	return false
}
