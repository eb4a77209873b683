package diag

import (
	"strings"

	"github.com/newtron-network/netverify/pkg/util"
)

// Well-known virtual MAC ranges of first-hop redundancy protocols, in
// lowercase colon form.
var virtualMACs = []struct {
	prefix   string
	protocol string
}{
	{"00:00:0c:07:ac:", "HSRP"},
	{"00:00:0c:9f:f", "HSRPv2"},
	{"00:00:5e:00:01:", "VRRP"},
	{"00:00:5e:00:02:", "VRRPv6"},
	{"00:07:b4:00:", "GLBP"},
}

// VirtualProtocol returns the redundancy protocol whose virtual MAC range
// contains mac, or "".
func VirtualProtocol(mac string) string {
	mac = util.NormalizeMAC(mac)
	if mac == "" {
		return ""
	}
	for _, v := range virtualMACs {
		if strings.HasPrefix(mac, v.prefix) {
			return v.protocol
		}
	}
	return ""
}
