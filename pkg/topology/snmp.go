package topology

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/newtron-network/netverify/pkg/inventory"
	"github.com/newtron-network/netverify/pkg/util"
)

const (
	oidIPNetToMediaPhys  = ".1.3.6.1.2.1.4.22.1.2"   // ipNetToMediaPhysAddress
	oidIfName            = ".1.3.6.1.2.1.31.1.1.1.1" // ifName
	oidBasePortIfIndex   = ".1.3.6.1.2.1.17.1.4.1.2" // dot1dBasePortIfIndex
	oidDot1dTpFdbPort    = ".1.3.6.1.2.1.17.4.3.1.2" // dot1dTpFdbPort
	defaultSNMPPort      = 161
	defaultSNMPTimeout   = 5 * time.Second
	defaultSNMPRetries   = 1
	defaultMaxRepetition = 25
)

// SNMPSource collects ipNetToMediaTable and dot1dTpFdbTable over SNMP v2c
// with the device's community.
type SNMPSource struct {
	Port    uint16
	Timeout time.Duration
	Retries int
}

func (s *SNMPSource) Name() string { return "snmp" }

// Collect walks the ARP and bridge forwarding tables of dev.
func (s *SNMPSource) Collect(ctx context.Context, dev *inventory.Device) (*Observation, error) {
	obs := NewObservation(dev, s.Name())
	if dev.SNMPCommunity == "" {
		return obs, util.NewDeviceError(dev.Name, util.KindConnect, "snmp", fmt.Errorf("no community configured"))
	}

	sn := s.client(ctx, dev)
	if err := sn.Connect(); err != nil {
		return obs, util.NewDeviceError(dev.Name, util.KindConnect, "snmp", err)
	}
	defer sn.Conn.Close()

	ifNames := make(map[int]string)
	if err := sn.BulkWalk(oidIfName, func(pdu gosnmp.SnmpPDU) error {
		ifNames[lastIndex(pdu.Name)] = valueString(pdu.Value)
		return nil
	}); err != nil {
		util.WithDevice(dev.Name).WithError(err).Debugf("ifName walk failed")
	}

	if err := sn.BulkWalk(oidIPNetToMediaPhys, func(pdu gosnmp.SnmpPDU) error {
		ifIndex, addr, ok := parseNetToMediaIndex(pdu.Name)
		if !ok {
			return nil
		}
		mac := macFromOctets(pdu.Value)
		obs.AddARP(addr, mac, ifNames[ifIndex])
		return nil
	}); err != nil {
		return obs, snmpError(dev, err)
	}

	portIf := make(map[int]int)
	if err := sn.BulkWalk(oidBasePortIfIndex, func(pdu gosnmp.SnmpPDU) error {
		portIf[lastIndex(pdu.Name)] = int(gosnmp.ToBigInt(pdu.Value).Int64())
		return nil
	}); err != nil {
		util.WithDevice(dev.Name).WithError(err).Debugf("dot1dBasePortIfIndex walk failed")
	}

	if err := sn.BulkWalk(oidDot1dTpFdbPort, func(pdu gosnmp.SnmpPDU) error {
		mac, ok := parseFdbIndex(pdu.Name)
		if !ok {
			return nil
		}
		port := int(gosnmp.ToBigInt(pdu.Value).Int64())
		if port <= 0 {
			return nil
		}
		obs.AddPort(mac, bridgePortName(port, portIf, ifNames))
		return nil
	}); err != nil {
		return obs, snmpError(dev, err)
	}
	return obs, nil
}

func (s *SNMPSource) client(ctx context.Context, dev *inventory.Device) *gosnmp.GoSNMP {
	port, timeout, retries := s.Port, s.Timeout, s.Retries
	if port == 0 {
		port = defaultSNMPPort
	}
	if timeout <= 0 {
		timeout = defaultSNMPTimeout
	}
	if retries <= 0 {
		retries = defaultSNMPRetries
	}
	return &gosnmp.GoSNMP{
		Context:        ctx,
		Target:         dev.Address,
		Port:           port,
		Community:      dev.SNMPCommunity,
		Version:        gosnmp.Version2c,
		Timeout:        timeout,
		Retries:        retries,
		MaxOids:        gosnmp.MaxOids,
		MaxRepetitions: defaultMaxRepetition,
	}
}

func snmpError(dev *inventory.Device, err error) error {
	kind := util.KindConnect
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		kind = util.KindTimeout
	}
	return util.NewDeviceError(dev.Name, kind, "snmp", err)
}

// parseNetToMediaIndex splits an ipNetToMediaTable instance OID, whose index
// is ifIndex.a.b.c.d.
func parseNetToMediaIndex(oid string) (int, string, bool) {
	parts := strings.Split(strings.TrimPrefix(oid, "."), ".")
	if len(parts) < 5 {
		return 0, "", false
	}
	n := len(parts)
	ifIndex, err := strconv.Atoi(parts[n-5])
	if err != nil {
		return 0, "", false
	}
	addr := strings.Join(parts[n-4:], ".")
	if net.ParseIP(addr).To4() == nil {
		return 0, "", false
	}
	return ifIndex, addr, true
}

// parseFdbIndex decodes the MAC from a dot1dTpFdbTable instance OID, whose
// index is the six MAC octets.
func parseFdbIndex(oid string) (string, bool) {
	parts := strings.Split(oid, ".")
	if len(parts) < 6 {
		return "", false
	}
	octets := make([]byte, 6)
	for i, p := range parts[len(parts)-6:] {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 255 {
			return "", false
		}
		octets[i] = byte(v)
	}
	return net.HardwareAddr(octets).String(), true
}

func macFromOctets(v interface{}) string {
	b, ok := v.([]byte)
	if !ok || len(b) != 6 {
		return ""
	}
	return net.HardwareAddr(b).String()
}

func bridgePortName(port int, portIf map[int]int, ifNames map[int]string) string {
	if ifIndex, ok := portIf[port]; ok {
		if name := ifNames[ifIndex]; name != "" {
			return name
		}
		return "ifIndex" + strconv.Itoa(ifIndex)
	}
	return "bridgePort" + strconv.Itoa(port)
}

func lastIndex(oid string) int {
	i := strings.LastIndex(oid, ".")
	if i < 0 {
		return 0
	}
	n, _ := strconv.Atoi(oid[i+1:])
	return n
}

func valueString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}
