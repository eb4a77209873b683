package parser

import (
	"errors"
	"testing"

	"github.com/newtron-network/netverify/pkg/util"
	"github.com/newtron-network/netverify/pkg/vendor"
)

func TestTableFor(t *testing.T) {
	tests := []struct {
		command string
		want    Table
	}{
		{"show ip arp", TableARP},
		{"display arp", TableARP},
		{"ip neigh show", TableARP},
		{"show mac address-table", TableMAC},
		{"display mac-address", TableMAC},
		{"bridge fdb show", TableMAC},
		{"show ip route", TableRoute},
		{"display ip routing-table", TableRoute},
		{"show ip interface brief", TableInterfaces},
		{"show interfaces terse", TableInterfaces},
		{"show running-config", ""},
		{"show ip route 10.0.0.1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			if got := TableFor(tt.command); got != tt.want {
				t.Errorf("TableFor(%q) = %q, want %q", tt.command, got, tt.want)
			}
		})
	}
}

func TestTemplatesCompile(t *testing.T) {
	for family, tables := range templates {
		for table, tmpl := range tables {
			if _, err := ParseTemplate(tmpl, ""); err != nil {
				t.Errorf("%s %s template: %v", family, table, err)
			}
		}
	}
}

func TestParse_NoParser(t *testing.T) {
	_, err := Parse(vendor.Cisco, "show clock", "12:00:00 UTC")
	if !errors.Is(err, util.ErrParseFailure) {
		t.Errorf("error = %v, want ErrParseFailure", err)
	}
}

func TestParse_NoRows(t *testing.T) {
	_, err := Parse(vendor.Cisco, "show ip arp", "% Invalid input detected at '^' marker.")
	if !errors.Is(err, util.ErrParseFailure) {
		t.Errorf("error = %v, want ErrParseFailure", err)
	}
}

func TestParse_ARP(t *testing.T) {
	tests := []struct {
		name    string
		family  vendor.Family
		command string
		text    string
		want    []Record
	}{
		{
			name:    "cisco",
			family:  vendor.Cisco,
			command: "show ip arp",
			text: `Protocol  Address          Age (min)  Hardware Addr   Type   Interface
Internet  10.1.12.1               -   0011.2233.4401  ARPA   GigabitEthernet0/1
Internet  10.1.12.2               5   0011.2233.4402  ARPA   GigabitEthernet0/1
Internet  10.1.12.9               0   Incomplete      ARPA`,
			want: []Record{
				{"address": "10.1.12.1", "mac": "00:11:22:33:44:01", "port": "GigabitEthernet0/1"},
				{"address": "10.1.12.2", "mac": "00:11:22:33:44:02", "port": "GigabitEthernet0/1"},
			},
		},
		{
			name:    "juniper",
			family:  vendor.Juniper,
			command: "show arp no-resolve",
			text: `MAC Address       Address         Interface     Flags
00:11:22:33:44:02 10.1.12.2       ge-0/0/1.0    none
Total entries: 1`,
			want: []Record{
				{"address": "10.1.12.2", "mac": "00:11:22:33:44:02", "port": "ge-0/0/1.0"},
			},
		},
		{
			name:    "huawei",
			family:  vendor.Huawei,
			command: "display arp",
			text: `IP ADDRESS      MAC ADDRESS     EXPIRE(M) TYPE        INTERFACE
10.1.12.1       0011-2233-4401            I -         GE0/0/1
10.1.12.2       0011-2233-4402  20        D-0         GE0/0/1`,
			want: []Record{
				{"address": "10.1.12.1", "mac": "00:11:22:33:44:01", "port": "GE0/0/1"},
				{"address": "10.1.12.2", "mac": "00:11:22:33:44:02", "port": "GE0/0/1"},
			},
		},
		{
			name:    "aruba",
			family:  vendor.HPAruba,
			command: "show arp",
			text: ` IP ARP table

  IP Address       MAC Address       Type    Port
  ---------------  ----------------- ------- ----
  10.1.12.2        001122-334402     dynamic 1`,
			want: []Record{
				{"address": "10.1.12.2", "mac": "00:11:22:33:44:02", "port": "1"},
			},
		},
		{
			name:    "linux",
			family:  vendor.Linux,
			command: "ip neigh show",
			text: `10.1.12.2 dev eth1 lladdr 00:11:22:33:44:02 REACHABLE
10.1.12.7 dev eth1  FAILED`,
			want: []Record{
				{"address": "10.1.12.2", "mac": "00:11:22:33:44:02", "port": "eth1"},
			},
		},
		{
			name:    "family without template",
			family:  vendor.Fortinet,
			command: "get system arp",
			text: `Address           Age(min)   Hardware Addr      Interface
10.1.12.2         0          00:11:22:33:44:02 port1`,
			want: []Record{
				{"address": "10.1.12.2", "mac": "00:11:22:33:44:02", "port": "port1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.family, tt.command, tt.text)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			assertRecords(t, got, tt.want)
		})
	}
}

func TestParse_MACTable(t *testing.T) {
	tests := []struct {
		name    string
		family  vendor.Family
		command string
		text    string
		want    []Record
	}{
		{
			name:    "cisco",
			family:  vendor.Cisco,
			command: "show mac address-table",
			text: `          Mac Address Table
-------------------------------------------
Vlan    Mac Address       Type        Ports
----    -----------       --------    -----
 All    0100.0ccc.cccc    STATIC      CPU
  10    0011.2233.4402    DYNAMIC     Gi0/1
  20    0011.2233.4403    DYNAMIC     Gi0/2`,
			want: []Record{
				{"mac": "00:11:22:33:44:02", "port": "Gi0/1", "vid": "10"},
				{"mac": "00:11:22:33:44:03", "port": "Gi0/2", "vid": "20"},
			},
		},
		{
			name:    "juniper",
			family:  vendor.Juniper,
			command: "show ethernet-switching table",
			text: `Ethernet-switching table: 1 entries, 1 learned
  VLAN              MAC address       Type         Age Interfaces
  default           00:11:22:33:44:02 Learn          0 ge-0/0/1.0`,
			want: []Record{
				{"mac": "00:11:22:33:44:02", "port": "ge-0/0/1.0", "vid": "default"},
			},
		},
		{
			name:    "huawei",
			family:  vendor.Huawei,
			command: "display mac-address",
			text: `MAC Address    VLAN/VSI/BD   Learned-From   Type
0011-2233-4402 10/-/-        GE0/0/1        dynamic`,
			want: []Record{
				{"mac": "00:11:22:33:44:02", "port": "GE0/0/1", "vid": "10"},
			},
		},
		{
			name:    "aruba",
			family:  vendor.HPAruba,
			command: "show mac-address",
			text: `  MAC Address   Port  VLAN
  ------------- ----- ----
  001122-334402 1     10`,
			want: []Record{
				{"mac": "00:11:22:33:44:02", "port": "1", "vid": "10"},
			},
		},
		{
			name:    "linux bridge",
			family:  vendor.Linux,
			command: "bridge fdb show",
			text: `00:11:22:33:44:02 dev eth1 vlan 10 master br0
00:11:22:33:44:03 dev eth2 master br0 permanent`,
			want: []Record{
				{"mac": "00:11:22:33:44:02", "port": "eth1", "vid": "10"},
				{"mac": "00:11:22:33:44:03", "port": "eth2"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.family, tt.command, tt.text)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			assertRecords(t, got, tt.want)
		})
	}
}

func TestParse_Routes(t *testing.T) {
	text := `Codes: C - connected, S - static, O - OSPF
Gateway of last resort is 10.1.12.2 to network 0.0.0.0

S*    0.0.0.0/0 [1/0] via 10.1.12.2
      10.0.0.0/8 is variably subnetted, 3 subnets, 2 masks
C        10.1.12.0/30 is directly connected, GigabitEthernet0/1
O        10.3.0.0/24 [110/2] via 10.1.12.2, 00:10:00, GigabitEthernet0/1
O IA     10.4.0.0/24 [110/3] via 10.1.12.2, 1w2d, GigabitEthernet0/1`

	got, err := Parse(vendor.Cisco, "show ip route", text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []Record{
		{"network": "0.0.0.0/0", "nexthop_ip": "10.1.12.2", "protocol": "S"},
		{"network": "10.1.12.0/30", "direct": true, "nexthop_if": "GigabitEthernet0/1", "protocol": "C"},
		{"network": "10.3.0.0/24", "nexthop_ip": "10.1.12.2", "nexthop_if": "GigabitEthernet0/1", "protocol": "O"},
		{"network": "10.4.0.0/24", "nexthop_ip": "10.1.12.2", "nexthop_if": "GigabitEthernet0/1", "protocol": "O"},
	}
	assertRecords(t, got, want)
}

func TestParse_Interfaces(t *testing.T) {
	text := `Interface              IP-Address      OK? Method Status                Protocol
GigabitEthernet0/1     10.1.12.1       YES manual up                    up
GigabitEthernet0/2     unassigned      YES unset  administratively down down
Vlan10                 10.10.0.1       YES manual up                    up`

	got, err := Parse(vendor.Cisco, "show ip interface brief", text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []Record{
		{"interface": "GigabitEthernet0/1", "address": "10.1.12.1", "status": "up", "protocol": "up"},
		{"interface": "GigabitEthernet0/2", "address": "unassigned", "status": "administratively down", "protocol": "down"},
		{"interface": "Vlan10", "address": "10.10.0.1", "status": "up", "protocol": "up"},
	}
	assertRecords(t, got, want)
}

func assertRecords(t *testing.T, got, want []Record) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d records %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Errorf("record %d = %v, want %v", i, got[i], want[i])
			continue
		}
		for k, v := range want[i] {
			if got[i][k] != v {
				t.Errorf("record %d [%s] = %v, want %v", i, k, got[i][k], v)
			}
		}
	}
}
