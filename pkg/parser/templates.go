package parser

import (
	"fmt"
	"strings"

	"github.com/sirikothe/gotextfsm"

	"github.com/newtron-network/netverify/pkg/util"
	"github.com/newtron-network/netverify/pkg/vendor"
)

// Template values use the record field names directly: address, mac,
// port, vid, network, nexthop_ip, nexthop_if, protocol, direct, interface,
// status. Empty values are dropped from the record.

var templateCiscoARP = `Value Required address (\d+\.\d+\.\d+\.\d+)
Value Required mac ([0-9a-fA-F]{4}\.[0-9a-fA-F]{4}\.[0-9a-fA-F]{4})
Value port (\S+)

Start
  ^Internet\s+${address}\s+\S+\s+${mac}\s+\S+\s+${port} -> Record
  ^Internet\s+${address}\s+\S+\s+${mac} -> Record`

var templateCiscoMAC = `Value Required vid (\d+)
Value Required mac ([0-9a-fA-F]{4}\.[0-9a-fA-F]{4}\.[0-9a-fA-F]{4})
Value Required port (\S+)

Start
  ^\s*${vid}\s+${mac}\s+\S+\s+${port} -> Record`

var templateCiscoRoute = `Value protocol ([A-Z][a-z]?)
Value Required network (\d+\.\d+\.\d+\.\d+/\d+)
Value nexthop_ip (\d+\.\d+\.\d+\.\d+)
Value nexthop_if ([A-Za-z]\S*)
Value direct (directly connected)

Start
  ^${protocol}\*?(?:\s+[A-Z0-9]{1,2})?\s+${network}\s+is\s+${direct},\s+${nexthop_if} -> Record
  ^${protocol}\*?(?:\s+[A-Z0-9]{1,2})?\s+${network}\s+\[\S+\]\s+via\s+${nexthop_ip},\s+[\d:wdhm]+,\s+${nexthop_if} -> Record
  ^${protocol}\*?(?:\s+[A-Z0-9]{1,2})?\s+${network}\s+\[\S+\]\s+via\s+${nexthop_ip},\s+${nexthop_if} -> Record
  ^${protocol}\*?(?:\s+[A-Z0-9]{1,2})?\s+${network}\s+\[\S+\]\s+via\s+${nexthop_ip} -> Record`

var templateCiscoInterfaces = `Value Required interface (\S+)
Value address (\S+)
Value status (up|down|administratively down|deleted)
Value protocol (up|down)

Start
  ^${interface}\s+${address}\s+\S+\s+\S+\s+${status}\s+${protocol} -> Record`

var templateJuniperARP = `Value Required mac ([0-9a-fA-F]{2}(?::[0-9a-fA-F]{2}){5})
Value Required address (\d+\.\d+\.\d+\.\d+)
Value port (\S+)

Start
  ^${mac}\s+${address}\s+${port} -> Record`

var templateJuniperMAC = `Value Required vid (\S+)
Value Required mac ([0-9a-fA-F]{2}(?::[0-9a-fA-F]{2}){5})
Value Required port ([a-z]+-\S+)

Start
  ^\s*${vid}\s+${mac}\s+\S+\s+(?:\S+\s+)?${port} -> Record`

var templateJuniperInterfaces = `Value Required interface ([a-z]\S*)
Value status (up|down)
Value protocol (up|down)
Value address (\d+\.\d+\.\d+\.\d+/\d+)

Start
  ^${interface}\s+${status}\s+${protocol}\s+inet\s+${address} -> Record
  ^${interface}\s+${status}\s+${protocol} -> Record`

var templateHuaweiARP = `Value Required address (\d+\.\d+\.\d+\.\d+)
Value Required mac ([0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4})
Value port (\S+)

Start
  ^${address}\s+${mac}\s+\d+\s+\S+\s+${port} -> Record
  ^${address}\s+${mac}\s+\S+\s+\S+\s+${port} -> Record
  ^${address}\s+${mac} -> Record`

var templateHuaweiMAC = `Value Required mac ([0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4})
Value Required vid (\d+)
Value Required port (\S+)

Start
  ^${mac}\s+${vid}/\S*\s+${port} -> Record
  ^${mac}\s+${vid}\s+\S+\s+\S+\s+${port} -> Record`

var templateHuaweiInterfaces = `Value Required interface (\S+)
Value address (\S+)
Value status (up|down|\*down|\^down)
Value protocol (up|down|up\(s\))

Start
  ^${interface}\s+${address}\s+${status}\s+${protocol} -> Record`

var templateArubaARP = `Value Required address (\d+\.\d+\.\d+\.\d+)
Value Required mac ([0-9a-fA-F]{6}-[0-9a-fA-F]{6})
Value port (\S+)

Start
  ^\s*${address}\s+${mac}\s+\S+\s+${port} -> Record`

var templateArubaMAC = `Value Required mac ([0-9a-fA-F]{6}-[0-9a-fA-F]{6})
Value Required port (\S+)
Value vid (\d+)

Start
  ^\s*${mac}\s+${port}\s+${vid} -> Record
  ^\s*${mac}\s+${port} -> Record`

var templateLinuxARP = `Value Required address (\d+\.\d+\.\d+\.\d+)
Value port (\S+)
Value Required mac ([0-9a-fA-F]{2}(?::[0-9a-fA-F]{2}){5})

Start
  ^${address}\s+dev\s+${port}\s+lladdr\s+${mac} -> Record`

var templateLinuxMAC = `Value Required mac ([0-9a-fA-F]{2}(?::[0-9a-fA-F]{2}){5})
Value Required port (\S+)
Value vid (\d+)

Start
  ^${mac}\s+dev\s+${port}\s+vlan\s+${vid} -> Record
  ^${mac}\s+dev\s+${port} -> Record`

var templates = map[vendor.Family]map[Table]string{
	vendor.Cisco: {
		TableARP:        templateCiscoARP,
		TableMAC:        templateCiscoMAC,
		TableRoute:      templateCiscoRoute,
		TableInterfaces: templateCiscoInterfaces,
	},
	vendor.Juniper: {
		TableARP:        templateJuniperARP,
		TableMAC:        templateJuniperMAC,
		TableInterfaces: templateJuniperInterfaces,
	},
	vendor.Huawei: {
		TableARP:        templateHuaweiARP,
		TableMAC:        templateHuaweiMAC,
		TableInterfaces: templateHuaweiInterfaces,
	},
	vendor.HPAruba: {
		TableARP: templateArubaARP,
		TableMAC: templateArubaMAC,
	},
	vendor.Linux: {
		TableARP: templateLinuxARP,
		TableMAC: templateLinuxMAC,
	},
}

// TemplateFor returns the TextFSM template of family for table, or "".
func TemplateFor(family vendor.Family, t Table) string {
	return templates[family][t]
}

// ParseTemplate runs a TextFSM template over text and converts every row
// to a Record. MAC values are normalized to colon form.
func ParseTemplate(tmpl, text string) ([]Record, error) {
	fsm := gotextfsm.TextFSM{}
	if err := fsm.ParseString(tmpl); err != nil {
		return nil, fmt.Errorf("%w: template: %v", util.ErrParseFailure, err)
	}

	out := gotextfsm.ParserOutput{}
	if err := out.ParseTextString(text, fsm, true); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrParseFailure, err)
	}

	recs := make([]Record, 0, len(out.Dict))
	for _, row := range out.Dict {
		rec := Record{}
		for k, v := range row {
			switch v := v.(type) {
			case string:
				if v != "" {
					rec[k] = v
				}
			case []string:
				if len(v) > 0 {
					rec[k] = strings.Join(v, " ")
				}
			}
		}
		normalize(rec)
		recs = append(recs, rec)
	}
	return recs, nil
}

func normalize(rec Record) {
	if mac, ok := rec["mac"].(string); ok {
		rec["mac"] = util.NormalizeMAC(mac)
	}
	if _, ok := rec["direct"]; ok {
		rec["direct"] = true
	}
}
