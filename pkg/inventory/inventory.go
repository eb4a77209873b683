// Package inventory loads the list of managed devices.
package inventory

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/netverify/pkg/util"
)

// Device is the identity and credentials of one managed device. Engines hold
// *Device references and never modify them.
type Device struct {
	Name          string   `yaml:"name" json:"name"`
	Address       string   `yaml:"address" json:"address"`
	Vendor        string   `yaml:"vendor" json:"vendor"`
	Transport     string   `yaml:"transport,omitempty" json:"transport,omitempty"`
	Port          int      `yaml:"port,omitempty" json:"port,omitempty"`
	Username      string   `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string   `yaml:"password,omitempty" json:"password,omitempty"`
	Secret        string   `yaml:"secret,omitempty" json:"secret,omitempty"`
	Commands      []string `yaml:"commands,omitempty" json:"commands,omitempty"`
	SNMPCommunity string   `yaml:"snmp_community,omitempty" json:"snmp_community,omitempty"`
}

// String returns "name (address)".
func (d *Device) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Address)
}

// file is the on-disk layout. Defaults fill empty per-device fields.
type file struct {
	Defaults Device    `yaml:"defaults" json:"defaults"`
	Devices  []*Device `yaml:"devices" json:"devices"`
}

// Inventory is an ordered, validated device list with lookup indexes.
type Inventory struct {
	Devices []*Device

	byName    map[string]*Device
	byAddress map[string]*Device
}

// Load reads an inventory file. The format is chosen by extension: .json is
// JSON, anything else is YAML.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory file: %w", err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	return Parse(data, format)
}

// Parse decodes and validates inventory data in the given format
// ("yaml" or "json").
func Parse(data []byte, format string) (*Inventory, error) {
	var f file
	switch format {
	case "json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing inventory JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing inventory YAML: %w", err)
		}
	}

	for _, d := range f.Devices {
		if d != nil {
			applyDefaults(d, &f.Defaults)
		}
	}

	if err := validate(f.Devices); err != nil {
		return nil, fmt.Errorf("validating inventory: %w", err)
	}
	return New(f.Devices), nil
}

// New indexes an already-validated device list.
func New(devices []*Device) *Inventory {
	inv := &Inventory{
		Devices:   devices,
		byName:    make(map[string]*Device, len(devices)),
		byAddress: make(map[string]*Device, len(devices)),
	}
	for _, d := range devices {
		inv.byName[d.Name] = d
		inv.byAddress[d.Address] = d
	}
	return inv
}

func applyDefaults(d, def *Device) {
	if d.Vendor == "" {
		d.Vendor = def.Vendor
	}
	if d.Transport == "" {
		d.Transport = def.Transport
	}
	if d.Transport == "" {
		d.Transport = "ssh"
	}
	d.Transport = strings.ToLower(d.Transport)
	if d.Port == 0 {
		d.Port = def.Port
	}
	if d.Username == "" {
		d.Username = def.Username
	}
	if d.Password == "" {
		d.Password = def.Password
	}
	if d.Secret == "" {
		d.Secret = def.Secret
	}
	if len(d.Commands) == 0 {
		d.Commands = def.Commands
	}
	if d.SNMPCommunity == "" {
		d.SNMPCommunity = def.SNMPCommunity
	}
}

func validate(devices []*Device) error {
	v := &util.ValidationBuilder{}
	v.Add(len(devices) > 0, "at least one device is required")

	names := map[string]bool{}
	for i, d := range devices {
		if d == nil {
			v.AddErrorf("device %d: empty entry", i)
			continue
		}
		label := d.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
			v.AddErrorf("device %s: name is required", label)
		} else if names[d.Name] {
			v.AddErrorf("device %s: duplicate name", label)
		}
		names[d.Name] = true

		if d.Address == "" {
			v.AddErrorf("device %s: address is required", label)
		} else if net.ParseIP(d.Address) == nil && strings.ContainsAny(d.Address, " /") {
			v.AddErrorf("device %s: invalid address %q", label, d.Address)
		}
		v.Add(d.Transport == "ssh" || d.Transport == "telnet",
			fmt.Sprintf("device %s: transport must be 'ssh' or 'telnet', got %q", label, d.Transport))
		v.Add(d.Port >= 0 && d.Port <= 65535,
			fmt.Sprintf("device %s: port %d out of range", label, d.Port))
	}
	return v.Build()
}

// ByName returns the device with the given name, or nil.
func (inv *Inventory) ByName(name string) *Device {
	return inv.byName[name]
}

// ByAddress returns the device managed at addr, or nil.
func (inv *Inventory) ByAddress(addr string) *Device {
	return inv.byAddress[addr]
}

// Select returns the named devices in inventory order. An empty names list
// selects every device. Unknown names are reported with util.ErrNotFound.
func (inv *Inventory) Select(names []string) ([]*Device, error) {
	if len(names) == 0 {
		return inv.Devices, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if inv.byName[n] == nil {
			return nil, fmt.Errorf("device %q: %w", n, util.ErrNotFound)
		}
		want[n] = true
	}
	var out []*Device
	for _, d := range inv.Devices {
		if want[d.Name] {
			out = append(out, d)
		}
	}
	return out, nil
}
