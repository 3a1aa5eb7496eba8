package config

import (
	"fmt"
	"net"
	"os"
	"sort"

	"go.yaml.in/yaml/v3"

	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/wire"
)

// rootServers is the IANA root server list
// (https://www.iana.org/domains/root/servers). These seed the cache so
// resolution always has a delegation point to fall back to.
var rootServers = map[string]string{
	"a.root-servers.net": "198.41.0.4",
	"b.root-servers.net": "170.247.170.2",
	"c.root-servers.net": "192.33.4.12",
	"d.root-servers.net": "199.7.91.13",
	"e.root-servers.net": "192.203.230.10",
	"f.root-servers.net": "192.5.5.241",
	"g.root-servers.net": "192.112.36.4",
	"h.root-servers.net": "198.97.190.53",
	"i.root-servers.net": "192.36.148.17",
	"j.root-servers.net": "192.58.128.30",
	"k.root-servers.net": "193.0.14.129",
	"l.root-servers.net": "199.7.83.42",
	"m.root-servers.net": "202.12.27.33",
}

// DefaultRootHints returns never-expiring seed records for the IANA root
// servers: NS records at the root and at root-servers.net pointing to each
// server, plus an A record per server.
func DefaultRootHints() []*wire.Record {
	return hintRecords(rootServers, true)
}

// LoadRootHints reads a YAML mapping of server name to IPv4 address and
// builds the same hint record shape as the defaults.
func LoadRootHints(path string) ([]*wire.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading root hints file: %w", err)
	}

	servers := make(map[string]string)
	if err := yaml.Unmarshal(data, &servers); err != nil {
		return nil, fmt.Errorf("parsing root hints file: %w", err)
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("root hints file %s lists no servers", path)
	}
	for name, addr := range servers {
		if ip := net.ParseIP(addr); ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("root hint %s has invalid IPv4 address %q", name, addr)
		}
	}
	return hintRecords(servers, false), nil
}

// hintRecords converts a server map into seed records. A stable order keeps
// startup logs and tests deterministic. The nsGroup flag additionally
// attaches NS records at root-servers.net, matching the published zone.
func hintRecords(servers map[string]string, nsGroup bool) []*wire.Record {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	var records []*wire.Record
	for _, name := range names {
		records = append(records, wire.NewRecord(wire.TypeNS, "", name, -1))
		if nsGroup {
			records = append(records, wire.NewRecord(wire.TypeNS, "root-servers.net", name, -1))
		}
		records = append(records, wire.NewRecord(wire.TypeA, name, servers[name], -1))
	}
	return records
}
