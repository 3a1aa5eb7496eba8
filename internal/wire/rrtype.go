package wire

import (
	"fmt"
	"strings"
)

// RRType is an IANA resource record type code.
type RRType uint16

// Record types with dedicated RDATA handling.
const (
	TypeA     RRType = 1
	TypeNS    RRType = 2
	TypeCNAME RRType = 5
	TypeAAAA  RRType = 28
)

// typeNames covers the IANA registry of record type mnemonics. Only
// A/NS/CNAME/AAAA get typed RDATA handling; the rest decode as opaque text
// but still round-trip by name.
var typeNames = map[RRType]string{
	// common types
	1: "A", 28: "AAAA", 18: "AFSDB", 42: "APL", 257: "CAA", 60: "CDNSKEY",
	59: "CDS", 37: "CERT", 5: "CNAME", 62: "CSYNC", 49: "DHCID", 32769: "DLV",
	39: "DNAME", 48: "DNSKEY", 43: "DS", 108: "EUI48", 109: "EUI64", 13: "HINFO",
	55: "HIP", 65: "HTTPS", 45: "IPSECKEY", 25: "KEY", 36: "KX", 29: "LOC", 15: "MX",
	35: "NAPTR", 2: "NS", 47: "NSEC", 50: "NSEC3", 51: "NSEC3PARAM", 61: "OPENPGPKEY",
	12: "PTR", 17: "RP", 46: "RRSIG", 24: "SIG", 53: "SMIMEA", 6: "SOA", 33: "SRV",
	44: "SSHFP", 64: "SVCB", 32768: "TA", 249: "TKEY", 52: "TLSA", 250: "TSIG", 16: "TXT",
	256: "URI", 63: "ZONEMD",

	// pseudo-RR
	255: "*", 252: "AXFR", 251: "IXFR", 41: "OPT",

	// obsolete types
	3: "MD", 4: "MF", 254: "MAILA", 7: "MB", 8: "MG", 9: "MR", 14: "MINFO", 253: "MAILB",
	11: "WKS", 32: "NB", 38: "A6", 30: "NXT", 19: "X25", 20: "ISDN",
	21: "RT", 22: "NSAP", 23: "NSAP-PTR", 26: "PX", 31: "EID", 34: "ATMA",
	40: "SINK", 27: "GPOS", 100: "UINFO", 101: "UID", 102: "GID", 103: "UNSPEC", 99: "SPF",
	56: "NINFO", 57: "RKEY", 58: "TALINK", 104: "NID", 105: "L32", 106: "L64", 107: "LP", 259: "DOA",
}

var typeCodes = map[string]RRType{}

func init() {
	for code, name := range typeNames {
		typeCodes[name] = code
	}
}

// String returns the IANA mnemonic, or TYPE<n> for unassigned codes.
func (t RRType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TYPE%d", uint16(t))
}

// Known reports whether the code has an assigned mnemonic. Unknown codes are
// still structurally valid; their RDATA is treated as opaque text.
func (t RRType) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// TypeFromString looks up a record type by its mnemonic, case-insensitively.
func TypeFromString(name string) (RRType, bool) {
	t, ok := typeCodes[strings.ToUpper(name)]
	return t, ok
}

// RCode is a DNS response code.
type RCode uint8

const (
	RCodeNoError        RCode = 0
	RCodeFormatError    RCode = 1
	RCodeServerFailure  RCode = 2
	RCodeNameError      RCode = 3 // NXDOMAIN
	RCodeNotImplemented RCode = 4
	RCodeRefused        RCode = 5
)

var rcodeNames = map[RCode]string{
	RCodeNoError:        "NOERROR",
	RCodeFormatError:    "FORMERR",
	RCodeServerFailure:  "SERVFAIL",
	RCodeNameError:      "NXDOMAIN",
	RCodeNotImplemented: "NOTIMP",
	RCodeRefused:        "REFUSED",
}

func (c RCode) String() string {
	if name, ok := rcodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("RCODE%d", uint8(c))
}
