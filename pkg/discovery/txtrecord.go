package discovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mled-io/mled-go/pkg/transport"
	"github.com/mled-io/mled-go/pkg/wire"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeControllerTXT creates the TXT records of a controller.
func EncodeControllerTXT(info *ControllerInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyProtocol: info.Protocol.String(),
	}
	if info.Path != "" && info.Path != transport.DefaultPath {
		txt[TXTKeyPath] = info.Path
	}
	if info.Name != "" {
		txt[TXTKeyName] = info.Name
	}
	if info.Version != "" {
		txt[TXTKeyVersion] = info.Version
	}
	return txt
}

// DecodeControllerTXT parses the TXT records of a controller.
func DecodeControllerTXT(txt TXTRecordMap) (*ControllerInfo, error) {
	p, ok := txt[TXTKeyProtocol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyProtocol)
	}
	proto, err := wire.ParseProtocol(p)
	if err != nil {
		return nil, err
	}

	info := &ControllerInfo{
		Protocol: proto,
		Path:     txt[TXTKeyPath],
		Name:     txt[TXTKeyName],
		Version:  txt[TXTKeyVersion],
	}
	if info.Path == "" {
		info.Path = transport.DefaultPath
	}
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings. A bare key maps to "".
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" || len(name) > MaxInstanceNameLen {
		return fmt.Errorf("%w: %q", ErrInstanceName, name)
	}
	return nil
}
