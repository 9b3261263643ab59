package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records for a bridge.
func EncodeTXT(info *BridgeInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	txt[TXTKeySensors] = strings.Join(info.Sensors, ",")
	txt[TXTKeyPrefix] = info.Prefix
	txt[TXTKeyBroker] = info.Broker

	if info.Version != "" {
		txt[TXTKeyVersion] = info.Version
	}
	return txt
}

// DecodeTXT parses bridge TXT records. The sensors and broker keys are
// required; an empty prefix is allowed.
func DecodeTXT(txt TXTRecordMap) (*BridgeInfo, error) {
	info := &BridgeInfo{}

	sensors, ok := txt[TXTKeySensors]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeySensors)
	}
	for _, s := range strings.Split(sensors, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		info.Sensors = append(info.Sensors, s)
	}
	if len(info.Sensors) == 0 {
		return nil, fmt.Errorf("%w: empty sensor list", ErrInvalidTXTRecord)
	}

	info.Broker, ok = txt[TXTKeyBroker]
	if !ok || info.Broker == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyBroker)
	}

	info.Prefix = txt[TXTKeyPrefix]
	info.Version = txt[TXTKeyVersion]
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateTXT checks every record against the DNS string limit.
func ValidateTXT(txt TXTRecordMap) error {
	for k, v := range txt {
		if len(k)+1+len(v) > MaxTXTRecordLen {
			return fmt.Errorf("%w: %s is %d bytes", ErrInvalidTXTRecord, k, len(k)+1+len(v))
		}
	}
	return nil
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
