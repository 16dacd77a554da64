package mqtt

import "strings"

// dataSuffix is the final topic segment used by tracking units when
// publishing location messages.
const dataSuffix = "data"

// AllUnitData returns the wildcard subscription pattern covering the data
// topic of every tracking unit: "+/data".
func AllUnitData() string {
	return "+/" + dataSuffix
}

// UnitData returns the data topic for a single tracking unit:
// "{imei}/data". Used by diagnostic tooling to inject test messages.
func UnitData(imei string) string {
	return imei + "/" + dataSuffix
}

// ParseDataTopic extracts the IMEI from a unit data topic.
//
// The expected shape is "{imei}/data": the first segment identifies the
// unit. Topics with fewer than two segments or an empty first segment
// are rejected. The suffix is not validated so deployments that remap
// the subscription pattern keep working.
func ParseDataTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[0] == "" {
		return "", false
	}
	return parts[0], true
}
