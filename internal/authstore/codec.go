package authstore

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// credentialKnownKeys lists the JSON keys Credential itself understands;
// anything else round-trips through Extra untouched.
var credentialKnownKeys = map[string]bool{
	"type": true, "provider": true, "key": true, "email": true,
	"metadata": true, "expires": true, "oauth": true, "clientId": true,
}

var profileStatsKnownKeys = map[string]bool{
	"lastUsed": true, "cooldownUntil": true, "disabledUntil": true,
	"disabledReason": true, "errorCount": true, "failureCounts": true,
	"lastFailureAt": true, "modelStats": true,
}

var modelStatsKnownKeys = map[string]bool{
	"lastUsed": true, "cooldownUntil": true, "errorCount": true, "lastFailureAt": true,
}

// extraFields returns every top-level key of data not present in known,
// used to preserve forward-compatible fields across a read-modify-write.
func extraFields(data []byte, known map[string]bool) map[string]json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	var extra map[string]json.RawMessage
	for k, v := range raw {
		if known[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra
}

// mergeExtra writes every key in extra back onto data using raw byte-level
// JSON surgery, so fields this package doesn't model survive a round trip
// without ever being unmarshaled into a Go type.
func mergeExtra(data []byte, extra map[string]json.RawMessage) []byte {
	for k, v := range extra {
		merged, err := sjson.SetRawBytes(data, k, v)
		if err != nil {
			continue
		}
		data = merged
	}
	return data
}

type credentialAlias Credential

// UnmarshalJSON implements the tagged-union read side: unknown Type values
// are preserved verbatim in Unknown rather than rejected, and any field
// this struct does not model is preserved in Extra.
func (c *Credential) UnmarshalJSON(data []byte) error {
	var alias credentialAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*c = Credential(alias)
	if !c.KnownVariant() {
		c.Unknown = gjson.GetBytes(data, "type").String()
	}
	c.Extra = extraFields(data, credentialKnownKeys)
	return nil
}

// MarshalJSON writes the known fields, then merges Extra back in so a
// profile loaded from a newer schema version doesn't lose data on save.
func (c Credential) MarshalJSON() ([]byte, error) {
	alias := credentialAlias(c)
	data, err := json.Marshal(alias)
	if err != nil {
		return nil, err
	}
	return mergeExtra(data, c.Extra), nil
}

type profileUsageStatsAlias ProfileUsageStats

func (s *ProfileUsageStats) UnmarshalJSON(data []byte) error {
	var alias profileUsageStatsAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*s = ProfileUsageStats(alias)
	s.Extra = extraFields(data, profileStatsKnownKeys)
	return nil
}

func (s ProfileUsageStats) MarshalJSON() ([]byte, error) {
	alias := profileUsageStatsAlias(s)
	data, err := json.Marshal(alias)
	if err != nil {
		return nil, err
	}
	return mergeExtra(data, s.Extra), nil
}

type modelUsageStatsAlias ModelUsageStats

func (m *ModelUsageStats) UnmarshalJSON(data []byte) error {
	var alias modelUsageStatsAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*m = ModelUsageStats(alias)
	m.Extra = extraFields(data, modelStatsKnownKeys)
	return nil
}

func (m ModelUsageStats) MarshalJSON() ([]byte, error) {
	alias := modelUsageStatsAlias(m)
	data, err := json.Marshal(alias)
	if err != nil {
		return nil, err
	}
	return mergeExtra(data, m.Extra), nil
}
