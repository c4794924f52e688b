package rules

import "encoding/json"

func unmarshalRule(raw []byte, dest any) error {
	return json.Unmarshal(raw, dest)
}
