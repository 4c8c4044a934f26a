package command

import (
	"encoding/json"

	"neolink-go/errcode"
	"neolink-go/types"
)

// DecodeCommand parses one record. The record must be a JSON object with
// a string mode; data, when present, must be a string or null.
func DecodeCommand(rec string) (types.Command, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rec), &m); err != nil {
		return types.Command{}, errcode.Wrap(errcode.InvalidRecord, "decode", err)
	}
	raw, ok := m["mode"]
	if !ok {
		return types.Command{}, &errcode.E{C: errcode.MissingMode, Op: "decode"}
	}
	var mode string
	if err := json.Unmarshal(raw, &mode); err != nil {
		return types.Command{}, &errcode.E{C: errcode.MissingMode, Op: "decode", Msg: "mode is not a string"}
	}
	cmd := types.Command{Mode: types.Mode(mode)}
	if raw, ok := m["data"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &cmd.Data); err != nil {
			return types.Command{}, &errcode.E{C: errcode.InvalidRecord, Op: "decode", Msg: "data is not a string"}
		}
	}
	return cmd, nil
}
