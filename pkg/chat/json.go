package chat

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"
)

// unmarshalJSON unmarshals JSON produced by a model into v. Models
// occasionally emit almost-JSON (trailing commas, unquoted keys); on a
// syntax error the data is run through jsonrepair once before retrying.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, err := jsonrepair.JSONRepair(string(data))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

// asJSONString passes strings through and marshals everything else.
func asJSONString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// hexString generates a random 16-character hexadecimal string.
func hexString() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
