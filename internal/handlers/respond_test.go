package handlers_test

import "encoding/json"

func decodeJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
