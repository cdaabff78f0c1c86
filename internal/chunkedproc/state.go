package chunkedproc

import "encoding/json"

func encodeState(s CheckpointState) ([]byte, error) {
	return json.Marshal(s)
}

func decodeState(raw []byte, s *CheckpointState) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, s)
}
