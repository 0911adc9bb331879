package protocol

import "encoding/json"

// Legacy v68 frame types still emitted by the contest service during the
// protocol migration. Each maps to the action carried on the normalized
// DATA envelope.
var legacyContestTypes = map[string]string{
	"CONTEST_UPDATED":     "updated",
	"CONTEST_ACTIVITY":    "activity",
	"LEADERBOARD_UPDATED": "leaderboard",
}

// legacyContestFrame is the old contest wire shape: the contest id rides at
// the top level and the payload key differs from the canonical "data".
type legacyContestFrame struct {
	Type      string          `json:"type"`
	ContestID string          `json:"contestId"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp"`
}

// normalizeLegacy maps recognized legacy frames onto the canonical envelope.
// The second return is false when the frame is already canonical.
func normalizeLegacy(env Envelope, data []byte) (Envelope, bool) {
	action, ok := legacyContestTypes[string(env.Type)]
	if !ok {
		return Envelope{}, false
	}

	var legacy legacyContestFrame
	if err := json.Unmarshal(data, &legacy); err != nil {
		return Envelope{}, false
	}

	out := Envelope{
		Type:      TypeData,
		Topic:     TopicContest,
		Action:    action,
		Data:      legacy.Payload,
		Timestamp: legacy.Timestamp,
	}
	if legacy.ContestID != "" {
		out.Params = map[string]any{"contestId": legacy.ContestID}
	}
	if out.Timestamp == "" {
		out.Timestamp = now()
	}
	return out, true
}
