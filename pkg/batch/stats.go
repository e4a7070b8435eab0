package batch

import (
	"encoding/json"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Stats counts per-record outcomes of a batch run.
type Stats struct {
	Succeeded int
	Failed    int
	Skipped   int
}

// Total returns the number of records counted.
func (s Stats) Total() int {
	return s.Succeeded + s.Failed + s.Skipped
}

// Add returns the sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Succeeded: s.Succeeded + o.Succeeded,
		Failed:    s.Failed + o.Failed,
		Skipped:   s.Skipped + o.Skipped,
	}
}

type recordStatus struct {
	Code int    `json:"code"`
	Text string `json:"text"`
}

type statusEnvelope struct {
	Records []struct {
		Status    *recordStatus `json:"_status"`
		AltStatus *recordStatus `json:"status"`
	} `json:"records"`
	Status *recordStatus `json:"status"`
}

// TallyJSON counts the outcome of every record in a service reply of the
// form {"records": [{"_status": {"code": 200, "text": "OK"}}, ...]}.
// Records carrying "status" instead of "_status" are read too. A reply with
// no records but a top-level status counts as one record. Anything else
// yields zero Stats.
func TallyJSON(raw json.RawMessage) Stats {
	var env statusEnvelope
	if len(raw) == 0 || jsonAPI.Unmarshal(raw, &env) != nil {
		return Stats{}
	}

	var stats Stats
	if len(env.Records) == 0 {
		if env.Status != nil {
			stats = stats.Add(classify(env.Status))
		}
		return stats
	}

	for _, rec := range env.Records {
		status := rec.Status
		if status == nil {
			status = rec.AltStatus
		}
		stats = stats.Add(classify(status))
	}
	return stats
}

func classify(status *recordStatus) Stats {
	switch {
	case status == nil:
		return Stats{Succeeded: 1}
	case strings.Contains(strings.ToLower(status.Text), "skip"):
		return Stats{Skipped: 1}
	case status.Code >= 400:
		return Stats{Failed: 1}
	default:
		return Stats{Succeeded: 1}
	}
}

// defaultTally reads JSON replies with TallyJSON and counts nothing for
// other result types.
func defaultTally(result any) Stats {
	switch v := result.(type) {
	case json.RawMessage:
		return TallyJSON(v)
	case []byte:
		return TallyJSON(v)
	default:
		return Stats{}
	}
}
