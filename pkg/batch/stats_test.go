package batch

import (
	"encoding/json"
	"testing"
)

func TestTallyJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Stats
	}{
		{
			name: "all ok",
			raw:  `{"records":[{"_status":{"code":200,"text":"OK"}},{"_status":{"code":200,"text":"OK"}}]}`,
			want: Stats{Succeeded: 2},
		},
		{
			name: "mixed",
			raw:  `{"records":[{"_status":{"code":200}},{"_status":{"code":400,"text":"Bad image"}},{"_status":{"code":200,"text":"Skipped, already present"}}]}`,
			want: Stats{Succeeded: 1, Failed: 1, Skipped: 1},
		},
		{
			name: "alternate status key",
			raw:  `{"records":[{"status":{"code":500,"text":"error"}}]}`,
			want: Stats{Failed: 1},
		},
		{
			name: "record without status",
			raw:  `{"records":[{"_url":"https://x/y.jpg"}]}`,
			want: Stats{Succeeded: 1},
		},
		{
			name: "top-level status",
			raw:  `{"status":{"code":404,"text":"not found"}}`,
			want: Stats{Failed: 1},
		},
		{
			name: "unrelated body",
			raw:  `{"id":"abc"}`,
			want: Stats{},
		},
		{
			name: "not json",
			raw:  `<html>`,
			want: Stats{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TallyJSON(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("TallyJSON() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStats_Add(t *testing.T) {
	got := Stats{Succeeded: 1, Failed: 2}.Add(Stats{Succeeded: 3, Skipped: 1})
	want := Stats{Succeeded: 4, Failed: 2, Skipped: 1}
	if got != want {
		t.Errorf("Add() = %+v, want %+v", got, want)
	}
	if got.Total() != 7 {
		t.Errorf("Total() = %d, want 7", got.Total())
	}
}
