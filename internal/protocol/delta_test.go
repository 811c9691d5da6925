// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"strings"
	"testing"
)

func TestDelta_MarshalSSE(t *testing.T) {
	d := BlockAppended("blk_01", "hello")

	frame, err := d.MarshalSSE()
	if err != nil {
		t.Fatalf("MarshalSSE() error = %v", err)
	}

	text := string(frame)
	if !strings.HasPrefix(text, "event: block-appended\n") {
		t.Errorf("frame missing event line: %q", text)
	}
	if !strings.Contains(text, `"blockId":"blk_01"`) {
		t.Errorf("frame missing blockId: %q", text)
	}
	if !strings.HasSuffix(text, "\n\n") {
		t.Errorf("frame missing blank separator: %q", text)
	}
}

func TestParseSSEData_RoundTrip(t *testing.T) {
	tests := []Delta{
		BlockStarted("blk_01", "tool_use", "read_file", "toolu_01"),
		BlockAppended("blk_01", "chunk"),
		BlockFinalized("blk_01"),
		UsageUpdated(12, 34),
		LifecycleStop("msg_01", "end_turn", 12, 34),
		Fault("boom", "transport"),
	}

	for _, want := range tests {
		t.Run(string(want.Type), func(t *testing.T) {
			frame, err := want.MarshalSSE()
			if err != nil {
				t.Fatalf("MarshalSSE() error = %v", err)
			}

			// Extract the data line from the frame.
			lines := strings.Split(strings.TrimSpace(string(frame)), "\n")
			data := strings.TrimPrefix(lines[len(lines)-1], "data: ")

			got, err := ParseSSEData([]byte(data))
			if err != nil {
				t.Fatalf("ParseSSEData() error = %v", err)
			}
			if got != want {
				t.Errorf("round trip = %+v, want %+v", got, want)
			}
		})
	}
}

func TestParseSSEData_RejectsUntaggedPayload(t *testing.T) {
	// A payload that only implies its kind by field presence must be
	// rejected, not inferred.
	_, err := ParseSSEData([]byte(`{"blockId":"blk_01","delta":"text"}`))
	if err == nil {
		t.Fatal("expected error for payload without type tag")
	}
}

func TestParseSSEData_MalformedJSON(t *testing.T) {
	_, err := ParseSSEData([]byte(`{nope`))
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
