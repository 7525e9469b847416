package protocol

import (
	"encoding/json"
	"testing"
)

func TestParse_Reply(t *testing.T) {
	data := []byte(`{"id":7,"status":"success","type":"response","result":{"ledger_index":100}}`)

	msg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !msg.HasID || msg.ID != "7" {
		t.Errorf("ID = %q (HasID=%v), want \"7\"", msg.ID, msg.HasID)
	}
	if msg.Type != "response" {
		t.Errorf("Type = %q, want response", msg.Type)
	}
	if msg.IsError() {
		t.Error("IsError = true for success reply")
	}
	if string(msg.Raw) != string(data) {
		t.Error("Raw does not match input frame")
	}
}

func TestParse_ErrorReply(t *testing.T) {
	msg, err := Parse([]byte(`{"id":"req-3","status":"error","error":"unknownCmd","error_message":"unknown command"}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !msg.IsError() {
		t.Error("IsError = false for error reply")
	}
	if msg.ID != "req-3" {
		t.Errorf("ID = %q, want req-3", msg.ID)
	}
	if msg.ErrorCode != "unknownCmd" || msg.ErrorMessage != "unknown command" {
		t.Errorf("error fields = %q/%q", msg.ErrorCode, msg.ErrorMessage)
	}
}

func TestParse_PushMessage(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"ledgerClosed","ledger_index":200,"txn_count":5}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if msg.HasID {
		t.Errorf("HasID = true for push message, ID = %q", msg.ID)
	}
	if msg.Type != "ledgerClosed" {
		t.Errorf("Type = %q, want ledgerClosed", msg.Type)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"truncated", `{"id":1,`},
		{"array", `[1,2,3]`},
		{"bare string", `"hello"`},
		{"empty", ``},
		{"binary garbage", "\x00\x01\x02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Errorf("Parse(%q) expected error", tt.data)
			}
		})
	}
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		wantID string
		wantOK bool
	}{
		{"integer id", `{"id":42,"command":"ping"}`, "42", true},
		{"string id", `{"id":"abc","command":"ping"}`, "abc", true},
		{"no id", `{"command":"ping"}`, "", false},
		{"null id", `{"id":null}`, "", false},
		{"empty string id", `{"id":""}`, "", false},
		{"boolean id", `{"id":true}`, "", false},
		{"object id", `{"id":{"nested":1}}`, "", false},
		{"array id", `{"id":[1]}`, "", false},
		{"malformed", `{"id":`, "", false},
		{"large number", `{"id":9007199254740993}`, "9007199254740993", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ExtractID([]byte(tt.data))
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("ExtractID = (%q, %v), want (%q, %v)", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestBuildRequest(t *testing.T) {
	data, err := BuildRequest(3, "account_info", map[string]any{
		"account": "rExample",
	})
	if err != nil {
		t.Fatalf("BuildRequest failed: %v", err)
	}

	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if frame["id"] != float64(3) {
		t.Errorf("id = %v, want 3", frame["id"])
	}
	if frame["command"] != "account_info" {
		t.Errorf("command = %v, want account_info", frame["command"])
	}
	if frame["account"] != "rExample" {
		t.Errorf("account = %v, want rExample", frame["account"])
	}
}

func TestBuildRequest_OverwritesReservedFields(t *testing.T) {
	data, err := BuildRequest(9, "ping", map[string]any{
		"id":      "caller-supplied",
		"command": "not-ping",
	})
	if err != nil {
		t.Fatalf("BuildRequest failed: %v", err)
	}

	id, ok := ExtractID(data)
	if !ok || id != "9" {
		t.Errorf("id = %q, want \"9\"", id)
	}

	var frame map[string]any
	json.Unmarshal(data, &frame)
	if frame["command"] != "ping" {
		t.Errorf("command = %v, want ping", frame["command"])
	}
}

func TestFormatID_MatchesInboundCanonicalForm(t *testing.T) {
	id, ok := ExtractID([]byte(`{"id":15}`))
	if !ok {
		t.Fatal("ExtractID failed")
	}
	if FormatID(15) != id {
		t.Errorf("FormatID(15) = %q, inbound canonical = %q", FormatID(15), id)
	}
}
