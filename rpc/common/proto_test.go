package common

import (
	"encoding/json"
	"testing"

	"github.com/feaforge/lrdb/lib/dberr"
)

func TestResponseErrorRoundTrip(t *testing.T) {
	cause := dberr.New(dberr.CodeCheckpointNotFound, "no batch named %q", "x")
	resp := NewRestoreResponse(cause)

	if resp.Ok {
		t.Errorf("error response must not be Ok")
	}

	rebuilt := resp.ResponseError()
	if rebuilt == nil {
		t.Fatalf("expected an error to be rebuilt")
	}
	if !dberr.Is(rebuilt, dberr.CodeCheckpointNotFound) {
		t.Errorf("error code lost over the wire: got %v", dberr.CodeOf(rebuilt))
	}
}

func TestResponseErrorNil(t *testing.T) {
	resp := NewRestoreResponse(nil)
	if !resp.Ok {
		t.Errorf("success response must be Ok")
	}
	if err := resp.ResponseError(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestResponseErrorDefaultsToInternal(t *testing.T) {
	// A response carrying only an error string (e.g. from an older or
	// foreign peer) still yields a typed error.
	resp := &Message{MsgType: MsgTError, Err: "something broke"}
	if !dberr.Is(resp.ResponseError(), dberr.CodeInternal) {
		t.Errorf("expected Internal for a code-less error")
	}
}

func TestRequestFactories(t *testing.T) {
	login := NewLoginRequest("analyst", "pw")
	if login.MsgType != MsgTLogin || login.Name != "analyst" || string(login.Payload) != "pw" {
		t.Errorf("unexpected login request: %+v", login)
	}

	ingest := NewIngestRequest("tok", "results", "run-001", []byte("[]"))
	if ingest.Token != "tok" || ingest.Database != "results" || ingest.Batch != "run-001" {
		t.Errorf("unexpected ingest request: %+v", ingest)
	}

	fetch := NewFetchColumnRequest("tok", "results", "run-001", "stress")
	if fetch.Column != "stress" || fetch.Batch != "run-001" {
		t.Errorf("unexpected fetch request: %+v", fetch)
	}

	restore := NewRestoreRequest("tok", "results", "run-001")
	if restore.Batch != "run-001" {
		t.Errorf("unexpected restore request: %+v", restore)
	}
}

func TestMessageTypeJSON(t *testing.T) {
	types := []MessageType{
		MsgTSuccess, MsgTError, MsgTPing, MsgTLogin, MsgTLogout,
		MsgTListDatabases, MsgTSchema, MsgTCatalog, MsgTInfo,
		MsgTIngest, MsgTRestore, MsgTCheck, MsgTRemoveDatabase,
		MsgTFetchColumn, MsgTQuery,
	}
	for _, typ := range types {
		data, err := json.Marshal(typ)
		if err != nil {
			t.Fatalf("marshal %v: %v", typ, err)
		}

		var decoded MessageType
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if decoded != typ {
			t.Errorf("message type %v changed over JSON to %v", typ, decoded)
		}
	}

	var decoded MessageType
	if err := json.Unmarshal([]byte(`"teleport"`), &decoded); err == nil {
		t.Errorf("expected unknown message type name to be rejected")
	}
}
