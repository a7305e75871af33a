package common

import (
	"encoding/json"
	"fmt"

	"github.com/feaforge/lrdb/lib/dberr"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type" bson:"msg_type"`

	// Request fields
	Token    string `json:"token,omitempty" bson:"token,omitempty"`       // Session token, set on every request except Ping and Login
	Database string `json:"database,omitempty" bson:"database,omitempty"` // Target database name
	Batch    string `json:"batch,omitempty" bson:"batch,omitempty"`       // Used for: Ingest, FetchColumn, Restore
	Column   string `json:"column,omitempty" bson:"column,omitempty"`     // Used for: FetchColumn
	Name     string `json:"name,omitempty" bson:"name,omitempty"`         // Used for: Login (user name)

	// Payload carries the operation body: serialized rows for Ingest,
	// the query template for Query, raw file bytes for FetchColumn
	// responses, encoded snapshots/reports for the other responses.
	Payload []byte `json:"payload,omitempty" bson:"payload,omitempty"`

	// Response only fields
	Ok      bool   `json:"ok,omitempty" bson:"ok,omitempty"`
	ErrCode uint64 `json:"err_code,omitempty" bson:"err_code,omitempty"`
	Err     string `json:"err,omitempty" bson:"err,omitempty"` // Empty if no error, otherwise contains the error message
}

// setErr records an error in a response message, preserving its code so
// the client can rebuild the typed error.
func (m *Message) setErr(err error) *Message {
	if err != nil {
		m.ErrCode = uint64(dberr.CodeOf(err))
		m.Err = err.Error()
	}
	return m
}

// ResponseError rebuilds the typed error carried by a response, or nil.
func (m *Message) ResponseError() error {
	if m.Err == "" {
		return nil
	}
	code := dberr.Code(m.ErrCode)
	if code == 0 {
		code = dberr.CodeInternal
	}
	return dberr.New(code, "%s", m.Err)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewPingRequest creates a new Ping request
func NewPingRequest() *Message {
	return &Message{MsgType: MsgTPing}
}

// NewPingResponse creates a new Ping response
func NewPingResponse() *Message {
	return &Message{MsgType: MsgTPing, Ok: true}
}

// NewLoginRequest creates a new Login request
func NewLoginRequest(user, password string) *Message {
	return &Message{
		MsgType: MsgTLogin,
		Name:    user,
		Payload: []byte(password),
	}
}

// NewLoginResponse creates a new Login response carrying the session token
func NewLoginResponse(token string, err error) *Message {
	return (&Message{
		MsgType: MsgTLogin,
		Token:   token,
		Ok:      err == nil,
	}).setErr(err)
}

// NewLogoutRequest creates a new Logout request
func NewLogoutRequest(token string) *Message {
	return &Message{MsgType: MsgTLogout, Token: token}
}

// NewLogoutResponse creates a new Logout response
func NewLogoutResponse(err error) *Message {
	return (&Message{MsgType: MsgTLogout, Ok: err == nil}).setErr(err)
}

// NewListDatabasesRequest creates a new ListDatabases request
func NewListDatabasesRequest(token string) *Message {
	return &Message{MsgType: MsgTListDatabases, Token: token}
}

// NewListDatabasesResponse creates a new ListDatabases response; the
// payload is the JSON-encoded name list
func NewListDatabasesResponse(payload []byte, err error) *Message {
	return (&Message{
		MsgType: MsgTListDatabases,
		Payload: payload,
		Ok:      err == nil,
	}).setErr(err)
}

// NewSchemaRequest creates a new Schema request
func NewSchemaRequest(token, database string) *Message {
	return &Message{MsgType: MsgTSchema, Token: token, Database: database}
}

// NewSchemaResponse creates a new Schema response; the payload is the
// JSON-encoded schema
func NewSchemaResponse(payload []byte, err error) *Message {
	return (&Message{
		MsgType: MsgTSchema,
		Payload: payload,
		Ok:      err == nil,
	}).setErr(err)
}

// NewCatalogRequest creates a new Catalog request
func NewCatalogRequest(token, database string) *Message {
	return &Message{MsgType: MsgTCatalog, Token: token, Database: database}
}

// NewCatalogResponse creates a new Catalog response; the payload is the
// JSON-encoded catalog snapshot
func NewCatalogResponse(payload []byte, err error) *Message {
	return (&Message{
		MsgType: MsgTCatalog,
		Payload: payload,
		Ok:      err == nil,
	}).setErr(err)
}

// NewInfoRequest creates a new Info request
func NewInfoRequest(token, database string) *Message {
	return &Message{MsgType: MsgTInfo, Token: token, Database: database}
}

// NewInfoResponse creates a new Info response; the payload is the
// JSON-encoded database summary
func NewInfoResponse(payload []byte, err error) *Message {
	return (&Message{
		MsgType: MsgTInfo,
		Payload: payload,
		Ok:      err == nil,
	}).setErr(err)
}

// NewIngestRequest creates a new Ingest request; the payload is the
// JSON-encoded row list
func NewIngestRequest(token, database, batch string, payload []byte) *Message {
	return &Message{
		MsgType:  MsgTIngest,
		Token:    token,
		Database: database,
		Batch:    batch,
		Payload:  payload,
	}
}

// NewIngestResponse creates a new Ingest response; the payload is the
// JSON-encoded committed batch record
func NewIngestResponse(payload []byte, err error) *Message {
	return (&Message{
		MsgType: MsgTIngest,
		Payload: payload,
		Ok:      err == nil,
	}).setErr(err)
}

// NewRestoreRequest creates a new Restore request
func NewRestoreRequest(token, database, checkpoint string) *Message {
	return &Message{
		MsgType:  MsgTRestore,
		Token:    token,
		Database: database,
		Batch:    checkpoint,
	}
}

// NewRestoreResponse creates a new Restore response
func NewRestoreResponse(err error) *Message {
	return (&Message{MsgType: MsgTRestore, Ok: err == nil}).setErr(err)
}

// NewCheckRequest creates a new Check request
func NewCheckRequest(token, database string) *Message {
	return &Message{MsgType: MsgTCheck, Token: token, Database: database}
}

// NewCheckResponse creates a new Check response; the payload is the
// JSON-encoded integrity report
func NewCheckResponse(payload []byte, err error) *Message {
	return (&Message{
		MsgType: MsgTCheck,
		Payload: payload,
		Ok:      err == nil,
	}).setErr(err)
}

// NewRemoveDatabaseRequest creates a new RemoveDatabase request
func NewRemoveDatabaseRequest(token, database string) *Message {
	return &Message{MsgType: MsgTRemoveDatabase, Token: token, Database: database}
}

// NewRemoveDatabaseResponse creates a new RemoveDatabase response
func NewRemoveDatabaseResponse(err error) *Message {
	return (&Message{MsgType: MsgTRemoveDatabase, Ok: err == nil}).setErr(err)
}

// NewFetchColumnRequest creates a new FetchColumn request
func NewFetchColumnRequest(token, database, batch, column string) *Message {
	return &Message{
		MsgType:  MsgTFetchColumn,
		Token:    token,
		Database: database,
		Batch:    batch,
		Column:   column,
	}
}

// NewFetchColumnResponse creates a new FetchColumn response; the payload
// is the raw column file bytes
func NewFetchColumnResponse(payload []byte, err error) *Message {
	return (&Message{
		MsgType: MsgTFetchColumn,
		Payload: payload,
		Ok:      err == nil,
	}).setErr(err)
}

// NewQueryRequest creates a new Query request; the payload is the query
// template document
func NewQueryRequest(token, database string, payload []byte) *Message {
	return &Message{
		MsgType:  MsgTQuery,
		Token:    token,
		Database: database,
		Payload:  payload,
	}
}

// NewQueryResponse creates a new Query response; the payload is the
// JSON-encoded result table
func NewQueryResponse(payload []byte, err error) *Message {
	return (&Message{
		MsgType: MsgTQuery,
		Payload: payload,
		Ok:      err == nil,
	}).setErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err error) *Message {
	return (&Message{MsgType: MsgTError}).setErr(err)
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTSuccess:
		return "success"
	case MsgTError:
		return "error"
	case MsgTPing:
		return "ping"
	case MsgTLogin:
		return "login"
	case MsgTLogout:
		return "logout"
	case MsgTListDatabases:
		return "listDatabases"
	case MsgTSchema:
		return "schema"
	case MsgTCatalog:
		return "catalog"
	case MsgTInfo:
		return "info"
	case MsgTIngest:
		return "ingest"
	case MsgTRestore:
		return "restore"
	case MsgTCheck:
		return "check"
	case MsgTRemoveDatabase:
		return "removeDatabase"
	case MsgTFetchColumn:
		return "fetchColumn"
	case MsgTQuery:
		return "query"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "success":
		*t = MsgTSuccess
	case "error":
		*t = MsgTError
	case "ping":
		*t = MsgTPing
	case "login":
		*t = MsgTLogin
	case "logout":
		*t = MsgTLogout
	case "listDatabases":
		*t = MsgTListDatabases
	case "schema":
		*t = MsgTSchema
	case "catalog":
		*t = MsgTCatalog
	case "info":
		*t = MsgTInfo
	case "ingest":
		*t = MsgTIngest
	case "restore":
		*t = MsgTRestore
	case "check":
		*t = MsgTCheck
	case "removeDatabase":
		*t = MsgTRemoveDatabase
	case "fetchColumn":
		*t = MsgTFetchColumn
	case "query":
		*t = MsgTQuery
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred
	MsgTPing                // Liveness probe

	// Session operations

	MsgTLogin  // Authenticate and obtain a session token
	MsgTLogout // Invalidate a session token

	// Database operations

	MsgTListDatabases  // List the served databases
	MsgTSchema         // Fetch a database schema
	MsgTCatalog        // Fetch a catalog snapshot
	MsgTInfo           // Fetch a database summary
	MsgTIngest         // Ingest a batch of rows
	MsgTRestore        // Roll back to a restore point
	MsgTCheck          // Run an integrity check
	MsgTRemoveDatabase // Delete a served database and its data

	// Replication and query operations

	MsgTFetchColumn // Fetch the raw bytes of one column file
	MsgTQuery       // Execute a query template
)
