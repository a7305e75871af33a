package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/feaforge/lrdb/lib/database"
	"github.com/feaforge/lrdb/lib/dberr"
	"github.com/feaforge/lrdb/lib/query"
	"github.com/feaforge/lrdb/lib/replica"
	"github.com/feaforge/lrdb/lib/schema"
	"github.com/feaforge/lrdb/lib/sessions"
	"github.com/feaforge/lrdb/rpc/common"
)

// --------------------------------------------------------------------------
// Message Dispatch
// --------------------------------------------------------------------------

// handle authorizes and dispatches one request message.
func (s *RPCServer) handle(msg *common.Message) *common.Message {
	switch msg.MsgType {
	case common.MsgTPing:
		return common.NewPingResponse()

	case common.MsgTLogin:
		sess, err := s.users.Login(msg.Name, string(msg.Payload))
		return common.NewLoginResponse(sess.Token, err)

	case common.MsgTLogout:
		s.users.Logout(msg.Token)
		return common.NewLogoutResponse(nil)

	case common.MsgTListDatabases:
		return s.handleListDatabases(msg)
	}

	// Everything below operates on a single database.
	db, ok := s.databases.Load(msg.Database)
	if !ok {
		return common.NewErrorResponse(
			dberr.New(dberr.CodeMissingData, "unknown database %q", msg.Database))
	}
	cap := s.users.Authorize(msg.Token, msg.Database)

	switch msg.MsgType {
	case common.MsgTSchema:
		return s.handleSchema(db, cap)
	case common.MsgTCatalog:
		return s.handleCatalog(db, cap)
	case common.MsgTInfo:
		return s.handleInfo(db, cap)
	case common.MsgTIngest:
		return s.handleIngest(db, cap, msg)
	case common.MsgTRestore:
		return common.NewRestoreResponse(db.Restore(msg.Batch, cap))
	case common.MsgTCheck:
		return s.handleCheck(db, cap)
	case common.MsgTRemoveDatabase:
		return s.handleRemoveDatabase(db, cap, msg)
	case common.MsgTFetchColumn:
		return s.handleFetchColumn(db, cap, msg)
	case common.MsgTQuery:
		return s.handleQuery(db, cap, msg)
	default:
		return common.NewErrorResponse(
			dberr.New(dberr.CodeInternal, "unsupported message type %q", msg.MsgType))
	}
}

// ctx returns the per-request context.
func (s *RPCServer) ctx() (context.Context, context.CancelFunc) {
	if s.config.TimeoutSecond > 0 {
		return context.WithTimeout(context.Background(),
			time.Duration(s.config.TimeoutSecond)*time.Second)
	}
	return context.Background(), func() {}
}

// --------------------------------------------------------------------------
// Operation Handlers
// --------------------------------------------------------------------------

func (s *RPCServer) handleListDatabases(msg *common.Message) *common.Message {
	var names []string
	s.databases.Range(func(name string, _ *database.Database) bool {
		if s.users.Authorize(msg.Token, name).CanRead() {
			names = append(names, name)
		}
		return true
	})

	payload, err := json.Marshal(names)
	return common.NewListDatabasesResponse(payload, err)
}

func (s *RPCServer) handleSchema(db *database.Database, cap sessions.Capability) *common.Message {
	if !cap.CanRead() {
		return common.NewSchemaResponse(nil, errNoReadAccess())
	}
	payload, err := json.Marshal(db.Schema())
	return common.NewSchemaResponse(payload, err)
}

func (s *RPCServer) handleCatalog(db *database.Database, cap sessions.Capability) *common.Message {
	if !cap.CanRead() {
		return common.NewCatalogResponse(nil, errNoReadAccess())
	}
	snap, err := db.Snapshot()
	if err != nil {
		return common.NewCatalogResponse(nil, err)
	}
	payload, err := json.Marshal(snap)
	return common.NewCatalogResponse(payload, err)
}

func (s *RPCServer) handleInfo(db *database.Database, cap sessions.Capability) *common.Message {
	if !cap.CanRead() {
		return common.NewInfoResponse(nil, errNoReadAccess())
	}
	info, err := db.Info()
	if err != nil {
		return common.NewInfoResponse(nil, err)
	}
	payload, err := json.Marshal(info)
	return common.NewInfoResponse(payload, err)
}

func (s *RPCServer) handleIngest(db *database.Database, cap sessions.Capability, msg *common.Message) *common.Message {
	rows, err := decodeRows(db.Schema(), msg.Payload)
	if err != nil {
		return common.NewIngestResponse(nil, err)
	}

	ctx, cancel := s.ctx()
	defer cancel()

	rec, err := db.Ingest(ctx, msg.Batch, schema.NewSliceReader(rows), cap)
	if err != nil {
		return common.NewIngestResponse(nil, err)
	}
	payload, err := json.Marshal(rec)
	return common.NewIngestResponse(payload, err)
}

func (s *RPCServer) handleCheck(db *database.Database, cap sessions.Capability) *common.Message {
	if !cap.CanRead() {
		return common.NewCheckResponse(nil, errNoReadAccess())
	}

	ctx, cancel := s.ctx()
	defer cancel()

	report, err := db.Check(ctx)
	if err != nil {
		return common.NewCheckResponse(nil, err)
	}
	payload, err := json.Marshal(report)
	return common.NewCheckResponse(payload, err)
}

// handleRemoveDatabase unregisters a database and deletes its directory.
// Removal is irreversible, so it takes the admin capability rather than
// plain write access.
func (s *RPCServer) handleRemoveDatabase(db *database.Database, cap sessions.Capability, msg *common.Message) *common.Message {
	if !cap.CanAdmin() {
		return common.NewRemoveDatabaseResponse(
			dberr.New(dberr.CodeUnauthorized, "admin access required"))
	}

	s.databases.Delete(msg.Database)
	if err := db.Close(); err != nil {
		return common.NewRemoveDatabaseResponse(err)
	}
	if err := os.RemoveAll(db.Path()); err != nil {
		return common.NewRemoveDatabaseResponse(
			dberr.Wrap(dberr.CodeInternal, err, "remove database directory"))
	}
	s.logger.Infow("removed database", "name", msg.Database)
	return common.NewRemoveDatabaseResponse(nil)
}

func (s *RPCServer) handleFetchColumn(db *database.Database, cap sessions.Capability, msg *common.Message) *common.Message {
	if !cap.CanRead() {
		return common.NewFetchColumnResponse(nil, errNoReadAccess())
	}

	snap, err := db.Snapshot()
	if err != nil {
		return common.NewFetchColumnResponse(nil, err)
	}
	rec, ok := snap.Find(msg.Batch)
	if !ok {
		return common.NewFetchColumnResponse(nil,
			dberr.New(dberr.CodeCheckpointNotFound, "batch %q not found", msg.Batch))
	}

	ctx, cancel := s.ctx()
	defer cancel()

	src := replica.LocalSource{DB: db}
	r, err := src.FetchColumnFile(ctx, rec, msg.Column)
	if err != nil {
		return common.NewFetchColumnResponse(nil, err)
	}
	defer r.Close()

	payload, err := io.ReadAll(r)
	if err != nil {
		return common.NewFetchColumnResponse(nil,
			dberr.Wrap(dberr.CodeInternal, err, "read column file"))
	}
	return common.NewFetchColumnResponse(payload, nil)
}

func (s *RPCServer) handleQuery(db *database.Database, cap sessions.Capability, msg *common.Message) *common.Message {
	if !cap.CanRead() {
		return common.NewQueryResponse(nil, errNoReadAccess())
	}

	q, err := query.Parse(msg.Payload)
	if err != nil {
		return common.NewQueryResponse(nil, err)
	}

	ctx, cancel := s.ctx()
	defer cancel()

	result, err := query.Execute(ctx, db, q)
	if err != nil {
		return common.NewQueryResponse(nil, err)
	}
	payload, err := json.Marshal(result)
	return common.NewQueryResponse(payload, err)
}

func errNoReadAccess() error {
	return dberr.New(dberr.CodeUnauthorized, "read access required")
}

// --------------------------------------------------------------------------
// Row Decoding
// --------------------------------------------------------------------------

// decodeRows decodes a JSON row list into typed rows. JSON numbers are
// coerced per schema column so int64 columns survive the wire intact.
func decodeRows(sch schema.Schema, payload []byte) ([]schema.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw [][]any
	if err := dec.Decode(&raw); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "decode rows")
	}

	rows := make([]schema.Row, len(raw))
	for i, r := range raw {
		if len(r) != len(sch.Columns) {
			return nil, dberr.New(dberr.CodeSchemaMismatch,
				"row %d has %d values, schema has %d columns", i, len(r), len(sch.Columns))
		}
		row := make(schema.Row, len(r))
		for j, v := range r {
			val, err := coerceValue(sch.Columns[j], v)
			if err != nil {
				return nil, err
			}
			row[j] = val
		}
		rows[i] = row
	}
	return rows, nil
}

func coerceValue(col schema.Column, v any) (any, error) {
	switch col.Type {
	case schema.TypeInt64:
		if n, ok := v.(json.Number); ok {
			i, err := n.Int64()
			if err == nil {
				return i, nil
			}
		}
	case schema.TypeFloat64:
		if n, ok := v.(json.Number); ok {
			f, err := n.Float64()
			if err == nil {
				return f, nil
			}
		}
	case schema.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, dberr.New(dberr.CodeSchemaMismatch,
		"value %v does not fit column %q (%s)", v, col.Name, col.Type)
}
