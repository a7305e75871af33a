package client

import (
	"encoding/json"

	"github.com/feaforge/lrdb/lib/catalog"
	"github.com/feaforge/lrdb/lib/database"
	"github.com/feaforge/lrdb/lib/dberr"
	"github.com/feaforge/lrdb/lib/query"
	"github.com/feaforge/lrdb/lib/schema"
	"github.com/feaforge/lrdb/rpc/common"
	"github.com/feaforge/lrdb/rpc/serializer"
	"github.com/feaforge/lrdb/rpc/transport"
)

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// IClient is the typed client API of the database service.
type IClient interface {
	// Ping checks that the server is reachable
	Ping() error
	// Login authenticates and stores the session token for later requests
	Login(user, password string) error
	// Logout invalidates the current session
	Logout() error
	// ListDatabases lists the served databases readable by the session
	ListDatabases() ([]string, error)
	// Schema fetches a database schema
	Schema(db string) (schema.Schema, error)
	// Catalog fetches a catalog snapshot
	Catalog(db string) (catalog.Snapshot, error)
	// Info fetches a database summary
	Info(db string) (database.Info, error)
	// Ingest commits the rows as a new batch and returns its record
	Ingest(db, batch string, rows []schema.Row) (catalog.BatchRecord, error)
	// Restore rolls the database back to the named restore point
	Restore(db, checkpoint string) error
	// Check runs an integrity check
	Check(db string) (database.CheckReport, error)
	// RemoveDatabase deletes a served database and all its data (admin only)
	RemoveDatabase(db string) error
	// FetchColumn fetches the raw bytes of one column file
	FetchColumn(db, batch, column string) ([]byte, error)
	// Query executes a query
	Query(db string, q query.Query) (*query.Result, error)
	// Close closes the underlying transport
	Close() error
}

// clientImpl implements IClient over a transport and a serializer.
type clientImpl struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
	token      string
}

// NewClient creates a connected client from the configuration and the
// given transport. The serializer is resolved from the configuration
// and must match the server's.
func NewClient(config common.ClientConfig, t transport.IRPCClientTransport) (IClient, error) {
	s, err := serializer.ByName(config.Serializer)
	if err != nil {
		return nil, err
	}
	if err := t.Connect(config); err != nil {
		return nil, err
	}
	return &clientImpl{
		config:     config,
		transport:  t,
		serializer: s,
	}, nil
}

// exchange sends one request and decodes the response, converting a
// transported error back into its typed form.
func (c *clientImpl) exchange(req *common.Message) (*common.Message, error) {
	data, err := c.serializer.Serialize(*req)
	if err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "serialize request")
	}

	respData, err := c.transport.Send(data)
	if err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "send request")
	}

	var resp common.Message
	if err := c.serializer.Deserialize(respData, &resp); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "deserialize response")
	}
	if err := resp.ResponseError(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see client.IClient)
// --------------------------------------------------------------------------

func (c *clientImpl) Ping() error {
	_, err := c.exchange(common.NewPingRequest())
	return err
}

func (c *clientImpl) Login(user, password string) error {
	resp, err := c.exchange(common.NewLoginRequest(user, password))
	if err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

func (c *clientImpl) Logout() error {
	_, err := c.exchange(common.NewLogoutRequest(c.token))
	c.token = ""
	return err
}

func (c *clientImpl) ListDatabases() ([]string, error) {
	resp, err := c.exchange(common.NewListDatabasesRequest(c.token))
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(resp.Payload, &names); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "decode database list")
	}
	return names, nil
}

func (c *clientImpl) Schema(db string) (schema.Schema, error) {
	resp, err := c.exchange(common.NewSchemaRequest(c.token, db))
	if err != nil {
		return schema.Schema{}, err
	}
	var sch schema.Schema
	if err := json.Unmarshal(resp.Payload, &sch); err != nil {
		return schema.Schema{}, dberr.Wrap(dberr.CodeInternal, err, "decode schema")
	}
	return sch, nil
}

func (c *clientImpl) Catalog(db string) (catalog.Snapshot, error) {
	resp, err := c.exchange(common.NewCatalogRequest(c.token, db))
	if err != nil {
		return catalog.Snapshot{}, err
	}
	var snap catalog.Snapshot
	if err := json.Unmarshal(resp.Payload, &snap); err != nil {
		return catalog.Snapshot{}, dberr.Wrap(dberr.CodeInternal, err, "decode catalog")
	}
	return snap, nil
}

func (c *clientImpl) Info(db string) (database.Info, error) {
	resp, err := c.exchange(common.NewInfoRequest(c.token, db))
	if err != nil {
		return database.Info{}, err
	}
	var info database.Info
	if err := json.Unmarshal(resp.Payload, &info); err != nil {
		return database.Info{}, dberr.Wrap(dberr.CodeInternal, err, "decode info")
	}
	return info, nil
}

func (c *clientImpl) Ingest(db, batch string, rows []schema.Row) (catalog.BatchRecord, error) {
	payload, err := json.Marshal(rows)
	if err != nil {
		return catalog.BatchRecord{}, dberr.Wrap(dberr.CodeInternal, err, "encode rows")
	}

	resp, err := c.exchange(common.NewIngestRequest(c.token, db, batch, payload))
	if err != nil {
		return catalog.BatchRecord{}, err
	}
	var rec catalog.BatchRecord
	if err := json.Unmarshal(resp.Payload, &rec); err != nil {
		return catalog.BatchRecord{}, dberr.Wrap(dberr.CodeInternal, err, "decode batch record")
	}
	return rec, nil
}

func (c *clientImpl) Restore(db, checkpoint string) error {
	_, err := c.exchange(common.NewRestoreRequest(c.token, db, checkpoint))
	return err
}

func (c *clientImpl) Check(db string) (database.CheckReport, error) {
	resp, err := c.exchange(common.NewCheckRequest(c.token, db))
	if err != nil {
		return database.CheckReport{}, err
	}
	var report database.CheckReport
	if err := json.Unmarshal(resp.Payload, &report); err != nil {
		return database.CheckReport{}, dberr.Wrap(dberr.CodeInternal, err, "decode check report")
	}
	return report, nil
}

func (c *clientImpl) RemoveDatabase(db string) error {
	_, err := c.exchange(common.NewRemoveDatabaseRequest(c.token, db))
	return err
}

func (c *clientImpl) FetchColumn(db, batch, column string) ([]byte, error) {
	resp, err := c.exchange(common.NewFetchColumnRequest(c.token, db, batch, column))
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

func (c *clientImpl) Query(db string, q query.Query) (*query.Result, error) {
	payload, err := query.Encode(q)
	if err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "encode query")
	}

	resp, err := c.exchange(common.NewQueryRequest(c.token, db, payload))
	if err != nil {
		return nil, err
	}
	var result query.Result
	if err := json.Unmarshal(resp.Payload, &result); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "decode query result")
	}
	return &result, nil
}

func (c *clientImpl) Close() error {
	return c.transport.Close()
}
