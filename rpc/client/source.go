package client

import (
	"bytes"
	"context"
	"io"

	"github.com/feaforge/lrdb/lib/catalog"
	"github.com/feaforge/lrdb/lib/schema"
)

// RemoteSource adapts a client to the replica sync Source interface.
type RemoteSource struct {
	Client   IClient
	Database string
}

func (s RemoteSource) Schema() (schema.Schema, error) {
	return s.Client.Schema(s.Database)
}

func (s RemoteSource) Snapshot() (catalog.Snapshot, error) {
	return s.Client.Catalog(s.Database)
}

func (s RemoteSource) FetchColumnFile(_ context.Context, rec catalog.BatchRecord, column string) (io.ReadCloser, error) {
	data, err := s.Client.FetchColumn(s.Database, rec.Name, column)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
