package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/VictoriaMetrics/metrics"
	"github.com/feaforge/lrdb/lib/database"
	"github.com/feaforge/lrdb/lib/lockmgr"
	"github.com/feaforge/lrdb/lib/sessions"
	"github.com/feaforge/lrdb/rpc/common"
	"github.com/feaforge/lrdb/rpc/serializer"
	"github.com/feaforge/lrdb/rpc/transport"
	"github.com/feaforge/lrdb/rpc/transport/base"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// RPCServer serves a directory of databases to remote clients.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	databases  *xsync.MapOf[string, *database.Database]
	users      *sessions.Store
	locks      lockmgr.ILockManager
	logger     *zap.SugaredLogger
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s, err := server.NewRPCServer(
//		config,
//		tcp.NewTCPServerTransport(config),
//		serializer.NewBinarySerializer(),
//	)
//	if err != nil {
//		panic(err)
//	}
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) (*RPCServer, error) {
	logger, err := common.NewLogger(config.LogLevel)
	if err != nil {
		return nil, err
	}
	base.SetLogger(logger)

	logger.Infof("Created RPC Server")
	logger.Info(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		databases:  xsync.NewMapOf[string, *database.Database](),
		locks:      lockmgr.NewLockManager(),
		logger:     logger.Named("rpc"),
	}, nil
}

// init opens the user registry and all databases under the data
// directory, then wires the transport handler.
func (s *RPCServer) init() error {
	users, err := sessions.Open(s.config.UsersFile, s.config.AdminUser, s.config.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to open user registry: %w", err)
	}
	s.users = users

	// Every subdirectory of the data directory that carries a schema
	// file is a database.
	entries, err := os.ReadDir(s.config.DataDir)
	if err != nil {
		return fmt.Errorf("failed to read data directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(s.config.DataDir, e.Name())
		if _, err := os.Stat(filepath.Join(path, "schema.json")); err != nil {
			continue
		}

		db, err := database.Open(path, &database.Options{
			Logger: s.logger,
			Locks:  s.locks,
		})
		if err != nil {
			return fmt.Errorf("failed to open database %q: %w", e.Name(), err)
		}
		s.databases.Store(e.Name(), db)
		s.logger.Infow("serving database", "name", e.Name(), "path", path)
	}

	s.registerTransportHandler()
	return nil
}

// registerTransportHandler connects the serializer and the message
// adapter to the transport layer.
func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		// Decode the request
		if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(fmt.Errorf("failed to deserialize request: %w", err))
		} else {
			metrics.GetOrCreateCounter(
				fmt.Sprintf(`lrdb_rpc_requests_total{type=%q}`, msg.MsgType.String())).Inc()

			respMsg = s.handle(&msg)
		}

		if respMsg.Err != "" {
			metrics.GetOrCreateCounter(
				fmt.Sprintf(`lrdb_rpc_errors_total{type=%q}`, msg.MsgType.String())).Inc()
		}

		// Return result
		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			s.logger.Errorw("failed to serialize response", "err", err)
			val, _ = s.serializer.Serialize(*common.NewErrorResponse(
				fmt.Errorf("failed to serialize response: %w", err)))
		}
		return val
	})
}

// serveMetrics exposes the process metrics in Prometheus format.
func (s *RPCServer) serveMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	s.logger.Infow("serving metrics", "endpoint", s.config.MetricsEndpoint)
	if err := http.ListenAndServe(s.config.MetricsEndpoint, mux); err != nil {
		s.logger.Errorw("metrics endpoint failed", "err", err)
	}
}

// Serve starts the RPC server
// This function initializes the databases and starts the transport layer
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}

	if s.config.MetricsEndpoint != "" {
		go s.serveMetrics()
	}

	return s.transport.Listen(s.config)
}
