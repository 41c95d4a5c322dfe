package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"runtime"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/dSettings/lib/db"
	"github.com/ValentinKolb/dSettings/lib/db/engines/maple"
	"github.com/ValentinKolb/dSettings/lib/persist/file"
	"github.com/ValentinKolb/dSettings/lib/persist/kvstore"
	"github.com/ValentinKolb/dSettings/lib/persist/memory"
	"github.com/ValentinKolb/dSettings/lib/settings"
	"github.com/ValentinKolb/dSettings/lib/store/lstore"
	"github.com/ValentinKolb/dSettings/rpc/common"
	"github.com/ValentinKolb/dSettings/rpc/serializer"
	"github.com/ValentinKolb/dSettings/rpc/transport"
	vmetrics "github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

var (
	requestErrorsTotal = vmetrics.NewCounter("dsettings_rpc_request_errors_total")
	requestDuration    = vmetrics.NewHistogram("dsettings_rpc_request_duration_seconds")
)

func requestsCounter(msgType common.MessageType) *vmetrics.Counter {
	return vmetrics.GetOrCreateCounter(fmt.Sprintf(`dsettings_rpc_requests_total{type=%q}`, msgType))
}

// serverShard is a struct that represents a shard in the RPC server
// It contains the backend it encapsulates and the adapter
// that handles requests for the backend
type serverShard struct {
	Persistor settings.IPersistor
	Adapter   IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
	}
}

// RPCServer hosts one settings backend per shard.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]

	initOnce sync.Once
	initErr  error
}

// Handle decodes a request, dispatches it to the shard and encodes the
// response. It is registered as the transport handler.
func (s *RPCServer) Handle(ctx context.Context, shardId uint64, req []byte) []byte {
	start := time.Now()
	defer requestDuration.UpdateDuration(start)

	var msg common.Message
	var respMsg *common.Message

	// Get appropriate shard
	shard, ok := s.shards.Load(shardId)

	if !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		requestsCounter(msg.MsgType).Inc()
		respMsg = shard.Adapter.Handle(ctx, &msg, shard.Persistor)
	}

	if respMsg.Err != "" {
		requestErrorsTotal.Inc()
		Logger.Debugf("shard %d: %s failed: %s", shardId, msg.MsgType, respMsg.Err)
	}

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// Init creates and loads all configured shards. It is called by Serve and
// only runs once.
func (s *RPCServer) Init(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.init(ctx)
	})
	return s.initErr
}

func (s *RPCServer) init(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	// Function to create a new database instance
	dbFactory := func() db.KVDB { return maple.NewMapleDB(nil) }

	for _, shardConfig := range s.config.Shards {
		var p settings.IPersistor

		switch shardConfig.Type {
		case common.ShardTypeMemory:
			p = memory.New(fmt.Sprintf("shard-%d", shardConfig.ShardID))

		case common.ShardTypeFile:
			fp, err := file.New(shardConfig.Path, &file.Options{AutoSave: true})
			if err != nil {
				return fmt.Errorf("shard %d: %w", shardConfig.ShardID, err)
			}
			p = fp

		case common.ShardTypeStore:
			p = kvstore.New(lstore.NewLocalStore(dbFactory), &kvstore.Options{SnapshotPath: shardConfig.Path})

		default:
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}

		if l, ok := p.(settings.ISaveLoadable); ok {
			n, err := l.Load(ctx)
			if err != nil {
				return fmt.Errorf("loading shard %d: %w", shardConfig.ShardID, err)
			}
			Logger.Infof("loaded %d value(s) into shard %d", n, shardConfig.ShardID)
		}

		s.shards.Store(shardConfig.ShardID, serverShard{
			Persistor: p,
			Adapter:   NewPersistorServerAdapter(),
		})
		Logger.Infof("created %s shard %d (%s)", shardConfig.Type, shardConfig.ShardID, p.URL())
	}

	Logger.Infof("dSettings setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.Handle)
	return nil
}

// Persistor returns the backend of a shard.
func (s *RPCServer) Persistor(shardId uint64) (settings.IPersistor, bool) {
	shard, ok := s.shards.Load(shardId)
	return shard.Persistor, ok
}

// Serve initializes the server plus the shards and runs the transport
// layer until ctx is done or the transport fails.
func (s *RPCServer) Serve(ctx context.Context) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.transport.Listen(s.config)
	}()

	select {
	case err := <-errCh:
		return errors.Join(err, s.saveAll(context.Background()))
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops the transport and saves all shards if configured.
func (s *RPCServer) Shutdown(ctx context.Context) error {
	err := s.transport.Shutdown(ctx)
	return errors.Join(err, s.saveAll(ctx))
}

func (s *RPCServer) saveAll(ctx context.Context) error {
	if !s.config.SaveOnShutdown {
		return nil
	}

	var ids []uint64
	s.shards.Range(func(id uint64, _ serverShard) bool {
		ids = append(ids, id)
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var errs []error
	for _, id := range ids {
		shard, _ := s.shards.Load(id)
		l, ok := shard.Persistor.(settings.ISaveLoadable)
		if !ok {
			continue
		}
		n, err := l.Save(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("saving shard %d: %w", id, err))
			continue
		}
		Logger.Infof("saved %d value(s) of shard %d", n, id)
	}
	return errors.Join(errs...)
}
