package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/ValentinKolb/dSettings/lib/settings"
	"github.com/ValentinKolb/dSettings/rpc/common"
	"github.com/ValentinKolb/dSettings/rpc/serializer"
	"github.com/ValentinKolb/dSettings/rpc/transport"
)

// IRPCPersistor is a settings backend living on an RPC server.
type IRPCPersistor interface {
	settings.IPersistor
	settings.ISaveLoadable
	// Describe returns the type and URL of the backend behind the shard.
	Describe(ctx context.Context) (typeName, url string, err error)
	// Close releases the transport.
	Close() error
}

// NewRPCPersistor creates a new RPC persistor
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a IRPCPersistor and an error
func NewRPCPersistor(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (IRPCPersistor, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	return &rpcPersistor{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcPersistor struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see settings/persistor.go)
// --------------------------------------------------------------------------

func (r *rpcPersistor) TypeName() string {
	return "rpc"
}

func (r *rpcPersistor) URL() string {
	return fmt.Sprintf("rpc://%s/%d", strings.Join(r.config.Endpoints, ","), r.shardId)
}

func (r *rpcPersistor) SetValue(ctx context.Context, key string, value any) error {
	encoded, err := common.EncodeValue(value)
	if err != nil {
		return err
	}
	_, err = r.invoke(ctx, common.NewSetValueRequest(key, encoded))
	return err
}

func (r *rpcPersistor) SetValues(ctx context.Context, values map[string]any) error {
	encoded, err := common.EncodeValues(values)
	if err != nil {
		return err
	}
	_, err = r.invoke(ctx, common.NewSetValuesRequest(encoded))
	return err
}

func (r *rpcPersistor) FetchValue(ctx context.Context, key string) (any, bool, error) {
	resp, err := r.invoke(ctx, common.NewFetchValueRequest(key))
	if err != nil {
		return nil, false, err
	}
	if !resp.Ok {
		return nil, false, nil
	}
	value, err := common.DecodeValue(resp.Value)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (r *rpcPersistor) FetchValues(ctx context.Context, keys []string) (map[string]any, error) {
	encoded, err := common.EncodeKeys(keys)
	if err != nil {
		return nil, err
	}
	resp, err := r.invoke(ctx, common.NewFetchValuesRequest(encoded))
	if err != nil {
		return nil, err
	}
	return common.DecodeValues(resp.Value)
}

func (r *rpcPersistor) FetchAllKeyValues(ctx context.Context) (map[string]any, error) {
	resp, err := r.invoke(ctx, common.NewFetchAllRequest())
	if err != nil {
		return nil, err
	}
	return common.DecodeValues(resp.Value)
}

func (r *rpcPersistor) KeyWasChanged(ctx context.Context, from, to string, value any) error {
	encoded, err := common.EncodeValue(value)
	if err != nil {
		return err
	}
	_, err = r.invoke(ctx, common.NewKeyChangedRequest(from, to, encoded))
	return err
}

func (r *rpcPersistor) ValueWasChanged(ctx context.Context, key string, from, to any) error {
	prev, err := common.EncodeValue(from)
	if err != nil {
		return err
	}
	encoded, err := common.EncodeValue(to)
	if err != nil {
		return err
	}
	_, err = r.invoke(ctx, common.NewValueChangedRequest(key, prev, encoded))
	return err
}

// Load asks the server to reload the shard from its storage.
func (r *rpcPersistor) Load(ctx context.Context) (int, error) {
	resp, err := r.invoke(ctx, common.NewLoadRequest())
	if err != nil {
		return 0, err
	}
	return int(resp.Count), nil
}

// Save asks the server to persist the shard.
func (r *rpcPersistor) Save(ctx context.Context) (int, error) {
	resp, err := r.invoke(ctx, common.NewSaveRequest())
	if err != nil {
		return 0, err
	}
	return int(resp.Count), nil
}

func (r *rpcPersistor) Describe(ctx context.Context) (string, string, error) {
	resp, err := r.invoke(ctx, common.NewDescribeRequest())
	if err != nil {
		return "", "", err
	}
	return resp.Key, resp.To, nil
}

func (r *rpcPersistor) Close() error {
	return r.transport.Close()
}
