package serve

import (
	"testing"

	"github.com/ValentinKolb/dSettings/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShards(t *testing.T) {
	shards, err := ParseShards("1=memory, 2=file(data/settings.yaml),3=store(data/store.json), 4=store")
	require.NoError(t, err)
	assert.Equal(t, []common.ServerShard{
		{ShardID: 1, Type: common.ShardTypeMemory},
		{ShardID: 2, Type: common.ShardTypeFile, Path: "data/settings.yaml"},
		{ShardID: 3, Type: common.ShardTypeStore, Path: "data/store.json"},
		{ShardID: 4, Type: common.ShardTypeStore},
	}, shards)
}

func TestParseShardsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing type", "1"},
		{"invalid id", "x=memory"},
		{"unknown type", "1=redis"},
		{"unclosed path", "1=file(settings.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseShards(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestParseShardsEmpty(t *testing.T) {
	shards, err := ParseShards("")
	require.NoError(t, err)
	assert.Empty(t, shards)

	cfg := common.ServerConfig{Shards: shards, Transport: common.TransportConfig{Endpoint: "localhost:0"}}
	assert.Error(t, cfg.Validate())
}
