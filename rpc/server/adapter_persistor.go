package server

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dSettings/lib/settings"
	"github.com/ValentinKolb/dSettings/rpc/common"
)

func NewPersistorServerAdapter() IRPCServerAdapter {
	return &persistorServerAdapterImpl{}
}

type persistorServerAdapterImpl struct{}

func (adapter *persistorServerAdapterImpl) Handle(ctx context.Context, req *common.Message, p settings.IPersistor) *common.Message {
	if p == nil {
		return common.NewErrorResponse("handler: persistor is nil")
	}

	switch req.MsgType {
	case common.MsgTSetValue:
		value, err := common.DecodeValue(req.Value)
		if err != nil {
			return common.NewResponse(req.MsgType, err)
		}
		return common.NewResponse(req.MsgType, p.SetValue(ctx, req.Key, value))

	case common.MsgTSetValues:
		values, err := common.DecodeValues(req.Value)
		if err != nil {
			return common.NewResponse(req.MsgType, err)
		}
		return common.NewResponse(req.MsgType, p.SetValues(ctx, values))

	case common.MsgTFetchValue:
		value, ok, err := p.FetchValue(ctx, req.Key)
		if err != nil {
			return common.NewFetchValueResponse(nil, false, err)
		}
		encoded, err := common.EncodeValue(value)
		return common.NewFetchValueResponse(encoded, ok, err)

	case common.MsgTFetchValues:
		keys, err := common.DecodeKeys(req.Value)
		if err != nil {
			return common.NewValuesResponse(req.MsgType, nil, err)
		}
		values, err := p.FetchValues(ctx, keys)
		if err != nil {
			return common.NewValuesResponse(req.MsgType, nil, err)
		}
		encoded, err := common.EncodeValues(values)
		return common.NewValuesResponse(req.MsgType, encoded, err)

	case common.MsgTFetchAll:
		values, err := p.FetchAllKeyValues(ctx)
		if err != nil {
			return common.NewValuesResponse(req.MsgType, nil, err)
		}
		encoded, err := common.EncodeValues(values)
		return common.NewValuesResponse(req.MsgType, encoded, err)

	case common.MsgTKeyChanged:
		value, err := common.DecodeValue(req.Value)
		if err != nil {
			return common.NewResponse(req.MsgType, err)
		}
		return common.NewResponse(req.MsgType, p.KeyWasChanged(ctx, req.Key, req.To, value))

	case common.MsgTValueChanged:
		prev, err := common.DecodeValue(req.Prev)
		if err != nil {
			return common.NewResponse(req.MsgType, err)
		}
		value, err := common.DecodeValue(req.Value)
		if err != nil {
			return common.NewResponse(req.MsgType, err)
		}
		return common.NewResponse(req.MsgType, p.ValueWasChanged(ctx, req.Key, prev, value))

	case common.MsgTLoad, common.MsgTSave:
		l, ok := p.(settings.ISaveLoadable)
		if !ok {
			// nothing to load or save
			return common.NewCountResponse(req.MsgType, 0, nil)
		}
		var n int
		var err error
		if req.MsgType == common.MsgTLoad {
			n, err = l.Load(ctx)
		} else {
			n, err = l.Save(ctx)
		}
		return common.NewCountResponse(req.MsgType, n, err)

	case common.MsgTDescribe:
		return common.NewDescribeResponse(p.TypeName(), p.URL())

	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC PersistorAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
