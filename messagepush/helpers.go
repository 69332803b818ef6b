package messagepush

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func convertMsgToString(msg interface{}) (string, error) {
	var msgString string
	switch v := msg.(type) {
	case string:
		// If message is a string, just send it
		msgString = v
	default:
		// If message is an object, encode to json
		b, err := json.Marshal(msg)
		if err != nil {
			log.Errorf("msg cannot be encoded to json: msg[%v] err[%v]", msg, err)
			return "", errors.Wrap(err, "kafka produce: JSON marshal error")
		}
		msgString = string(b)
	}
	return msgString, nil
}

func newStatusMessage(bizCode string, update *StatusUpdate) (*PushMessage, error) {
	b, err := json.Marshal(update)
	if err != nil {
		return nil, errors.Wrap(err, "json marshal error")
	}
	return &PushMessage{
		BizCode:       bizCode,
		WalletAddress: update.Recipient,
		RequestID:     uuid.NewString(),
		PushContent:   fmt.Sprintf("[%v]", string(b)),
		Time:          time.Now().UnixMilli(),
	}, nil
}
