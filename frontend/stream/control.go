package stream

import (
	"github.com/buger/jsonparser"
	"github.com/pkg/errors"

	"github.com/quotepulse/quotepulse/models"
)

// control message kinds the client may send.
const (
	controlInit = "init"
	controlCtrl = "ctrl"

	ctrlStop   = "stop"
	ctrlResume = "resume"
)

// control is a parsed inbound message: {"type":"init","content":[ids...]}
// or {"type":"ctrl","content":"stop"|"resume"}.
type control struct {
	kind string
	ids  []models.StockID
	cmd  string
}

// parseControl picks an inbound message apart without binding a schema, so a
// malformed message is rejected as a whole and the session stays open.
func parseControl(msg []byte) (control, error) {
	kind, err := jsonparser.GetString(msg, "type")
	if err != nil {
		return control{}, errors.Wrap(err, "control message has no type")
	}
	ctl := control{kind: kind}
	switch kind {
	case controlInit:
		var badID error
		_, err := jsonparser.ArrayEach(msg, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
			id, err := models.ParseStockID(string(value))
			if err != nil {
				badID = err
				return
			}
			ctl.ids = append(ctl.ids, id)
		}, "content")
		if err != nil {
			return control{}, errors.Wrap(err, "init content is not an id list")
		}
		if badID != nil {
			return control{}, badID
		}
		if len(ctl.ids) == 0 {
			return control{}, errors.New("init content is empty")
		}
	case controlCtrl:
		cmd, err := jsonparser.GetString(msg, "content")
		if err != nil {
			return control{}, errors.Wrap(err, "ctrl content is not a string")
		}
		if cmd != ctrlStop && cmd != ctrlResume {
			return control{}, errors.Errorf("unknown ctrl command %q", cmd)
		}
		ctl.cmd = cmd
	default:
		return control{}, errors.Errorf("unknown control message type %q", kind)
	}
	return ctl, nil
}
