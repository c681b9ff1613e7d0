package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotepulse/quotepulse/models"
)

func TestParseControl(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		msg     string
		want    control
		wantErr bool
	}{
		{"init with ids",
			`{"type":"init","content":["sh.600000","sz.000001"]}`,
			control{kind: controlInit, ids: []models.StockID{
				models.MustParseStockID("sh.600000"),
				models.MustParseStockID("sz.000001"),
			}}, false},
		{"ctrl stop",
			`{"type":"ctrl","content":"stop"}`,
			control{kind: controlCtrl, cmd: ctrlStop}, false},
		{"ctrl resume",
			`{"type":"ctrl","content":"resume"}`,
			control{kind: controlCtrl, cmd: ctrlResume}, false},

		{"no type", `{"content":["sh.600000"]}`, control{}, true},
		{"unknown type", `{"type":"subscribe"}`, control{}, true},
		{"init without content", `{"type":"init"}`, control{}, true},
		{"init with empty list", `{"type":"init","content":[]}`, control{}, true},
		{"init with a bad id", `{"type":"init","content":["sh.600000","nope"]}`, control{}, true},
		{"ctrl with unknown command", `{"type":"ctrl","content":"faster"}`, control{}, true},
		{"ctrl with non-string content", `{"type":"ctrl","content":7}`, control{}, true},
		{"not json at all", `hello`, control{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// --- when ---
			got, err := parseControl([]byte(tt.msg))

			// --- then ---
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
