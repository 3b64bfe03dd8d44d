package sqlxrepos

import (
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shule/backend/core"
)

func Test_trapUniqueViolation(t *testing.T) {
	fields := map[string]string{"invoice_item_fee_key": "fee_structure_id"}
	other := errors.New("connection reset")

	tests := []struct {
		name      string
		err       error
		wantField string
		wantMsg   string
	}{
		{name: "no error"},
		{name: "other error", err: other},
		{name: "not a unique violation", err: &pq.Error{Code: "23503", Constraint: "invoice_item_fee_key"}},
		{
			name:      "known constraint",
			err:       &pq.Error{Code: uniqueViolation, Constraint: "invoice_item_fee_key"},
			wantField: "fee_structure_id",
			wantMsg:   "a record with this fee structure id already exists",
		},
		{
			name:      "wrapped",
			err:       errors.Wrap(&pq.Error{Code: uniqueViolation, Constraint: "invoice_item_fee_key"}, "inserting"),
			wantField: "fee_structure_id",
			wantMsg:   "a record with this fee structure id already exists",
		},
		{
			name:    "unknown constraint",
			err:     &pq.Error{Code: uniqueViolation, Constraint: "invoice_item_pkey"},
			wantMsg: "this record already exists",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := trapUniqueViolation(tc.err, "invoice_item", fields)
			if tc.wantMsg == "" {
				if tc.err == nil {
					assert.NoError(t, err)
				} else {
					assert.Equal(t, tc.err, err)
					assert.False(t, core.IsConflictError(err))
				}
				return
			}
			var cerr *core.ConflictError
			require.True(t, errors.As(err, &cerr), "err = %v", err)
			assert.Equal(t, "invoice_item", cerr.Entity)
			assert.Equal(t, tc.wantField, cerr.Field)
			assert.Equal(t, tc.wantMsg, cerr.Message)
		})
	}
}
