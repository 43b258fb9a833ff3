package domain_test

import (
	"testing"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_RoundTripKeepsVariant(t *testing.T) {
	original := domain.RefundContext{OriginalTransactionID: 42, Reason: "generation timed out"}

	raw, err := domain.MarshalMetadata(original)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"refund","data":{"originalTransactionId":42,"reason":"generation timed out"}}`, string(raw))

	decoded, err := domain.UnmarshalMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestMetadata_NilAndNull(t *testing.T) {
	raw, err := domain.MarshalMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)

	for _, input := range []string{"", "null", "  "} {
		m, err := domain.UnmarshalMetadata([]byte(input))
		require.NoError(t, err)
		assert.Nil(t, m)
	}
}

func TestMetadata_UnknownType(t *testing.T) {
	_, err := domain.UnmarshalMetadata([]byte(`{"type":"video","data":{}}`))
	assert.Error(t, err)
}

func TestValidateMetadata(t *testing.T) {
	tests := []struct {
		name    string
		kind    domain.OperationKind
		meta    domain.Metadata
		wantErr bool
	}{
		{"nil is always allowed", domain.KindImageEdit, nil, false},
		{"blog context on blog generation", domain.KindBlogGeneration, domain.BlogContext{PostID: "p1"}, false},
		{"image context on image edit", domain.KindImageEdit, domain.ImageContext{ImageID: "i1"}, false},
		{"image context on blog generation", domain.KindBlogGeneration, domain.ImageContext{ImageID: "i1"}, true},
		{"admin note on admin deduct", domain.KindAdminDeduct, domain.AdminNote{AdminID: "a1"}, false},
		{"blog context on admin add", domain.KindAdminAdd, domain.BlogContext{PostID: "p1"}, true},
		{"refund context on refund", domain.KindRefund, domain.RefundContext{OriginalTransactionID: 1}, false},
		{"unknown kind", domain.OperationKind("bogus"), domain.AdminNote{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.ValidateMetadata(tt.kind, tt.meta)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
