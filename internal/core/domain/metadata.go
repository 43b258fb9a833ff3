package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MetadataType tags the variant stored in a transaction's metadata.
type MetadataType string

const (
	MetadataBlog   MetadataType = "blog"
	MetadataImage  MetadataType = "image"
	MetadataAdmin  MetadataType = "admin_note"
	MetadataRefund MetadataType = "refund"
)

// Metadata is the structured context attached to a transaction.
// The set of variants is closed: BlogContext, ImageContext, AdminNote and RefundContext.
type Metadata interface {
	Type() MetadataType
	sealed()
}

// BlogContext identifies the blog post a generation charge was for.
type BlogContext struct {
	PostID    string `json:"postId"`
	Title     string `json:"title,omitempty"`
	WordCount int    `json:"wordCount,omitempty"`
}

// ImageContext identifies the image a generation or edit charge was for.
type ImageContext struct {
	ImageID string `json:"imageId"`
	Prompt  string `json:"prompt,omitempty"`
	Size    string `json:"size,omitempty"`
}

// AdminNote records who made a manual adjustment and why.
type AdminNote struct {
	Note    string `json:"note,omitempty"`
	AdminID string `json:"adminId"`
}

// RefundContext links a refund to the debit it compensates.
type RefundContext struct {
	OriginalTransactionID int64  `json:"originalTransactionId"`
	Reason                string `json:"reason,omitempty"`
}

func (BlogContext) Type() MetadataType   { return MetadataBlog }
func (ImageContext) Type() MetadataType  { return MetadataImage }
func (AdminNote) Type() MetadataType     { return MetadataAdmin }
func (RefundContext) Type() MetadataType { return MetadataRefund }

func (BlogContext) sealed()   {}
func (ImageContext) sealed()  {}
func (AdminNote) sealed()     {}
func (RefundContext) sealed() {}

// metadataEnvelope is the persisted and wire form of a Metadata value.
type metadataEnvelope struct {
	Type MetadataType    `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalMetadata encodes m as a tagged JSON envelope. A nil m encodes to nil.
func MarshalMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s metadata: %w", m.Type(), err)
	}
	return json.Marshal(metadataEnvelope{Type: m.Type(), Data: data})
}

// UnmarshalMetadata decodes an envelope produced by MarshalMetadata.
// Empty input and JSON null decode to a nil Metadata.
func UnmarshalMetadata(raw []byte) (Metadata, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var env metadataEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("invalid metadata envelope: %w", err)
	}

	var (
		m   Metadata
		err error
	)
	switch env.Type {
	case MetadataBlog:
		var v BlogContext
		err = json.Unmarshal(env.Data, &v)
		m = v
	case MetadataImage:
		var v ImageContext
		err = json.Unmarshal(env.Data, &v)
		m = v
	case MetadataAdmin:
		var v AdminNote
		err = json.Unmarshal(env.Data, &v)
		m = v
	case MetadataRefund:
		var v RefundContext
		err = json.Unmarshal(env.Data, &v)
		m = v
	default:
		return nil, fmt.Errorf("unknown metadata type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s metadata: %w", env.Type, err)
	}
	return m, nil
}

// ValidateMetadata checks that m is a variant allowed for kind. Nil metadata is always allowed.
func ValidateMetadata(kind OperationKind, m Metadata) error {
	if m == nil {
		return nil
	}
	var want MetadataType
	switch kind {
	case KindBlogGeneration:
		want = MetadataBlog
	case KindImageGeneration, KindImageEdit:
		want = MetadataImage
	case KindAdminAdd, KindAdminDeduct:
		want = MetadataAdmin
	case KindRefund:
		want = MetadataRefund
	default:
		return fmt.Errorf("unknown operation kind %q", kind)
	}
	if m.Type() != want {
		return fmt.Errorf("metadata of type %q is not allowed for %q operations", m.Type(), kind)
	}
	return nil
}
