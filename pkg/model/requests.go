package model

// TargetKind selects the collaborator route for a transfer: asset uploads
// and invocation input uploads are paired and pulled separately.
type TargetKind string

const (
	TargetAsset TargetKind = "asset"
	TargetInput TargetKind = "input"
)

// EntityRefs identifies the entity an uploaded item belongs to. Asset refs
// fill AssetID and AssetName; input refs fill InvocationID, InputID and
// SignatureID.
type EntityRefs struct {
	Kind         TargetKind `json:"-"`
	AccountID    string     `json:"account_id"`
	ModelID      string     `json:"model_id"`
	AssetID      string     `json:"asset_id,omitempty"`
	AssetName    AssetName  `json:"asset_name,omitempty"`
	InvocationID string     `json:"invocation_id,omitempty"`
	InputID      string     `json:"input_id,omitempty"`
	SignatureID  string     `json:"signature_id,omitempty"`
}

// EntityID is the ID of the uploaded entity itself.
func (r EntityRefs) EntityID() string {
	if r.Kind == TargetAsset {
		return r.AssetID
	}
	return r.InputID
}

// AssetRefs builds refs for a model asset.
func AssetRefs(a ModelAsset) EntityRefs {
	return EntityRefs{
		Kind:      TargetAsset,
		AccountID: a.AccountID,
		ModelID:   a.ModelID,
		AssetID:   a.ID,
		AssetName: a.AssetName,
	}
}

// InputRefs builds refs for an invocation input.
func InputRefs(in InvocationInput) EntityRefs {
	return EntityRefs{
		Kind:         TargetInput,
		AccountID:    in.AccountID,
		ModelID:      in.ModelID,
		InvocationID: in.InvocationID,
		InputID:      in.ID,
		SignatureID:  in.SignatureID,
	}
}

// PairingRequest asks the push transport for a channel. FileSizeInBytes
// must equal the number of bytes that will be written.
type PairingRequest struct {
	EntityRefs
	FileSizeInBytes int64 `json:"file_size_in_bytes"`
}

// ChecksumRequest finalizes a transfer with the digest of the bytes sent.
type ChecksumRequest struct {
	PairingID string `json:"pairing_id"`
	Checksum  string `json:"checksum"`
}

// LinkRequest hands URLs to the pull collaborator, which fetches them itself.
type LinkRequest struct {
	EntityRefs
	Links []string `json:"links"`
}

// OutputRequest addresses one invocation output for retrieval.
type OutputRequest struct {
	AccountID    string `json:"account_id"`
	ModelID      string `json:"model_id"`
	InvocationID string `json:"invocation_id"`
	OutputID     string `json:"output_id"`
}

// APIKeyRequest registers an API key; SecondToken is the second factor.
type APIKeyRequest struct {
	AccountID   string `json:"account_id"`
	SecondToken string `json:"second_token"`
}
