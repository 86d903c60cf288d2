package enums

// EncryptionKind tags the variant held by models.FragmentEncryption.
type EncryptionKind string

const (
	EncryptionNone   EncryptionKind = "none"
	EncryptionLegacy EncryptionKind = "legacy"
	EncryptionModern EncryptionKind = "modern"
)
