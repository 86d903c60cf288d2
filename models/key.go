package models

// LegacyKey points to a raw AES-128 key blob
// and carries the IV used for CBC decryption
type LegacyKey struct {
	URI string `json:"uri"`
	IV  []byte `json:"iv"`
}

// ModernKey describes in-band encryption (SAMPLE-AES, CENC, ...)
// which is not decrypted by this module
type ModernKey struct {
	Method    string `json:"method"`
	KeyFormat string `json:"key_format"`
}
