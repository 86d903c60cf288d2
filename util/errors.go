package util

type Error struct {
	Message string
}

func (err *Error) Error() string {
	return err.Message
}

var (
	ErrUnsupportedEncryption = &Error{Message: "fragment uses in-band encryption which is not supported"}
	ErrInvalidEncryption     = &Error{Message: "fragment encryption metadata is inconsistent"}
	ErrKeyFetch              = &Error{Message: "failed to fetch decryption key"}
	ErrDecryption            = &Error{Message: "failed to decrypt fragment"}
	ErrMaterialization       = &Error{Message: "failed to read fragment payload"}
	ErrRequesterDestroyed    = &Error{Message: "fragment requester is destroyed"}
	ErrDecrypterDestroyed    = &Error{Message: "decrypter is destroyed"}
	ErrAborted               = &Error{Message: "request aborted"}
	ErrUnexpectedStatus      = &Error{Message: "unexpected status code"}
	ErrFileTooLarge          = &Error{Message: "file is too large for in-memory download"}
	ErrUnsupportedPlaylist   = &Error{Message: "unsupported m3u8 playlist type"}
	ErrSessionClosed         = &Error{Message: "session is closed"}
)
