package enums

type ResponseType string

const (
	ResponseTypeArrayBuffer ResponseType = "arraybuffer"
	ResponseTypeText        ResponseType = "text"
)
