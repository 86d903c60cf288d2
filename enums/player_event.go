package enums

type PlayerEvent string

const (
	EventFragmentUpdate PlayerEvent = "fragment_update"
)
