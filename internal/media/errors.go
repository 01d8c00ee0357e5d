package media

// Error is a failure whose text is safe to show to the requesting user.
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrUnknownTrack          Error = "Could not find that song!"
	ErrNoVoiceChannel        Error = "You must be in a voice channel!"
	ErrDifferentVoiceChannel Error = "You must be in the same voice channel as the bot!"
	ErrGuildOnly             Error = "This command can only be used in a server!"
)
