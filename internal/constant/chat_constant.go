package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"

	// DefaultSessionTitle is used until the first question sets the title.
	DefaultSessionTitle = "New chat"

	// SessionTitleLimit caps the auto-set title length in runes.
	SessionTitleLimit = 60
)
