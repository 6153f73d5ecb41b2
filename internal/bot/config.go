package bot

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Long polling timeout in seconds
	PollTimeout int
	// Users allowed to run /import
	AdminUserIDs []int64
	// Roles accepted in imported question files; any role when empty
	ImportRoles []string
	// Largest question file accepted over chat, in bytes
	MaxImportSize int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		PollTimeout:   60,
		MaxImportSize: 5 << 20,
	}
}
