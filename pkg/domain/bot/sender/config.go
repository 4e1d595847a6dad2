package sender

import "time"

// ProcessorConfig configures the channel sender. ChannelID is the channel's
// @username as accepted by NewMessageToChannel.
type ProcessorConfig struct {
	ChannelID string
	Attempts  int
	Backoff   time.Duration // doubled after every failed attempt
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = time.Second
	}
	return c
}
