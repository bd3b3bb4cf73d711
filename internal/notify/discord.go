package notify

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordClient abstracts the discordgo session methods we use.
type discordClient interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts digests to a Discord channel.
type DiscordNotifier struct {
	client    discordClient
	channelID string
}

// NewDiscord returns a Discord notifier using a bot token.
func NewDiscord(token, channelID string) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("notify: discord session: %w", err)
	}
	return &DiscordNotifier{client: session, channelID: channelID}, nil
}

// Name identifies the destination in logs.
func (n *DiscordNotifier) Name() string { return "discord" }

// Send posts text to the configured channel.
func (n *DiscordNotifier) Send(text string) error {
	if _, err := n.client.ChannelMessageSend(n.channelID, text); err != nil {
		return fmt.Errorf("notify: discord send to %s: %w", n.channelID, err)
	}
	return nil
}
