package notify

import (
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackNotifier posts digests to a Slack channel.
type SlackNotifier struct {
	client  slackClient
	channel string
}

// NewSlack returns a Slack notifier for the given bot token and channel ID.
func NewSlack(token, channel string) *SlackNotifier {
	return &SlackNotifier{
		client:  slackapi.New(token),
		channel: channel,
	}
}

// Name identifies the destination in logs.
func (n *SlackNotifier) Name() string { return "slack" }

// Send posts text to the configured channel.
func (n *SlackNotifier) Send(text string) error {
	_, _, err := n.client.PostMessage(n.channel, slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify: slack post to %s: %w", n.channel, err)
	}
	return nil
}
