// Package alerts notifies the operations team when high-severity complaints
// arrive. Slack is the delivery channel; a Noop notifier covers deployments
// without one.
package alerts

import (
	"context"
	"fmt"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/dhvanip/nagarseva/internal/models"
)

// Notifier delivers out-of-band alerts for complaints that need immediate
// attention.
type Notifier interface {
	ComplaintAlert(ctx context.Context, c *models.Complaint) error
}

// MinSeverityMet reports whether a complaint's severity reaches the alert
// threshold.
func MinSeverityMet(severity, min string) bool {
	rank := map[string]int{
		models.SeverityLow:      0,
		models.SeverityMedium:   1,
		models.SeverityHigh:     2,
		models.SeverityCritical: 3,
	}
	return rank[severity] >= rank[min]
}

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackNotifier posts complaint alerts to a Slack channel as colored
// attachments.
type SlackNotifier struct {
	client  slackClient
	channel string
}

// SlackOpts holds parameters for creating a SlackNotifier.
type SlackOpts struct {
	Token   string // xoxb-... Slack bot token
	Channel string // target channel ID
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a SlackNotifier.
func NewSlack(opts SlackOpts) (*SlackNotifier, error) {
	if opts.Channel == "" {
		return nil, fmt.Errorf("alerts: slack channel is required")
	}
	if opts.Client == nil && opts.Token == "" {
		return nil, fmt.Errorf("alerts: slack token is required")
	}
	n := &SlackNotifier{client: opts.Client, channel: opts.Channel}
	if n.client == nil {
		n.client = slackapi.New(opts.Token)
	}
	return n, nil
}

// severityColors maps complaint severity to the Slack sidebar color.
var severityColors = map[string]string{
	models.SeverityCritical: "#d32f2f",
	models.SeverityHigh:     "#f57c00",
	models.SeverityMedium:   "#fbc02d",
	models.SeverityLow:      "#388e3c",
}

// ComplaintAlert posts the complaint to the configured channel.
func (n *SlackNotifier) ComplaintAlert(ctx context.Context, c *models.Complaint) error {
	att := slackapi.Attachment{
		Color: severityColors[c.Severity],
		Title: fmt.Sprintf("%s complaint %s", c.Severity, c.ID),
		Text:  c.Description,
		Fields: []slackapi.AttachmentField{
			{Title: "Category", Value: c.CategoryLabel, Short: true},
			{Title: "Ward", Value: fmt.Sprintf("%d", c.WardID), Short: true},
			{Title: "Officer", Value: c.WardOfficer, Short: true},
			{Title: "Reported", Value: c.CreatedAt.Format(time.RFC3339), Short: true},
		},
	}
	if c.Address != "" {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: "Location", Value: c.Address,
		})
	}

	_, _, err := n.client.PostMessage(n.channel,
		slackapi.MsgOptionText(fmt.Sprintf("New %s severity complaint in ward %d", c.Severity, c.WardID), false),
		slackapi.MsgOptionAttachments(att),
	)
	if err != nil {
		return fmt.Errorf("alerts: post message: %w", err)
	}
	return nil
}

// Noop is a Notifier that discards alerts.
type Noop struct{}

func (Noop) ComplaintAlert(ctx context.Context, c *models.Complaint) error { return nil }
