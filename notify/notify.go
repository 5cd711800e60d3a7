// Package notify sends the secret-key change emails to administrators and
// escalates failed deliveries to a fixed operator address.
package notify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	changedSubject    = "Secret Key Changed"
	escalationSubject = "Error Sending Secret Key Notification"
)

// Mailer delivers one plain-text message to one recipient.
type Mailer interface {
	Send(to, subject, body string) error
}

// Site identifies the installation in outgoing messages.
type Site struct {
	Name string
	URL  string
}

// WhitelistURL is the link that whitelists the visitor's IP for key.
func (s Site) WhitelistURL(key string) string {
	return strings.TrimRight(s.URL, "/") + "/?key=" + url.QueryEscape(key)
}

// Outcome records what happened for one recipient.
type Outcome struct {
	Recipient string
	Err       error
	// Escalated is true when the operator was successfully told about Err.
	Escalated bool
}

type Dispatcher struct {
	mailer   Mailer
	site     Site
	operator string
	logger   *log.Logger
}

func NewDispatcher(mailer Mailer, site Site, operator string, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		mailer:   mailer,
		site:     site,
		operator: operator,
		logger:   logger,
	}
}

// Notify makes exactly one delivery attempt per recipient. A failed delivery
// triggers one escalation message to the operator; a failed escalation is
// only logged.
func (d *Dispatcher) Notify(newKey string, recipients []string, actor string) []Outcome {
	body := d.changedBody(newKey)
	outcomes := make([]Outcome, 0, len(recipients))

	for _, to := range recipients {
		to = strings.TrimSpace(to)
		if to == "" {
			continue
		}
		o := Outcome{Recipient: to}
		if err := d.mailer.Send(to, changedSubject, body); err != nil {
			o.Err = fmt.Errorf("notification to %s failed: %w", to, err)
			d.logger.Warn("key change notification failed", "recipient", to, "err", err)
			o.Escalated = d.escalate(to, actor, newKey)
		} else {
			d.logger.Info("key change notification sent", "recipient", to)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (d *Dispatcher) escalate(failed, actor, newKey string) bool {
	if d.operator == "" {
		d.logger.Error("no operator address configured, escalation dropped", "recipient", failed)
		return false
	}
	body := fmt.Sprintf("There was an error sending the new secret key to the selected admin.\n\n"+
		"Website Name: %s\n"+
		"Website URL: %s\n"+
		"User Email: %s\n"+
		"Failed Recipient: %s\n"+
		"New Key: %s\n\n"+
		"Please check the email configuration.",
		d.site.Name, d.site.URL, actor, failed, newKey)
	if err := d.mailer.Send(d.operator, escalationSubject, body); err != nil {
		d.logger.Error("escalation failed", "operator", d.operator, "recipient", failed, "err", err)
		return false
	}
	return true
}

func (d *Dispatcher) changedBody(newKey string) string {
	var b strings.Builder
	b.WriteString("Hello Admin,\n\n")
	fmt.Fprintf(&b, "The secret key for IP restriction on '%s' has been updated. Below are the details:\n\n", d.site.Name)
	fmt.Fprintf(&b, "- New Secret Key: %s\n", newKey)
	fmt.Fprintf(&b, "- Full Whitelist URL: %s\n\n", d.site.WhitelistURL(newKey))
	b.WriteString("Please use the URL above if your IP address is not currently whitelisted.\n")
	b.WriteString("Once visited, it will be added to the allowed IP list.\n\n")
	b.WriteString("Best regards,\n")
	fmt.Fprintf(&b, "The Team at %s\n", d.site.Name)
	fmt.Fprintf(&b, "%s\n", d.site.URL)
	return b.String()
}
