package services

import (
	"context"
	"fmt"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Notifier is told about payout status changes after they are committed.
type Notifier interface {
	PayoutChanged(ctx context.Context, rep *models.SalesRepresentative, payout *models.CommissionPayout) error
}

// Notifiers fans a change out to every notifier, logging failures.
type Notifiers struct {
	targets []Notifier
	log     *logrus.Entry
}

func NewNotifiers(log *logrus.Logger, targets ...Notifier) *Notifiers {
	return &Notifiers{targets: targets, log: log.WithField("component", "notifier")}
}

func (n *Notifiers) PayoutChanged(ctx context.Context, rep *models.SalesRepresentative, payout *models.CommissionPayout) error {
	for _, t := range n.targets {
		if err := t.PayoutChanged(ctx, rep, payout); err != nil {
			n.log.WithError(err).WithFields(logrus.Fields{
				"payoutId":   payout.ID.Hex(),
				"salesRepId": rep.ID.Hex(),
				"target":     fmt.Sprintf("%T", t),
			}).Warn("payout notification failed")
		}
	}
	return nil
}

// Mailer sends payout statements by email.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(host string, port int, user, password, from string) *Mailer {
	return &Mailer{dialer: gomail.NewDialer(host, port, user, password), from: from}
}

// PayoutChanged mails a statement once a payout is paid or reversed.
func (m *Mailer) PayoutChanged(_ context.Context, rep *models.SalesRepresentative, payout *models.CommissionPayout) error {
	if rep.Email == "" || payout.Status == models.PayoutDraft {
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", rep.Email)
	msg.SetHeader("Subject", payoutSubject(payout))
	msg.SetBody("text/plain", payoutStatement(rep, payout))
	return m.dialer.DialAndSend(msg)
}

func payoutSubject(p *models.CommissionPayout) string {
	switch p.Status {
	case models.PayoutPaid:
		return fmt.Sprintf("Commission payout %s paid", p.Reference)
	case models.PayoutReversed:
		return "Commission payout reversed"
	}
	return "Commission payout prepared"
}

func payoutStatement(rep *models.SalesRepresentative, p *models.CommissionPayout) string {
	body := fmt.Sprintf("Hello %s,\n\n", rep.FullName)
	body += fmt.Sprintf("Payout status: %s\n", p.Status)
	body += fmt.Sprintf("Earnings included: %d\n", len(p.EarningIDs))
	body += fmt.Sprintf("Gross amount: %s %s\n", p.GrossAmount.StringFixed(2), p.Currency)
	body += fmt.Sprintf("Advance deduction: %s %s\n", p.AdvanceDeduction.StringFixed(2), p.Currency)
	body += fmt.Sprintf("Net amount: %s %s\n", p.NetAmount.StringFixed(2), p.Currency)
	if p.Reference != "" {
		body += fmt.Sprintf("Reference: %s\n", p.Reference)
	}
	if p.ReversalReason != "" {
		body += fmt.Sprintf("Reversal reason: %s\n", p.ReversalReason)
	}
	return body
}
