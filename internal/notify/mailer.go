// Package notify delivers the run report to operators by mail. Batch
// runs are unattended, so failures have to surface somewhere besides
// the log files.
package notify

import (
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/config"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/logger"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/runner"
)

// Mailer sends run reports over SMTP. Disabled when no host is
// configured.
type Mailer struct {
	cfg *config.Configuration
}

func NewMailer(cfg *config.Configuration) *Mailer {
	return &Mailer{cfg: cfg}
}

// Enabled reports whether mail delivery is configured.
func (m *Mailer) Enabled() bool {
	return m.cfg.SMTPHost != "" && m.cfg.MailFrom != "" && m.cfg.MailTo != ""
}

// SendReport mails the run summary. Failed runs get a FAILED subject
// so operators can filter on it. A mail delivery error is logged, not
// propagated: the run itself already succeeded or failed on its own.
func (m *Mailer) SendReport(report *runner.Report) {
	if !m.Enabled() {
		return
	}

	subject := fmt.Sprintf("Updater run OK (%d tenant iterations)", len(report.Outcomes))
	if report.HasFailures() {
		subject = fmt.Sprintf("Updater run FAILED (%d errors)", len(report.Errors))
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.MailFrom)
	msg.SetHeader("To", strings.Split(m.cfg.MailTo, ",")...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", report.Summary())

	dialer := gomail.NewDialer(m.cfg.SMTPHost, m.cfg.SMTPPort, m.cfg.SMTPUsername, m.cfg.SMTPPassword)
	if err := dialer.DialAndSend(msg); err != nil {
		logger.GetErrorLogger().WithError(err).Error("Failed to send run report mail")
		return
	}
	logger.GetAppLogger().Info("Run report mail sent")
}
