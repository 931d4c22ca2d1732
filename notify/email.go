// Package notify reports finished harvest jobs to the recipients configured
// on each source.
package notify

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"

	mail "github.com/go-mail/mail/v2"
	"github.com/pkg/errors"

	"github.com/openharvest/harvestmux/harvester"
	"github.com/openharvest/harvestmux/model"
)

// EmailNotifier sends a job outcome summary over SMTP to the source's
// notification_emails. Delivery is best effort: a failure is returned for
// logging but never alters the job outcome.
type EmailNotifier struct{}

func (EmailNotifier) JobFinished(source *model.HarvestSource, job *model.HarvestJob, counts harvester.JobCounts) error {
	to := source.NotificationRecipients()
	if len(to) == 0 {
		return nil
	}

	host := os.Getenv("SMTP_HOST")
	from := os.Getenv("SMTP_FROM")
	if host == "" || from == "" {
		return errors.New("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}
	port, _ := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if port == 0 {
		port = 587
	}

	m := mail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", fmt.Sprintf("harvest job %s for %s", job.Status, source.Name))
	m.SetBody("text/plain", summaryBody(source, job, counts))

	d := mail.NewDialer(host, port, os.Getenv("SMTP_USER"), os.Getenv("SMTP_PASS"))
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: os.Getenv("SMTP_SKIP_TLS_VERIFY") == "1",
	}

	return d.DialAndSend(m)
}

func summaryBody(source *model.HarvestSource, job *model.HarvestJob, counts harvester.JobCounts) string {
	if job.Status == model.JobStatusError {
		return fmt.Sprintf(
			"Harvest job %s for source %q (%s) failed.\nNo records were processed; see the job errors for details.\n",
			job.Id, source.Name, source.Url)
	}
	return fmt.Sprintf(
		"Harvest job %s for source %q (%s) finished with status %s.\n\ncreated: %d\nupdated: %d\ndeleted: %d\nrecords with errors: %d\n",
		job.Id, source.Name, source.Url, job.Status,
		counts.Created, counts.Updated, counts.Deleted, counts.Errored)
}
