package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	mailtpl "github.com/oksasatya/perfume-storefront/pkg/mailer/templates"
)

// Outcome tells the consumer what to do with a delivery.
type Outcome int

const (
	Ack Outcome = iota
	Drop
	Retry
)

// Worker renders and sends queued email jobs.
type Worker struct {
	sender   Sender
	resolver mailtpl.GeoResolver
	logger   *logrus.Logger
	timeout  time.Duration
}

func NewWorker(sender Sender, resolver mailtpl.GeoResolver, logger *logrus.Logger) *Worker {
	return &Worker{sender: sender, resolver: resolver, logger: logger, timeout: 15 * time.Second}
}

// Handle processes one raw job. Malformed or unrenderable jobs are dropped;
// send failures are retried.
func (w *Worker) Handle(ctx context.Context, body []byte) Outcome {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.logger.WithError(err).Warn("bad email job")
		return Drop
	}
	if strings.TrimSpace(job.To) == "" {
		w.logger.Warn("email job without recipient")
		return Drop
	}

	subject, text, html, err := w.Render(ctx, &job)
	if err != nil {
		w.logger.WithError(err).WithField("template", job.Template).Warn("render email failed")
		return Drop
	}

	c, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.sender.Send(c, job.To, subject, text, html); err != nil {
		w.logger.WithError(err).WithField("template", job.Template).Warn("send email failed")
		return Retry
	}
	return Ack
}

// Render resolves the job into subject, text and html parts.
func (w *Worker) Render(ctx context.Context, job *EmailJob) (subject, text, html string, err error) {
	if job.Template == "" {
		if job.Subject == "" || (job.Text == "" && job.HTML == "") {
			return "", "", "", errors.New("raw email needs subject and text or html")
		}
		return job.Subject, job.Text, job.HTML, nil
	}

	EnsureRecipientAndEmail(job)
	MapLegacyToUniversal(job)
	LocalizeTimesIfPossible(ctx, w.resolver, job.Data)

	if strings.EqualFold(job.Template, "universal") {
		html, err = mailtpl.RenderHTML("universal", job.Data)
		if err != nil {
			return "", "", "", fmt.Errorf("render universal: %w", err)
		}
		subject = job.Subject
		if subject == "" {
			subject = SubjectForUniversal(job.Data)
		}
		return subject, job.Text, html, nil
	}

	switch job.Template {
	case mailtpl.OrderConfirmation, mailtpl.OrderStatus:
	default:
		return "", "", "", fmt.Errorf("unknown template %q", job.Template)
	}
	return mailtpl.Render(job.Template, job.Data)
}
