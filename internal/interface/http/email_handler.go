package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/perfume-storefront/internal/application"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/mailer"
	"github.com/oksasatya/perfume-storefront/pkg/response"
)

type EmailHandler struct {
	Queue   application.EmailQueue // nil when RabbitMQ is not configured
	Enabled bool
	Logger  *logrus.Logger
}

func NewEmailHandler(queue application.EmailQueue, enabled bool, logger *logrus.Logger) *EmailHandler {
	return &EmailHandler{Queue: queue, Enabled: enabled, Logger: logger}
}

type sendEmailRequest struct {
	To       string         `json:"to" binding:"required,email"`
	Template string         `json:"template"` // optional: universal, order_confirmation, order_status or a legacy account type
	Data     map[string]any `json:"data"`
	Subject  string         `json:"subject"` // required if no template
	Text     string         `json:"text"`
	HTML     string         `json:"html"`
}

// Send POST /api/admin/email/send enqueues an email job.
func (h *EmailHandler) Send(c *gin.Context) {
	var req sendEmailRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Template == "" && (req.Subject == "" || (req.Text == "" && req.HTML == "")) {
		fail(c, apperror.BadRequest("bad_request", "either template or subject with text/html is required"))
		return
	}
	if !h.Enabled || h.Queue == nil {
		response.Success[any](c, http.StatusAccepted, gin.H{"enqueued": false, "disabled": true}, "email sending disabled", nil)
		return
	}

	job := mailer.EmailJob{To: req.To}
	if req.Template != "" {
		job.Template = req.Template
		job.Data = req.Data
	} else {
		job.Subject = req.Subject
		job.Text = req.Text
		job.HTML = req.HTML
	}
	if err := h.Queue.Enqueue(c.Request.Context(), job); err != nil {
		h.Logger.WithError(err).Warn("failed to publish email job")
		fail(c, apperror.Unavailable("enqueue_failed", "failed to enqueue"))
		return
	}
	response.Success[any](c, http.StatusAccepted, gin.H{"enqueued": true}, "email enqueued", nil)
}
