package handlers

import (
	"net/http"
	"strings"

	"github.com/wolfman30/bloodlab-platform/internal/notify"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// AdminNotificationsHandler lets staff check the notification channel.
type AdminNotificationsHandler struct {
	sink    notify.Sink
	channel string
	logger  *logging.Logger
}

// NewAdminNotificationsHandler creates a new admin notifications handler.
// channel is reported back so staff can see which provider is live.
func NewAdminNotificationsHandler(sink notify.Sink, channel string, logger *logging.Logger) *AdminNotificationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminNotificationsHandler{sink: sink, channel: channel, logger: logger}
}

// TestNotificationRequest names the phone or email to send the test greeting to.
type TestNotificationRequest struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// TestNotificationResponse reports the outcome of a test send.
type TestNotificationResponse struct {
	Success    bool   `json:"success"`
	MessageID  string `json:"messageId,omitempty"`
	Error      string `json:"error,omitempty"`
	Channel    string `json:"channel"`
	Configured bool   `json:"configured"`
}

// SendTest sends a greeting synchronously and returns the provider result.
// POST /api/admin/notifications/test
func (h *AdminNotificationsHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	var req TestNotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	if req.Phone == "" && req.Email == "" {
		jsonError(w, "Phone number required", http.StatusBadRequest)
		return
	}
	resp := TestNotificationResponse{Channel: h.channel, Configured: h.sink != nil}
	if h.sink == nil {
		resp.Error = "notifications not configured"
		writeJSON(w, http.StatusOK, resp)
		return
	}
	user := records.User{ID: "test", Name: "Test User", Phone: req.Phone, Email: req.Email, Status: records.UserActive}
	res := h.sink.Send(r.Context(), user, notify.KindGreeting, notify.TemplateData{})
	resp.Success = res.Success
	resp.MessageID = res.MessageID
	resp.Error = res.Error
	if res.Channel != "" {
		resp.Channel = res.Channel
	}
	h.logger.Info("test notification sent", "success", res.Success, "channel", resp.Channel)
	writeJSON(w, http.StatusOK, resp)
}
