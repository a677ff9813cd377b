package lobby

import (
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

// matchResultPayload is POSTed to the operator-configured webhook URL
// when a match finishes, adapted from the teacher's resty-based
// restClient (client/rest.go) — there it polled a lobby's REST API on a
// ticker; here the same client is reused to push, best-effort, rather
// than poll.
type matchResultPayload struct {
	RoomID int    `json:"roomId"`
	User1  string `json:"user1"`
	Score1 int    `json:"score1"`
	User2  string `json:"user2"`
	Score2 int    `json:"score2"`
}

// webhookNotifier posts match completions to a single configured URL. A
// blank URL makes Notify a no-op, matching how the Lobby's webhook
// feature is entirely optional.
type webhookNotifier struct {
	rest   *resty.Client
	url    string
	logger *log.Entry
}

func newWebhookNotifier(url string, logger *log.Entry) *webhookNotifier {
	client := resty.New().SetTimeout(5 * time.Second)
	return &webhookNotifier{rest: client, url: url, logger: logger}
}

// Notify fires the POST in its own goroutine; a failure is logged and
// otherwise has no effect on match lifecycle, matching spec.md's
// "best-effort, never on the critical path" requirement for operator
// notifications.
func (w *webhookNotifier) Notify(payload matchResultPayload) {
	if w.url == "" {
		return
	}
	go func() {
		resp, err := w.rest.R().SetBody(payload).Post(w.url)
		if err != nil {
			w.logger.WithError(err).WithField("url", w.url).Warn("webhook delivery failed")
			return
		}
		if resp.IsError() {
			w.logger.WithField("url", w.url).WithField("status", resp.StatusCode()).Warn("webhook rejected")
		}
	}()
}
