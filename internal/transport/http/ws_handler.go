package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"lichsu-rewards-service/internal/app"
	"lichsu-rewards-service/internal/metrics"
)

// WSHandler plays quiz runs over a websocket and pushes point-total changes to the player.
type WSHandler struct {
	service  *app.QuizService
	ledger   *app.Ledger
	feed     *app.PointsFeed
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, ledger *app.Ledger, feed *app.PointsFeed) *WSHandler {
	return &WSHandler{
		service: service,
		ledger:  ledger,
		feed:    feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Option *int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}

// ServeWS upgrades the request and runs one quiz for the player until the socket closes.
// userId is optional; anonymous runs are played but never rewarded.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()
	ctx := r.Context()

	send := make(chan outboundMessage[any], 32)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer; after a failed write it keeps draining so emitters never block.
	go func() {
		defer close(writerDone)
		broken := false
		for msg := range send {
			if broken {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).WithField("quiz", quizID).Debug("ws write error")
				broken = true
				_ = conn.Close()
			}
		}
	}()
	emit := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}

	var updates <-chan app.PointsUpdate
	cancelFeed := func() {}
	if userID != "" && h.feed != nil {
		updates, cancelFeed = h.feed.Subscribe(userID)
		if h.ledger != nil {
			balance := h.ledger.GetBalance(ctx, userID)
			emit(outboundMessage[any]{Type: "points", Payload: app.PointsUpdate{UserID: userID, Total: balance.Total}})
		}
	}
	go func() {
		defer close(updatesDone)
		if updates == nil {
			return
		}
		for update := range updates {
			emit(outboundMessage[any]{Type: "points", Payload: update})
		}
	}()

	run, err := h.service.StartRun(ctx, quizID, userID, func(ev app.RunEvent) {
		emit(outboundMessage[any]{Type: string(ev.Type), Payload: ev})
	})
	if err != nil {
		_, message := errorStatus(err)
		emit(errorMessage(message))
	} else {
		metrics.ActiveQuizRuns.Inc()
		defer metrics.ActiveQuizRuns.Dec()
		h.readLoop(ctx, conn, run, emit)
	}

	close(closeSignals)
	if run != nil {
		run.Close()
	}
	cancelFeed()
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, run *app.QuizRun, emit func(outboundMessage[any])) {
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Option == nil {
				emit(errorMessage("Dữ liệu câu trả lời không hợp lệ"))
				continue
			}
			if err := run.Answer(ctx, *payload.Option); err != nil {
				_, message := errorStatus(err)
				emit(errorMessage(message))
			}
		case "purchase":
			run.Purchase(ctx)
		default:
			emit(errorMessage("Loại tin nhắn không được hỗ trợ"))
		}
	}
}
