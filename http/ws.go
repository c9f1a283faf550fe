package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"companystatus/frame"
	"companystatus/monitoring"
)

const (
	socketWriteWait    = 30 * time.Second
	socketMaxMessage   = 1 << 20
	socketIdleDeadline = 5 * time.Minute
)

// socketResponse 单条WebSocket预测回复
type socketResponse struct {
	Prediction string       `json:"prediction,omitempty"`
	Reconciled *frame.Table `json:"reconciled,omitempty"`
	Display    *frame.Table `json:"display,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// handlePredictSocket 交互式预测通道，每条消息对应一次单记录预测
func (h *Handlers) handlePredictSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	requestID := GetRequestID(r.Context())
	conn.SetReadLimit(socketMaxMessage)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(socketIdleDeadline))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.String("request_id", requestID), zap.Error(err))
			}
			return
		}

		reply := h.answer(payload)
		if reply.Error != "" {
			h.logger.Info("websocket prediction rejected", zap.String("request_id", requestID), zap.String("error", reply.Error))
		}

		_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Warn("websocket write failed", zap.String("request_id", requestID), zap.Error(err))
			return
		}
	}
}

func (h *Handlers) answer(payload []byte) socketResponse {
	var req predictRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.metrics.RecordFailure(monitoring.ChannelSocket, "bad_request")
		return socketResponse{Error: fmt.Sprintf("decode request: %v", err)}
	}
	resp, err := h.predictRecord(monitoring.ChannelSocket, req.Record)
	if err != nil {
		return socketResponse{Error: err.Error()}
	}
	return socketResponse{
		Prediction: resp.Prediction,
		Reconciled: resp.Reconciled,
		Display:    resp.Display,
	}
}
