package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cleanrag/internal/completion"
	"cleanrag/internal/domain"
	"cleanrag/internal/service"
)

const (
	msgEmptyMessage   = "메시지를 입력해주세요."
	msgMessageTooLong = "메시지가 너무 깁니다. 1000자 이내로 입력해주세요."
	msgInvalidRequest = "요청 형식이 올바르지 않습니다."
	msgConfiguration  = "OPENROUTER_API_KEY 환경 변수가 설정되지 않았습니다. 서버 설정을 확인해주세요."
	msgAuth           = "AI 서비스 인증에 실패했습니다. API 키 또는 잔액을 확인해주세요."
	msgRateLimited    = "요청이 많아 잠시 처리할 수 없습니다. 잠시 후 다시 시도해주세요."
	msgUpstream       = "AI 서비스 호출에 실패했습니다. 잠시 후 다시 시도해주세요."
	msgTimeout        = "응답 시간이 초과되었습니다. 잠시 후 다시 시도해주세요."
	msgInternal       = "죄송합니다. 잠시 후 다시 시도해주세요."
)

type chatRequest struct {
	Message string `json:"message"`
	Zipcode string `json:"zipcode"`
}

func (s *Server) chatHandler(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(c, http.StatusBadRequest, msgEmptyMessage)
		return
	}
	if utf8.RuneCountInString(req.Message) > domain.MaxMessageLength {
		writeError(c, http.StatusBadRequest, msgMessageTooLong)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	reply, err := s.chat.ProcessChat(ctx, domain.Query{Message: req.Message, Zipcode: req.Zipcode})
	if err != nil {
		status, msg := classify(err)
		s.logger.Error("chat failed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Int("status", status),
			zap.Error(err),
		)
		writeError(c, status, msg)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// classify maps a pipeline error to an HTTP status and a user-facing message.
func classify(err error) (int, string) {
	var ce *completion.Error
	switch {
	case errors.Is(err, service.ErrInvalidQuery):
		return http.StatusBadRequest, msgInvalidRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, msgTimeout
	case errors.Is(err, completion.ErrConfiguration):
		return http.StatusBadRequest, msgConfiguration
	case errors.Is(err, completion.ErrAuth):
		if errors.As(err, &ce) && ce.Status == http.StatusPaymentRequired {
			return http.StatusPaymentRequired, msgAuth
		}
		return http.StatusUnauthorized, msgAuth
	case errors.Is(err, completion.ErrRateLimited):
		return http.StatusServiceUnavailable, msgRateLimited
	case errors.Is(err, completion.ErrBadRequest), errors.Is(err, completion.ErrUpstream):
		return http.StatusBadGateway, msgUpstream
	}
	return http.StatusInternalServerError, msgInternal
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
