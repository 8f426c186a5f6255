package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader はリクエストIDを受け渡すヘッダー
const RequestIDHeader = "X-Request-ID"

// RequestLogger はリクエストごとにメソッド、パス、ステータス、処理時間、サイズを記録する
// リクエストIDがなければ採番してレスポンスヘッダーに付与する
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		log.Info("request",
			slog.String("request_id", requestID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Int("duration_ms", int(time.Since(start).Milliseconds())),
			slog.Int("size", c.Writer.Size()),
		)
	}
}
