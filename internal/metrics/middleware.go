package metrics

import (
	"github.com/gin-gonic/gin"
)

// RequestMiddleware はリクエスト数とエラー数（ステータス400以上）を記録する
func RequestMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		m.IncRequests()
		if c.Writer.Status() >= 400 {
			m.IncErrors()
		}
	}
}
