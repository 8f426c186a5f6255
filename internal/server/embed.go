package server

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

// indexHTML はストリームと操作ボタンを表示するビューア
//
//go:embed web/index.html
var indexHTML []byte

// serveIndex はビューアを返す
func serveIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}
