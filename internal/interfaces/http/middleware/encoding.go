package middleware

import (
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// EnsureUTF8Body 把非 UTF-8 的请求体转成 UTF-8
// Windows 终端下 curl 发送的中文查询常是 GBK 编码，直接进 JSON 解析会失败。
// 无法转换时保留原始字节，交给后续处理报错。
func EnsureUTF8Body() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.ContentLength == 0 {
			c.Next()
			return
		}

		raw, err := io.ReadAll(c.Request.Body)
		c.Request.Body.Close()
		if err != nil {
			c.Next()
			return
		}

		body := raw
		if len(raw) > 0 && !utf8.Valid(raw) {
			if converted, convErr := gbkToUTF8(raw); convErr == nil && utf8.Valid(converted) {
				body = converted
				c.Request.ContentLength = int64(len(converted))
			}
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// gbkToUTF8 按 GBK 解码字节序列
func gbkToUTF8(src []byte) ([]byte, error) {
	reader := transform.NewReader(bytes.NewReader(src), simplifiedchinese.GBK.NewDecoder())
	return io.ReadAll(reader)
}
