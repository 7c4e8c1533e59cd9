package http

import "github.com/gin-gonic/gin"

// ErrorResponse 写入 {"error": message} 并终止后续处理
func ErrorResponse(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}
