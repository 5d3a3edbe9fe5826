package utils

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

func GetActiveAdmin(ctx *gin.Context) (TokenObject, error) {
	value, exists := ctx.Get("admin")
	if !exists {
		return TokenObject{}, fmt.Errorf("error occurred, not authorized to access this resource")
	}

	admin, ok := value.(TokenObject)
	if !ok {
		return TokenObject{}, fmt.Errorf("an error occurred")
	}

	return admin, nil
}
