package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"droplink/internal/notify"
	"droplink/internal/share"
)

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}

// failShareError 把生命周期错误映射为约定的状态码。
func failShareError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, share.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, share.ErrOwnerNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, share.ErrUnavailable):
		fail(c, http.StatusForbidden, err.Error())
	case errors.Is(err, share.ErrExpired):
		fail(c, http.StatusGone, err.Error())
	case errors.Is(err, share.ErrPasswordRequired):
		fail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, share.ErrIncorrectPassword):
		fail(c, http.StatusForbidden, err.Error())
	case errors.Is(err, share.ErrNotProtected),
		errors.Is(err, share.ErrAlreadyDeleted),
		errors.Is(err, share.ErrInvalidStatus),
		errors.Is(err, share.ErrNoChange):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, notify.ErrNotificationFailed):
		fail(c, http.StatusInternalServerError, err.Error())
	default:
		fail(c, http.StatusInternalServerError, "内部错误")
	}
}
