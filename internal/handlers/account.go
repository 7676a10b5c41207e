package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"coursehub/internal/media/sniffer"
	"coursehub/internal/service"
)

func (h HandlerSet) Me(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": newAccountResponse(account)})
}

// multipart framing on top of the avatar itself
const multipartOverhead = 64 << 10

func (h HandlerSet) UploadAvatar(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Storage.MaxAvatarSize+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, service.ErrAvatarTooLarge)
			return
		}
		badRequest(c, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer file.Close()

	avatar, err := h.accounts.UploadAvatar(c.Request.Context(), account, service.AvatarUpload{
		Body:         file,
		DeclaredType: sniffer.MimeTypeFromHTTP(http.Header(fileHeader.Header)),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatar": avatarResponse{PublicID: avatar.PublicID, URL: avatar.URL}})
}
