package api

import (
	"net/http"

	"fftransform/ffmpeg"
	"fftransform/logging"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the JSON envelope for every failed request.
type ErrorResponse struct {
	Error  ffmpeg.Kind `json:"error"`
	Detail string      `json:"detail"`
}

func statusFor(kind ffmpeg.Kind) int {
	switch kind {
	case ffmpeg.KindInvalidDirective, ffmpeg.KindInvalidInput:
		return http.StatusBadRequest
	case ffmpeg.KindProcessFailure, ffmpeg.KindMissingOutput:
		return http.StatusUnprocessableEntity
	case ffmpeg.KindUnauthorized:
		return http.StatusUnauthorized
	case ffmpeg.KindNotFound:
		return http.StatusNotFound
	case ffmpeg.KindInvalidState:
		return http.StatusConflict
	case ffmpeg.KindOverloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the envelope for err. Internal errors are logged with
// their full text and reported to the client generically.
func respondError(c *gin.Context, err error) {
	kind := ffmpeg.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		logger := logging.FromContext(c.Request.Context(), logging.WithComponent("api"))
		logger.Error().Err(err).Str(logging.FieldKind, string(kind)).Str(logging.FieldRoute, c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: kind, Detail: ffmpeg.DetailOf(err)})
}
