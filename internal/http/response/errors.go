package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainwatch-backend/internal/platform/apierr"
)

var errInternal = errors.New("internal error")

// RespondAPIError writes err with the status its domain code maps to. A 500
// keeps its cause in the gin context and shows a generic message.
func RespondAPIError(c *gin.Context, err error) {
	ae := apierr.FromAggregate(err)
	if ae == nil {
		ae = apierr.New(http.StatusInternalServerError, "internal_error", nil)
	}
	if ae.Status == http.StatusInternalServerError {
		if err != nil {
			_ = c.Error(err)
		}
		RespondError(c, ae.Status, ae.Code, errInternal)
		return
	}
	RespondError(c, ae.Status, ae.Code, ae)
}
