package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// FerryUtilization reports committed load for ?date=YYYY-MM-DD.
func (a API) FerryUtilization(c *gin.Context) {
	u, err := a.Svc.Ledger.Utilization(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
