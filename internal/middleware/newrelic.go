package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"

	"pmv/internal/domain"
)

// NewRelicErrorMiddleware reports errors attached to the request to the
// New Relic transaction started by nrgin, tagged with their error kind.
func NewRelicErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		txn := nrgin.Transaction(c)
		if txn == nil || len(c.Errors) == 0 {
			return
		}

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
			if kind := domain.KindOf(err.Err); kind != "" {
				txn.AddAttribute("error.kind", string(kind))
			}
		}
	}
}
