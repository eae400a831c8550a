package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// NewRelicMiddleware instruments requests with New Relic. A nil app
// disables instrumentation.
func NewRelicMiddleware(app *newrelic.Application) gin.HandlerFunc {
	if app == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return nrgin.Middleware(app)
}

// TagTransaction copies request identifiers onto the New Relic transaction
// so traces can be joined with logs. It must run after NewRelicMiddleware
// and RequestID.
func TagTransaction() gin.HandlerFunc {
	return func(c *gin.Context) {
		if txn := nrgin.Transaction(c); txn != nil {
			txn.AddAttribute("request_id", GetRequestID(c))
			if rideID := c.Param("id"); rideID != "" {
				txn.AddAttribute("entity_id", rideID)
			}
		}
		c.Next()

		if txn := nrgin.Transaction(c); txn != nil {
			for _, err := range c.Errors {
				txn.NoticeError(err.Err)
			}
		}
	}
}
