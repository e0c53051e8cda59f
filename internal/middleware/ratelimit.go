package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	limiter "github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimit returns a per-IP rate limiting middleware backed by an
// in-memory store. Applied to the REST surface and the websocket
// upgrade route to absorb pre-auth abuse; per-connection limits inside
// the realtime hub are a separate concern.
func RateLimit(requestsPerMinute int64) gin.HandlerFunc {
	rate := limiter.Rate{
		Period: time.Minute,
		Limit:  requestsPerMinute,
	}

	return mgin.NewMiddleware(limiter.New(memory.NewStore(), rate))
}
