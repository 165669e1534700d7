// Command mock-collector runs a local HTTP Event Collector endpoint for
// development and integration testing. It answers the same ack protocol as a
// real collector: token checks, success acks and (optionally) injected
// service errors.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type collector struct {
	token string

	// Rate limiting specific
	limiters   map[string]*rate.Limiter
	limiterMu  sync.Mutex
	rateLimit  rate.Limit
	burstLimit int

	// failEvery > 0 makes every Nth request answer with a service error ack.
	failEvery int64
	requests  atomic.Int64
}

func main() {
	addr := flag.String("addr", "localhost:8088", "Listen address")
	token := flag.String("token", "00000000-0000-0000-0000-000000000000", "Accepted collector token")
	ratePerMinute := flag.Int("rate-limit", 0, "Max requests per minute per client IP (0 = unlimited)")
	failEvery := flag.Int64("fail-every", 0, "Answer every Nth request with a service error ack (0 = never)")
	mode := flag.String("mode", "debug", "Gin mode: debug or production")
	flag.Parse()

	if *mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	c := &collector{
		token:     *token,
		limiters:  make(map[string]*rate.Limiter),
		failEvery: *failEvery,
	}

	if *ratePerMinute > 0 {
		// Convert requests per minute to requests per second
		c.rateLimit = rate.Limit(float64(*ratePerMinute) / 60.0)
		c.burstLimit = *ratePerMinute
		fmt.Printf("[INFO] Rate limiting enabled: Rate=%.2f req/sec, Burst=%d\n", c.rateLimit, c.burstLimit)
	} else {
		c.rateLimit = rate.Inf
		c.burstLimit = 0
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	group := router.Group("/services/collector")
	if c.rateLimit != rate.Inf {
		group.Use(c.rateLimitMiddleware())
	}
	group.POST("/event/1.0", c.handleEvent)
	group.POST("/event", c.handleEvent)

	fmt.Printf("[INFO] Starting mock collector on %s\n", *addr)
	if err := router.Run(*addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: server failed: %v\n", err)
		os.Exit(1)
	}
}

func (c *collector) handleEvent(ctx *gin.Context) {
	auth := ctx.GetHeader("Authorization")
	if auth != "Splunk "+c.token {
		ctx.JSON(http.StatusForbidden, gin.H{"text": "Invalid token", "code": 4})
		return
	}

	// Drain and discard the body; the shipper only cares about the ack.
	if _, err := io.Copy(io.Discard, ctx.Request.Body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"text": "Error reading request body", "code": 6})
		return
	}

	n := c.requests.Add(1)
	if c.failEvery > 0 && n%c.failEvery == 0 {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"text": "Server is busy", "code": 9})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"text": "Success", "code": 0})
}

// rateLimitMiddleware creates a Gin middleware for rate limiting based on IP.
func (c *collector) rateLimitMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ip := ctx.ClientIP()

		c.limiterMu.Lock()
		limiter, exists := c.limiters[ip]
		if !exists {
			limiter = rate.NewLimiter(c.rateLimit, c.burstLimit)
			c.limiters[ip] = limiter
		}
		c.limiterMu.Unlock()

		if !limiter.Allow() {
			fmt.Printf("[INFO] Rate limit exceeded for IP: %s\n", ip)
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		ctx.Next()
	}
}
