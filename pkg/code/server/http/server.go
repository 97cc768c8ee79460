package http_server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-escrow/pkg/cache"
	"github.com/code-payments/token-escrow/pkg/code/common"
	"github.com/code-payments/token-escrow/pkg/code/data/escrow"
	"github.com/code-payments/token-escrow/pkg/ledger"
	"github.com/code-payments/token-escrow/pkg/rate"
	"github.com/code-payments/token-escrow/pkg/solana"
)

const (
	requestIdHeader = "X-Request-Id"
	requestIdKey    = "request_id"

	maxBodySize = 1 << 16

	vaultCacheBudget = 10_000
)

// Ledger provides the time escrow states are evaluated at, and takes in
// client signed transactions.
type Ledger interface {
	UnixTimestamp() uint64
	RecentBlockhash() solana.Blockhash
	Execute(ctx context.Context, txn solana.Transaction) (*ledger.Result, error)
}

type server struct {
	log *logrus.Entry

	data    escrow.Store
	ledger  Ledger
	limiter rate.Limiter

	vaults cache.Cache
}

// NewHandler returns the HTTP API over indexed escrows and the ledger they
// live on. Requests are rate limited per client IP.
func NewHandler(data escrow.Store, bank Ledger, limiter rate.Limiter) http.Handler {
	s := &server{
		log: logrus.StandardLogger().WithField("type", "server/http"),

		data:    data,
		ledger:  bank,
		limiter: limiter,

		vaults: cache.NewCache(vaultCacheBudget),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(s.rateLimiter())

	v1 := r.Group("/v1")
	{
		v1.GET("/escrows/:address", s.getEscrow)
		v1.GET("/escrows", s.listEscrows)
		v1.GET("/vaults/:receiver", s.getVault)

		v1.POST("/instructions/deposit", s.buildDepositInstruction)
		v1.POST("/instructions/unlock", s.buildUnlockInstruction)

		v1.GET("/blockhash", s.getRecentBlockhash)
		v1.POST("/transactions", s.submitTransaction)
	}

	return r
}

func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestId := c.GetHeader(requestIdHeader)
		if _, err := uuid.Parse(requestId); err != nil {
			requestId = uuid.New().String()
		}
		c.Set(requestIdKey, requestId)
		c.Header(requestIdHeader, requestId)

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)

		c.Next()

		s.log.WithFields(logrus.Fields{
			"request_id": requestId,
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency":    time.Since(start),
			"client_ip":  c.ClientIP(),
		}).Debug("handled request")
	}
}

func (s *server) rateLimiter() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := s.limiter.Allow(c.ClientIP())
		if err != nil {
			s.logger(c).WithError(err).Warn("failure checking rate limit")
		} else if !allowed {
			abortWithError(c, http.StatusTooManyRequests, "rate limited")
			return
		}

		c.Next()
	}
}

// getVaultAccounts derives the vault of receiver for mint, caching the result.
func (s *server) getVaultAccounts(receiver, mint *common.Account) (*common.EscrowVaultAccounts, error) {
	key := receiver.String() + ":" + mint.String()
	if cached, ok := s.vaults.Retrieve(key); ok {
		return cached.(*common.EscrowVaultAccounts), nil
	}

	vault, err := receiver.GetEscrowVaultAccounts(mint)
	if err != nil {
		return nil, err
	}

	s.vaults.Insert(key, vault, 1)
	return vault, nil
}

func (s *server) logger(c *gin.Context) *logrus.Entry {
	return s.log.WithField("request_id", c.GetString(requestIdKey))
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: message})
}
