package http_server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/code-payments/token-escrow/pkg/code/common"
	"github.com/code-payments/token-escrow/pkg/code/data/escrow"
	"github.com/code-payments/token-escrow/pkg/code/escrow/nonce"
)

func (s *server) buildDepositInstruction(c *gin.Context) {
	log := s.logger(c).WithField("method", "buildDepositInstruction")

	var req depositInstructionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	accounts, ok := parseAccounts(c, map[string]string{
		"sender":       req.Sender,
		"escrow_state": req.EscrowState,
		"receiver":     req.Receiver,
		"mint":         req.Mint,
	})
	if !ok {
		return
	}

	if req.EndTime <= s.ledger.UnixTimestamp() {
		abortWithError(c, http.StatusBadRequest, "end_time has already passed")
		return
	}

	vault, err := s.getVaultAccounts(accounts["receiver"], accounts["mint"])
	if err != nil {
		log.WithError(err).Warn("failure deriving vault accounts")
		abortWithError(c, http.StatusInternalServerError, "")
		return
	}

	ix, err := vault.GetDepositInstruction(accounts["sender"], accounts["escrow_state"], req.Amount, req.EndTime)
	if err != nil {
		log.WithError(err).Warn("failure building deposit instruction")
		abortWithError(c, http.StatusInternalServerError, "")
		return
	}

	c.JSON(http.StatusOK, toInstructionResponse(ix))
}

func (s *server) buildUnlockInstruction(c *gin.Context) {
	log := s.logger(c).WithField("method", "buildUnlockInstruction")

	var req unlockInstructionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.Sender) == 0 || len(req.Receiver) == 0 || len(req.Mint) == 0 {
		record, err := s.data.GetByAddress(c.Request.Context(), req.EscrowState)
		switch err {
		case nil:
		case escrow.ErrEscrowNotFound:
			abortWithError(c, http.StatusNotFound, "escrow not found")
			return
		default:
			log.WithError(err).Warn("failure getting escrow record")
			abortWithError(c, http.StatusInternalServerError, "")
			return
		}

		if len(req.Sender) == 0 {
			req.Sender = record.Sender
		}
		if len(req.Receiver) == 0 {
			req.Receiver = record.Receiver
		}
		if len(req.Mint) == 0 {
			req.Mint = record.Mint
		}
	}

	accounts, ok := parseAccounts(c, map[string]string{
		"sender":       req.Sender,
		"escrow_state": req.EscrowState,
		"receiver":     req.Receiver,
		"mint":         req.Mint,
	})
	if !ok {
		return
	}

	value := nonce.New()
	if req.Nonce != nil {
		value = *req.Nonce
	}

	vault, err := s.getVaultAccounts(accounts["receiver"], accounts["mint"])
	if err != nil {
		log.WithError(err).Warn("failure deriving vault accounts")
		abortWithError(c, http.StatusInternalServerError, "")
		return
	}

	ix, err := vault.GetUnlockInstruction(accounts["sender"], accounts["escrow_state"], value)
	if err != nil {
		log.WithError(err).Warn("failure building unlock instruction")
		abortWithError(c, http.StatusInternalServerError, "")
		return
	}

	c.JSON(http.StatusOK, toInstructionResponse(ix))
}

func parseAccounts(c *gin.Context, addresses map[string]string) (map[string]*common.Account, bool) {
	res := make(map[string]*common.Account, len(addresses))
	for name, address := range addresses {
		account, err := common.NewAccountFromPublicKeyString(address)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid "+name)
			return nil, false
		}
		res[name] = account
	}
	return res, true
}
