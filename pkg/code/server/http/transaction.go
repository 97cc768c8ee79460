package http_server

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-escrow/pkg/solana"
	token_escrow "github.com/code-payments/token-escrow/pkg/solana/escrow"
)

func (s *server) getRecentBlockhash(c *gin.Context) {
	c.JSON(http.StatusOK, &blockhashResponse{
		Blockhash: s.ledger.RecentBlockhash().String(),
	})
}

// submitTransaction executes a client signed transaction. Transactions whose
// instructions fail are still committed for their fee and reported with 200,
// while rejected transactions are reported with 422.
func (s *server) submitTransaction(c *gin.Context) {
	log := s.logger(c).WithField("method", "submitTransaction")

	var req submitTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.Transaction)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid transaction encoding")
		return
	}

	var txn solana.Transaction
	if err := txn.Unmarshal(raw); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid transaction")
		return
	}

	var signature solana.Signature
	copy(signature[:], txn.Signature())
	log = log.WithField("signature", signature.String())

	result, err := s.ledger.Execute(c.Request.Context(), txn)

	var txnErr *solana.TransactionError
	if err != nil && !errors.As(err, &txnErr) {
		log.WithError(err).Warn("failure executing transaction")
		abortWithError(c, http.StatusInternalServerError, "")
		return
	}

	resp := &transactionResponse{
		Signature: signature.String(),
	}
	if result != nil {
		resp.Slot = result.Slot
		resp.Fee = result.Fee
		resp.Logs = result.Logs
	}

	if txnErr != nil {
		resp.Error = txnErr.Error()
		if encoded, err := txnErr.JSONString(); err == nil {
			resp.Error = encoded
		}

		if _, ok := token_escrow.GetProgramError(err); ok {
			resp.ErrorKind = token_escrow.GetErrorKind(err).String()
		}

		log.WithFields(logrus.Fields{
			"error":      resp.Error,
			"error_kind": resp.ErrorKind,
		}).Debug("transaction failed")
	}

	if result == nil {
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
