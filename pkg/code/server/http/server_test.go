package http_server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xrate "golang.org/x/time/rate"

	memory_escrow_store "github.com/code-payments/token-escrow/pkg/code/data/escrow/memory"
	"github.com/code-payments/token-escrow/pkg/code/escrow/indexer"
	"github.com/code-payments/token-escrow/pkg/database/query"
	"github.com/code-payments/token-escrow/pkg/ledger"
	"github.com/code-payments/token-escrow/pkg/rate"
	"github.com/code-payments/token-escrow/pkg/solana"
	token_escrow "github.com/code-payments/token-escrow/pkg/solana/escrow"
	"github.com/code-payments/token-escrow/pkg/solana/token"
	"github.com/code-payments/token-escrow/pkg/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	ledger  *testutil.TestLedger
	handler http.Handler

	sender   ed25519.PrivateKey
	receiver ed25519.PublicKey
	mint     ed25519.PublicKey

	escrows []ed25519.PublicKey
}

func setup(t *testing.T, limiter rate.Limiter) *testEnv {
	testutil.DisableLogging()

	data := memory_escrow_store.New()
	idx := indexer.New(data, indexer.WithWorkers(1))
	t.Cleanup(idx.Close)

	l := testutil.NewTestLedger(t, 1000, ledger.WithObservers(idx))

	authority := l.NewFundedKeypair()
	mint := l.CreateMint(authority, 0)

	sender := l.NewFundedKeypair()
	senderToken := l.CreateAssociatedTokenAccount(sender, sender.Public().(ed25519.PublicKey), mint)
	l.MintTo(authority, mint, senderToken, 1000)

	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	var escrows []ed25519.PublicKey
	for i, endTime := range []uint64{2000, 3000, 4000} {
		escrows = append(escrows, l.Deposit(sender, receiver, mint, uint64(100*(i+1)), endTime))
	}

	// A single worker indexes escrows in commit order
	require.NoError(t, testutil.WaitFor(time.Second, 5*time.Millisecond, func() bool {
		records, err := data.GetAllByReceiver(context.Background(), base58.Encode(receiver), query.EmptyCursor, 0, query.Ascending)
		return err == nil && len(records) == len(escrows)
	}))

	return &testEnv{
		ledger:   l,
		handler:  NewHandler(data, l.Bank, limiter),
		sender:   sender,
		receiver: receiver,
		mint:     mint,
		escrows:  escrows,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestGetEscrow(t *testing.T) {
	env := setup(t, &rate.NoLimiter{})

	w := env.do(t, http.MethodGet, "/v1/escrows/"+base58.Encode(env.escrows[0]), nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, err := uuid.Parse(w.Header().Get(requestIdHeader))
	assert.NoError(t, err)

	var resp getEscrowResponse
	decode(t, w, &resp)
	assert.EqualValues(t, 1000, resp.Now)
	assert.Equal(t, base58.Encode(env.escrows[0]), resp.Escrow.Address)
	assert.Equal(t, base58.Encode(env.sender.Public().(ed25519.PublicKey)), resp.Escrow.Sender)
	assert.Equal(t, base58.Encode(env.receiver), resp.Escrow.Receiver)
	assert.EqualValues(t, 100, resp.Escrow.Amount)
	assert.EqualValues(t, 2000, resp.Escrow.EndTime)
	assert.Equal(t, "locked", resp.Escrow.State)

	// State is evaluated at the current ledger time
	env.ledger.SetTime(2000)
	w = env.do(t, http.MethodGet, "/v1/escrows/"+base58.Encode(env.escrows[0]), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, "matured", resp.Escrow.State)

	w = env.do(t, http.MethodGet, "/v1/escrows/"+base58.Encode(testutil.GenerateSolanaKeys(t, 1)[0]), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/v1/escrows/not-an-address", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListEscrows(t *testing.T) {
	env := setup(t, &rate.NoLimiter{})

	w := env.do(t, http.MethodGet, "/v1/escrows?receiver="+base58.Encode(env.receiver), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp listEscrowsResponse
	decode(t, w, &resp)
	require.Len(t, resp.Escrows, 3)
	assert.Empty(t, resp.NextCursor)
	for i, escrow := range resp.Escrows {
		assert.Equal(t, base58.Encode(env.escrows[i]), escrow.Address)
	}

	sender := base58.Encode(env.sender.Public().(ed25519.PublicKey))
	w = env.do(t, http.MethodGet, "/v1/escrows?sender="+sender+"&limit=2&order=desc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = listEscrowsResponse{}
	decode(t, w, &resp)
	require.Len(t, resp.Escrows, 2)
	assert.Equal(t, base58.Encode(env.escrows[2]), resp.Escrows[0].Address)
	assert.Equal(t, base58.Encode(env.escrows[1]), resp.Escrows[1].Address)
	require.NotEmpty(t, resp.NextCursor)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/v1/escrows?sender=%s&limit=2&order=desc&cursor=%s", sender, resp.NextCursor), nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = listEscrowsResponse{}
	decode(t, w, &resp)
	require.Len(t, resp.Escrows, 1)
	assert.Equal(t, base58.Encode(env.escrows[0]), resp.Escrows[0].Address)
	assert.Empty(t, resp.NextCursor)

	w = env.do(t, http.MethodGet, "/v1/escrows?receiver="+base58.Encode(testutil.GenerateSolanaKeys(t, 1)[0]), nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = listEscrowsResponse{}
	decode(t, w, &resp)
	assert.Empty(t, resp.Escrows)

	for _, path := range []string{
		"/v1/escrows",
		"/v1/escrows?sender=" + sender + "&receiver=" + sender,
		"/v1/escrows?sender=invalid",
		"/v1/escrows?sender=" + sender + "&limit=0",
		"/v1/escrows?sender=" + sender + "&limit=abc",
		"/v1/escrows?sender=" + sender + "&cursor=0",
	} {
		w = env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestGetVault(t *testing.T) {
	env := setup(t, &rate.NoLimiter{})

	w := env.do(t, http.MethodGet, fmt.Sprintf("/v1/vaults/%s?mint=%s", base58.Encode(env.receiver), base58.Encode(env.mint)), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp vaultResponse
	decode(t, w, &resp)

	authority, bump, err := token_escrow.GetVaultAuthorityAddress(&token_escrow.GetVaultAuthorityAddressArgs{
		Receiver: env.receiver,
	})
	require.NoError(t, err)
	vaultToken, err := token_escrow.GetVaultTokenAddress(&token_escrow.GetVaultTokenAddressArgs{
		VaultAuthority: authority,
		Mint:           env.mint,
	})
	require.NoError(t, err)

	assert.Equal(t, base58.Encode(authority), resp.VaultAuthority)
	assert.Equal(t, bump, resp.VaultAuthorityBump)
	assert.Equal(t, base58.Encode(vaultToken), resp.VaultTokenAccount)
	assert.EqualValues(t, 600, env.ledger.TokenBalance(vaultToken, env.mint))

	// Cached derivations are served identically
	cached := env.do(t, http.MethodGet, fmt.Sprintf("/v1/vaults/%s?mint=%s", base58.Encode(env.receiver), base58.Encode(env.mint)), nil)
	require.Equal(t, http.StatusOK, cached.Code)
	assert.Equal(t, w.Body.String(), cached.Body.String())

	w = env.do(t, http.MethodGet, "/v1/vaults/"+base58.Encode(env.receiver), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func toInstruction(t *testing.T, resp *instructionResponse) solana.Instruction {
	program, err := base58.Decode(resp.ProgramId)
	require.NoError(t, err)

	data, err := base64.StdEncoding.DecodeString(resp.Data)
	require.NoError(t, err)

	var accounts []solana.AccountMeta
	for _, meta := range resp.Accounts {
		key, err := base58.Decode(meta.PublicKey)
		require.NoError(t, err)

		if meta.IsWritable {
			accounts = append(accounts, solana.NewAccountMeta(key, meta.IsSigner))
		} else {
			accounts = append(accounts, solana.NewReadonlyAccountMeta(key, meta.IsSigner))
		}
	}

	return solana.NewInstruction(program, data, accounts...)
}

func TestBuildInstructions(t *testing.T) {
	env := setup(t, &rate.NoLimiter{})

	senderPublicKey := env.sender.Public().(ed25519.PublicKey)
	state := testutil.GenerateSolanaKeypair(t)
	statePublicKey := state.Public().(ed25519.PublicKey)

	w := env.do(t, http.MethodPost, "/v1/instructions/deposit", &depositInstructionRequest{
		Sender:      base58.Encode(senderPublicKey),
		EscrowState: base58.Encode(statePublicKey),
		Receiver:    base58.Encode(env.receiver),
		Mint:        base58.Encode(env.mint),
		Amount:      50,
		EndTime:     1500,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp instructionResponse
	decode(t, w, &resp)
	assert.Equal(t, base58.Encode(token_escrow.PROGRAM_ID), resp.ProgramId)

	// The built instruction executes once signed
	env.ledger.MustSubmit([]ed25519.PrivateKey{env.sender, state}, toInstruction(t, &resp))

	// Accounts not provided are looked up from the index
	env.ledger.SetTime(2000)
	w = env.do(t, http.MethodPost, "/v1/instructions/unlock", map[string]interface{}{
		"escrow_state": base58.Encode(env.escrows[0]),
		"nonce":        7,
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp = instructionResponse{}
	decode(t, w, &resp)

	ix := toInstruction(t, &resp)
	args, _, err := token_escrow.DecompileUnlockInstruction(ix)
	require.NoError(t, err)
	assert.EqualValues(t, 7, args.Nonce)

	env.ledger.MustSubmit([]ed25519.PrivateKey{env.ledger.NewFundedKeypair()}, ix)

	// Escrows missing from the index need every account
	w = env.do(t, http.MethodPost, "/v1/instructions/unlock", map[string]interface{}{
		"escrow_state": base58.Encode(testutil.GenerateSolanaKeys(t, 1)[0]),
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/v1/instructions/unlock", map[string]interface{}{
		"escrow_state": base58.Encode(statePublicKey),
		"sender":       base58.Encode(senderPublicKey),
		"receiver":     base58.Encode(env.receiver),
		"mint":         base58.Encode(env.mint),
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp = instructionResponse{}
	decode(t, w, &resp)
	env.ledger.MustSubmit([]ed25519.PrivateKey{env.ledger.NewFundedKeypair()}, toInstruction(t, &resp))

	receiverToken, err := token.GetAssociatedAccount(env.receiver, env.mint)
	require.NoError(t, err)
	assert.EqualValues(t, 150, env.ledger.TokenBalance(receiverToken, env.mint))
}

func TestBuildInstructions_Validation(t *testing.T) {
	env := setup(t, &rate.NoLimiter{})

	valid := func() *depositInstructionRequest {
		return &depositInstructionRequest{
			Sender:      base58.Encode(env.sender.Public().(ed25519.PublicKey)),
			EscrowState: base58.Encode(testutil.GenerateSolanaKeys(t, 1)[0]),
			Receiver:    base58.Encode(env.receiver),
			Mint:        base58.Encode(env.mint),
			Amount:      50,
			EndTime:     1500,
		}
	}

	for name, modify := range map[string]func(r *depositInstructionRequest){
		"missing amount":  func(r *depositInstructionRequest) { r.Amount = 0 },
		"invalid sender":  func(r *depositInstructionRequest) { r.Sender = "invalid" },
		"missing mint":    func(r *depositInstructionRequest) { r.Mint = "" },
		"end time passed": func(r *depositInstructionRequest) { r.EndTime = 1000 },
	} {
		req := valid()
		modify(req)

		w := env.do(t, http.MethodPost, "/v1/instructions/deposit", req)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}

	w := env.do(t, http.MethodPost, "/v1/instructions/unlock", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func (e *testEnv) recentBlockhash(t *testing.T) solana.Blockhash {
	w := e.do(t, http.MethodGet, "/v1/blockhash", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp blockhashResponse
	decode(t, w, &resp)

	decoded, err := base58.Decode(resp.Blockhash)
	require.NoError(t, err)

	var blockhash solana.Blockhash
	require.Len(t, decoded, len(blockhash))
	copy(blockhash[:], decoded)
	return blockhash
}

func (e *testEnv) submit(t *testing.T, txn solana.Transaction) (int, *transactionResponse) {
	w := e.do(t, http.MethodPost, "/v1/transactions", &submitTransactionRequest{
		Transaction: base64.StdEncoding.EncodeToString(txn.Marshal()),
	})

	var resp transactionResponse
	decode(t, w, &resp)
	return w.Code, &resp
}

func TestSubmitTransaction(t *testing.T) {
	env := setup(t, &rate.NoLimiter{})

	senderPublicKey := env.sender.Public().(ed25519.PublicKey)
	state := testutil.GenerateSolanaKeypair(t)
	statePublicKey := state.Public().(ed25519.PublicKey)

	w := env.do(t, http.MethodPost, "/v1/instructions/deposit", &depositInstructionRequest{
		Sender:      base58.Encode(senderPublicKey),
		EscrowState: base58.Encode(statePublicKey),
		Receiver:    base58.Encode(env.receiver),
		Mint:        base58.Encode(env.mint),
		Amount:      50,
		EndTime:     1500,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var ix instructionResponse
	decode(t, w, &ix)

	deposit := solana.NewTransaction(senderPublicKey, toInstruction(t, &ix))
	deposit.SetBlockhash(env.recentBlockhash(t))
	require.NoError(t, deposit.Sign(env.sender, state))

	code, resp := env.submit(t, deposit)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, base58.Encode(deposit.Signature()), resp.Signature)
	assert.Equal(t, env.ledger.Bank.Slot(), resp.Slot)
	assert.EqualValues(t, 2*ledger.DefaultLamportsPerSignature, resp.Fee)
	assert.NotEmpty(t, resp.Logs)
	assert.Empty(t, resp.Error)
	assert.Empty(t, resp.ErrorKind)

	// The submitted escrow is indexed like any other
	require.NoError(t, testutil.WaitFor(time.Second, 5*time.Millisecond, func() bool {
		return env.do(t, http.MethodGet, "/v1/escrows/"+base58.Encode(statePublicKey), nil).Code == http.StatusOK
	}))

	// Replays are rejected without being committed
	slot := env.ledger.Bank.Slot()
	code, resp = env.submit(t, deposit)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, `"DuplicateSignature"`, resp.Error)
	assert.Zero(t, resp.Slot)
	assert.Equal(t, slot, env.ledger.Bank.Slot())

	// Instruction failures are committed for their fee
	w = env.do(t, http.MethodPost, "/v1/instructions/unlock", map[string]interface{}{
		"escrow_state": base58.Encode(env.escrows[0]),
	})
	require.Equal(t, http.StatusOK, w.Code)
	ix = instructionResponse{}
	decode(t, w, &ix)

	payer := env.ledger.NewFundedKeypair()
	unlock := solana.NewTransaction(payer.Public().(ed25519.PublicKey), toInstruction(t, &ix))
	unlock.SetBlockhash(env.recentBlockhash(t))
	require.NoError(t, unlock.Sign(payer))

	code, resp = env.submit(t, unlock)
	require.Equal(t, http.StatusOK, code)
	assert.NotZero(t, resp.Slot)
	assert.Contains(t, resp.Error, "InstructionError")
	assert.Equal(t, token_escrow.ErrorKindTimingViolation.String(), resp.ErrorKind)
	assert.EqualValues(t, testutil.DefaultAirdrop-ledger.DefaultLamportsPerSignature, env.ledger.Lamports(payer.Public().(ed25519.PublicKey)))

	// Transactions must reference a recent blockhash
	stale := solana.NewTransaction(payer.Public().(ed25519.PublicKey), toInstruction(t, &ix))
	require.NoError(t, stale.Sign(payer))

	code, resp = env.submit(t, stale)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, `"BlockhashNotFound"`, resp.Error)
	assert.Empty(t, resp.ErrorKind)
}

func TestSubmitTransaction_Validation(t *testing.T) {
	env := setup(t, &rate.NoLimiter{})

	for name, body := range map[string]interface{}{
		"missing transaction": map[string]interface{}{},
		"invalid base64":      &submitTransactionRequest{Transaction: "not base64!"},
		"invalid wire format": &submitTransactionRequest{Transaction: base64.StdEncoding.EncodeToString([]byte{1, 2, 3})},
	} {
		w := env.do(t, http.MethodPost, "/v1/transactions", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}

func TestRateLimit(t *testing.T) {
	env := setup(t, rate.NewLocalRateLimiter(xrate.Limit(2)))

	path := "/v1/escrows/" + base58.Encode(env.escrows[0])
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodGet, path, nil).Code)
}
