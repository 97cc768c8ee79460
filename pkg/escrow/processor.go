package escrow

import (
	"crypto/ed25519"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-escrow/pkg/ledger"
	"github.com/code-payments/token-escrow/pkg/solana"
	token_escrow "github.com/code-payments/token-escrow/pkg/solana/escrow"
)

// Processor is the escrow program as run by the ledger.
type Processor struct {
	log *logrus.Entry
}

func NewProcessor() *Processor {
	return &Processor{
		log: logrus.StandardLogger().WithField("type", "escrow/processor"),
	}
}

func (p *Processor) ID() ed25519.PublicKey {
	return token_escrow.PROGRAM_ID
}

// Process implements ledger.Program.Process
func (p *Processor) Process(ic *ledger.InvokeContext, ix solana.Instruction) error {
	decoded, err := token_escrow.DecodeInstruction(ix.Data)
	if err != nil {
		return err
	}

	env := NewLedgerEnvironment(ic)

	log := p.log.WithField("instruction", decoded.Type.String())

	switch decoded.Type {
	case token_escrow.InstructionTypeDeposit:
		ic.Logf("Instruction: Deposit")

		accounts, err := BindDepositAccounts(ix.Accounts)
		if err != nil {
			return err
		}

		err = Deposit(env, accounts, decoded.Deposit)
		if err != nil {
			log.WithError(err).Debug("deposit failed")
		}
		return err
	case token_escrow.InstructionTypeUnlock:
		ic.Logf("Instruction: Unlock")

		accounts, err := BindUnlockAccounts(ix.Accounts)
		if err != nil {
			return err
		}

		err = Unlock(env, accounts, decoded.Unlock)
		if err != nil {
			log.WithError(err).Debug("unlock failed")
		}
		return err
	default:
		return token_escrow.ErrInvalidInstruction
	}
}
