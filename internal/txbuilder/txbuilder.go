// Package txbuilder is the concrete account.TransactionClass: P2PKH
// input/output construction, naive largest-first fee accounting, and
// legacy signing. Grounded on the key-management module's signP2PKH
// path - the only input type this wallet core ever stores a TXO for.
package txbuilder

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/klingon-exchange/walletcore/internal/account"
	"github.com/klingon-exchange/walletcore/internal/chain"
	"github.com/klingon-exchange/walletcore/internal/keys"
	"github.com/klingon-exchange/walletcore/internal/walletdb"
)

// feePerByte is a flat fee rate in satoshis per vbyte. Real fee
// estimation belongs to a chain-tip oracle this core does not have;
// a fixed rate keeps fund() deterministic and testable.
const feePerByte = 1

// dustThreshold is the smallest change output worth creating; smaller
// amounts are added to the fee instead, matching common wallet policy.
const dustThreshold = 546

// Builder builds and signs single-chain P2PKH transactions.
type Builder struct {
	params *chain.Params
}

// New returns a Builder for params.
func New(params *chain.Params) *Builder {
	return &Builder{params: params}
}

// SpendInput wraps txo as a pending transaction input.
func (b *Builder) SpendInput(txo walletdb.TXO) account.TxInput {
	return account.TxInput{TXO: txo}
}

// PayToPubKeyHash builds a pending P2PKH output paying hash160.
func (b *Builder) PayToPubKeyHash(amount int64, hash160 []byte) account.TxOutput {
	return account.TxOutput{Amount: amount, Hash160: hash160}
}

// Create builds, funds, and signs a transaction. When outputs is
// empty (the "everything" sweep case), the entire value of inputs
// minus fee is paid to a single address on changeAccount. Otherwise
// additional inputs are pulled from fundingAccounts until outputs plus
// the estimated fee are covered, with any leftover returned to
// changeAccount as a change output.
func (b *Builder) Create(ctx context.Context, inputs []account.TxInput, outputs []account.TxOutput, fundingAccounts []*account.Account, changeAccount *account.Account) (account.Transaction, error) {
	if len(fundingAccounts) == 0 {
		return account.Transaction{}, fmt.Errorf("txbuilder: at least one funding account is required")
	}

	selected := make([]account.TxInput, len(inputs))
	copy(selected, inputs)

	outputTotal := int64(0)
	for _, o := range outputs {
		outputTotal += o.Amount
	}

	estimatedFee := func(numInputs, numOutputs int) int64 {
		return int64(10+numInputs*148+numOutputs*34) * feePerByte
	}

	if len(outputs) > 0 {
		inputTotal := sumInputs(selected)
		needed := outputTotal + estimatedFee(len(selected), len(outputs)+1)
		if inputTotal < needed {
			more, err := pullMoreInputs(ctx, fundingAccounts, needed-inputTotal)
			if err != nil {
				return account.Transaction{}, err
			}
			selected = append(selected, more...)
		}
	}

	inputTotal := sumInputs(selected)
	fee := estimatedFee(len(selected), len(outputs)+1)
	change := inputTotal - outputTotal - fee
	if change < 0 {
		return account.Transaction{}, fmt.Errorf("txbuilder: insufficient funds: have %d, need %d", inputTotal, outputTotal+fee)
	}

	finalOutputs := make([]account.TxOutput, len(outputs))
	copy(finalOutputs, outputs)

	if change > dustThreshold || len(outputs) == 0 {
		changeAddr, err := changeAccount.GetOrCreateChangeAddress(ctx)
		if err != nil {
			return account.Transaction{}, err
		}
		hash160, err := keys.AddressToHash160(changeAddr, b.params)
		if err != nil {
			return account.Transaction{}, err
		}
		finalOutputs = append(finalOutputs, account.TxOutput{Amount: change, Hash160: hash160})
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, in := range selected {
		txHash, err := chainhash.NewHashFromStr(in.TXO.TxID)
		if err != nil {
			return account.Transaction{}, fmt.Errorf("txbuilder: invalid prior txid %q: %w", in.TXO.TxID, err)
		}
		outpoint := wire.NewOutPoint(txHash, uint32(in.TXO.Position))
		txIn := wire.NewTxIn(outpoint, nil, nil)
		tx.AddTxIn(txIn)
	}
	for _, out := range finalOutputs {
		script, err := p2pkhScript(out.Hash160)
		if err != nil {
			return account.Transaction{}, err
		}
		tx.AddTxOut(wire.NewTxOut(out.Amount, script))
	}

	for i, in := range selected {
		owner, err := findOwner(ctx, fundingAccounts, in.TXO.Address)
		if err != nil {
			return account.Transaction{}, err
		}
		priv, err := owner.GetPrivateKeyForAddress(ctx, in.TXO.Address)
		if err != nil {
			return account.Transaction{}, fmt.Errorf("txbuilder: failed to get signing key for %s: %w", in.TXO.Address, err)
		}
		ecKey, err := priv.ECPrivKey()
		if err != nil {
			return account.Transaction{}, err
		}
		sig, err := txscript.SignatureScript(tx, i, in.TXO.Script, txscript.SigHashAll, ecKey, true)
		if err != nil {
			return account.Transaction{}, fmt.Errorf("txbuilder: failed to sign input %d: %w", i, err)
		}
		tx.TxIn[i].SignatureScript = sig
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return account.Transaction{}, fmt.Errorf("txbuilder: failed to serialize transaction: %w", err)
	}

	return account.Transaction{
		TxID:    tx.TxHash().String(),
		Raw:     buf.Bytes(),
		Inputs:  selected,
		Outputs: finalOutputs,
	}, nil
}

func sumInputs(inputs []account.TxInput) int64 {
	var total int64
	for _, in := range inputs {
		total += in.TXO.Amount
	}
	return total
}

func pullMoreInputs(ctx context.Context, fundingAccounts []*account.Account, need int64) ([]account.TxInput, error) {
	var collected []account.TxInput
	var total int64
	for _, acct := range fundingAccounts {
		if total >= need {
			break
		}
		utxos, err := acct.GetUnspentOutputs(ctx, nil)
		if err != nil {
			return nil, err
		}
		sort.Slice(utxos, func(i, j int) bool { return utxos[i].Amount > utxos[j].Amount })
		for _, u := range utxos {
			if total >= need {
				break
			}
			collected = append(collected, account.TxInput{TXO: u})
			total += u.Amount
		}
	}
	if total < need {
		return nil, fmt.Errorf("txbuilder: insufficient spendable outputs across funding accounts: need %d more", need)
	}
	return collected, nil
}

func findOwner(ctx context.Context, fundingAccounts []*account.Account, address string) (*account.Account, error) {
	for _, acct := range fundingAccounts {
		addrs, err := acct.GetAddresses(ctx, 0, nil)
		if err != nil {
			return nil, err
		}
		for _, a := range addrs {
			if a == address {
				return acct, nil
			}
		}
	}
	return nil, fmt.Errorf("txbuilder: no funding account owns address %s", address)
}

func p2pkhScript(hash160 []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(hash160).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}
