package domain

import (
	"github.com/btcsuite/btcd/btcutil/txsort"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// SigningState holds the unsigned coinjoin and the witnesses received so
// far. Inputs and outputs are sorted as BIP-69 prescribes, so their order
// tells nothing about registration order.
type SigningState struct {
	Tx        *wire.MsgTx
	prevouts  map[wire.OutPoint]*wire.TxOut
	witnessed map[int]bool
}

func newSigningState(state ConstructionState) *SigningState {
	tx := wire.NewMsgTx(2)
	prevouts := make(map[wire.OutPoint]*wire.TxOut, len(state.Inputs))
	for _, in := range state.Inputs {
		op := in.Outpoint
		tx.AddTxIn(wire.NewTxIn(&op, nil, nil))
		txOut := in.TxOut
		prevouts[op] = &txOut
	}
	for _, out := range state.Outputs {
		tx.AddTxOut(wire.NewTxOut(out.Value, out.PkScript))
	}
	txsort.InPlaceSort(tx)

	return &SigningState{
		Tx:        tx,
		prevouts:  prevouts,
		witnessed: make(map[int]bool),
	}
}

func (s *SigningState) UnsignedTx() *wire.MsgTx {
	tx := s.Tx.Copy()
	for _, in := range tx.TxIn {
		in.Witness = nil
	}
	return tx
}

func (s *SigningState) InputIndex(outpoint wire.OutPoint) int {
	for i, in := range s.Tx.TxIn {
		if in.PreviousOutPoint == outpoint {
			return i
		}
	}
	return -1
}

func (s *SigningState) Prevout(index int) *wire.TxOut {
	if index < 0 || index >= len(s.Tx.TxIn) {
		return nil
	}
	return s.prevouts[s.Tx.TxIn[index].PreviousOutPoint]
}

func (s *SigningState) PrevoutFetcher() txscript.PrevOutputFetcher {
	return txscript.NewMultiPrevOutFetcher(s.prevouts)
}

// AddWitness verifies the witness against the prevout script before
// storing it.
func (s *SigningState) AddWitness(index int, witness wire.TxWitness) error {
	if index < 0 || index >= len(s.Tx.TxIn) {
		return NewProtocolError(ErrInvalidInputIndex, "input index %d out of range", index)
	}
	if s.witnessed[index] {
		return NewProtocolError(ErrWitnessAlreadyProvided, "input %d already signed", index)
	}

	tx := s.Tx.Copy()
	tx.TxIn[index].Witness = witness
	prevout := s.Prevout(index)
	fetcher := s.PrevoutFetcher()

	engine, err := txscript.NewEngine(
		prevout.PkScript, tx, index, txscript.StandardVerifyFlags, nil,
		txscript.NewTxSigHashes(tx, fetcher), prevout.Value, fetcher,
	)
	if err != nil {
		return NewProtocolError(ErrInvalidWitness, "%s", err)
	}
	if err := engine.Execute(); err != nil {
		return NewProtocolError(ErrInvalidWitness, "%s", err)
	}

	s.Tx.TxIn[index].Witness = witness
	s.witnessed[index] = true
	return nil
}

func (s *SigningState) IsFullySigned() bool {
	return len(s.witnessed) == len(s.Tx.TxIn)
}

func (s *SigningState) UnsignedInputs() []wire.OutPoint {
	outpoints := make([]wire.OutPoint, 0)
	for i, in := range s.Tx.TxIn {
		if !s.witnessed[i] {
			outpoints = append(outpoints, in.PreviousOutPoint)
		}
	}
	return outpoints
}

func (s *SigningState) SignedInputs() []wire.OutPoint {
	outpoints := make([]wire.OutPoint, 0)
	for i, in := range s.Tx.TxIn {
		if s.witnessed[i] {
			outpoints = append(outpoints, in.PreviousOutPoint)
		}
	}
	return outpoints
}
