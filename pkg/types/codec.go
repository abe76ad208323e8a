package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind identifies the payload carried by an Envelope, per spec.md §6.
type Kind uint8

const (
	KindPriceUpdate    Kind = 1
	KindPositionEvent  Kind = 2
	KindUnderwaterUser Kind = 3
)

// Envelope is the bus wire frame: {kind: u8, len: u32, payload: bytes}.
type Envelope struct {
	Kind    Kind
	TraceID TraceID
	Payload []byte
}

// Encode serializes the envelope deterministically.
func (e Envelope) Encode() []byte {
	buf := make([]byte, 0, 1+4+len(e.Payload))
	buf = append(buf, byte(e.Kind))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(e.Payload)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, e.Payload...)
	return buf
}

// DecodeEnvelope reads one frame from r. TraceID is carried as the first 8
// bytes of every payload so it round-trips with the rest of the message.
func DecodeEnvelope(r io.Reader) (Envelope, error) {
	var head [5]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Envelope{}, err
	}
	kind := Kind(head[0])
	n := binary.BigEndian.Uint32(head[1:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Envelope{}, err
	}
	var trace TraceID
	if len(payload) >= 8 {
		copy(trace[:], payload[:8])
	}
	return Envelope{Kind: kind, TraceID: trace, Payload: payload}, nil
}

// --- primitive helpers -----------------------------------------------------

func writeBytes(buf *bytes.Buffer, b []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(b)))
	buf.Write(l[:])
	buf.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var l [4]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(l[:])
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func writeBigInt(buf *bytes.Buffer, v *big.Int) {
	if v == nil {
		writeBytes(buf, nil)
		return
	}
	writeBytes(buf, v.Bytes())
}

func readBigInt(r *bytes.Reader) (*big.Int, error) {
	b, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(b), nil
}

func writeAddress(buf *bytes.Buffer, a common.Address) {
	buf.Write(a.Bytes())
}

func readAddress(r *bytes.Reader) (common.Address, error) {
	var b [common.AddressLength]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(b[:]), nil
}

func writeHash(buf *bytes.Buffer, h common.Hash) {
	buf.Write(h.Bytes())
}

func readHash(r *bytes.Reader) (common.Hash, error) {
	var b [common.HashLength]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(b[:]), nil
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// MarshalPriceUpdate encodes a PriceUpdate payload; field order matches
// spec.md §3 (trace_id first, so every payload is self-correlating).
func MarshalPriceUpdate(p PriceUpdate) []byte {
	var buf bytes.Buffer
	buf.Write(p.TraceID[:])
	writeHash(&buf, p.TxHash)
	writeBytes(&buf, p.RawTx)
	writeUint64(&buf, p.TargetInclusionBlock)
	writeBigInt(&buf, p.NewPrice)
	writeAddress(&buf, p.ForwarderAddress)
	writeAddress(&buf, p.Sender)
	writeAddress(&buf, p.Recipient)
	writeBytes(&buf, p.Calldata)
	return buf.Bytes()
}

// UnmarshalPriceUpdate decodes a payload produced by MarshalPriceUpdate.
func UnmarshalPriceUpdate(payload []byte) (PriceUpdate, error) {
	r := bytes.NewReader(payload)
	var p PriceUpdate
	if _, err := io.ReadFull(r, p.TraceID[:]); err != nil {
		return p, fmt.Errorf("trace_id: %w", err)
	}
	var err error
	if p.TxHash, err = readHash(r); err != nil {
		return p, fmt.Errorf("tx_hash: %w", err)
	}
	if p.RawTx, err = readBytes(r); err != nil {
		return p, fmt.Errorf("raw_tx: %w", err)
	}
	if p.TargetInclusionBlock, err = readUint64(r); err != nil {
		return p, fmt.Errorf("target_inclusion_block: %w", err)
	}
	if p.NewPrice, err = readBigInt(r); err != nil {
		return p, fmt.Errorf("new_price: %w", err)
	}
	if p.ForwarderAddress, err = readAddress(r); err != nil {
		return p, fmt.Errorf("forwarder_address: %w", err)
	}
	if p.Sender, err = readAddress(r); err != nil {
		return p, fmt.Errorf("sender: %w", err)
	}
	if p.Recipient, err = readAddress(r); err != nil {
		return p, fmt.Errorf("recipient: %w", err)
	}
	if p.Calldata, err = readBytes(r); err != nil {
		return p, fmt.Errorf("calldata: %w", err)
	}
	return p, nil
}

// MarshalPositionEvent encodes a PositionEvent payload.
func MarshalPositionEvent(trace TraceID, e PositionEvent) []byte {
	var buf bytes.Buffer
	buf.Write(trace[:])
	buf.WriteByte(byte(e.Kind))
	writeAddress(&buf, e.User)
	writeAddress(&buf, e.Reserve)
	writeBigInt(&buf, e.Amount)
	writeUint64(&buf, e.Block)
	writeHash(&buf, e.TxHash)
	return buf.Bytes()
}

// UnmarshalPositionEvent decodes a payload produced by MarshalPositionEvent.
func UnmarshalPositionEvent(payload []byte) (TraceID, PositionEvent, error) {
	r := bytes.NewReader(payload)
	var trace TraceID
	var e PositionEvent
	if _, err := io.ReadFull(r, trace[:]); err != nil {
		return trace, e, fmt.Errorf("trace_id: %w", err)
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return trace, e, fmt.Errorf("kind: %w", err)
	}
	e.Kind = PositionEventKind(kindByte)
	if e.User, err = readAddress(r); err != nil {
		return trace, e, fmt.Errorf("user: %w", err)
	}
	if e.Reserve, err = readAddress(r); err != nil {
		return trace, e, fmt.Errorf("reserve: %w", err)
	}
	if e.Amount, err = readBigInt(r); err != nil {
		return trace, e, fmt.Errorf("amount: %w", err)
	}
	if e.Block, err = readUint64(r); err != nil {
		return trace, e, fmt.Errorf("block: %w", err)
	}
	if e.TxHash, err = readHash(r); err != nil {
		return trace, e, fmt.Errorf("tx_hash: %w", err)
	}
	return trace, e, nil
}

// MarshalUnderwaterUser encodes an UnderwaterUser payload.
func MarshalUnderwaterUser(u UnderwaterUser) []byte {
	var buf bytes.Buffer
	buf.Write(u.TraceID[:])
	writeAddress(&buf, u.User)
	writeBytes(&buf, u.RawTx)
	writeUint64(&buf, u.TargetInclusionBlock)
	writeBigInt(&buf, u.Snapshot.TotalCollateralBase)
	writeBigInt(&buf, u.Snapshot.TotalDebtBase)
	writeBigInt(&buf, u.Snapshot.HealthFactor)
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(u.SpeculativePrices)))
	buf.Write(n[:])
	for _, pr := range u.SpeculativePrices {
		writeAddress(&buf, pr.Reserve)
		writeBigInt(&buf, pr.Price)
	}
	return buf.Bytes()
}

// UnmarshalUnderwaterUser decodes a payload produced by MarshalUnderwaterUser.
func UnmarshalUnderwaterUser(payload []byte) (UnderwaterUser, error) {
	r := bytes.NewReader(payload)
	var u UnderwaterUser
	if _, err := io.ReadFull(r, u.TraceID[:]); err != nil {
		return u, fmt.Errorf("trace_id: %w", err)
	}
	var err error
	if u.User, err = readAddress(r); err != nil {
		return u, fmt.Errorf("user: %w", err)
	}
	if u.RawTx, err = readBytes(r); err != nil {
		return u, fmt.Errorf("raw_tx: %w", err)
	}
	if u.TargetInclusionBlock, err = readUint64(r); err != nil {
		return u, fmt.Errorf("target_inclusion_block: %w", err)
	}
	if u.Snapshot.TotalCollateralBase, err = readBigInt(r); err != nil {
		return u, fmt.Errorf("total_collateral_base: %w", err)
	}
	if u.Snapshot.TotalDebtBase, err = readBigInt(r); err != nil {
		return u, fmt.Errorf("total_debt_base: %w", err)
	}
	if u.Snapshot.HealthFactor, err = readBigInt(r); err != nil {
		return u, fmt.Errorf("health_factor: %w", err)
	}
	var nBuf [4]byte
	if _, err := io.ReadFull(r, nBuf[:]); err != nil {
		return u, fmt.Errorf("speculative_prices len: %w", err)
	}
	n := binary.BigEndian.Uint32(nBuf[:])
	u.SpeculativePrices = make([]PricedReserve, 0, n)
	for i := uint32(0); i < n; i++ {
		var pr PricedReserve
		if pr.Reserve, err = readAddress(r); err != nil {
			return u, fmt.Errorf("speculative_prices[%d].reserve: %w", i, err)
		}
		if pr.Price, err = readBigInt(r); err != nil {
			return u, fmt.Errorf("speculative_prices[%d].price: %w", i, err)
		}
		u.SpeculativePrices = append(u.SpeculativePrices, pr)
	}
	return u, nil
}
