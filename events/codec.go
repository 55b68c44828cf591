package events

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lightprotocol/forester-go/compressedaccount"
)

// Encode writes e in its frozen field order: every variable-length field is
// prefixed by a little-endian uint32 length, exactly once, with no type
// tags — the same "field order frozen, no self-description" contract Borsh
// gives the original on-chain event, reproduced here without an Anchor/
// Borsh dependency since program/CPI glue is out of scope for this module.
func Encode(w io.Writer, e BatchPublicTransactionEvent) error {
	if err := writeHashSlice(w, e.InputHashes); err != nil {
		return fmt.Errorf("events: encoding input_hashes: %w", err)
	}
	if err := writeHashSlice(w, e.OutputHashes); err != nil {
		return fmt.Errorf("events: encoding output_hashes: %w", err)
	}
	if err := writeUint32Slice(w, e.OutputLeafIndices); err != nil {
		return fmt.Errorf("events: encoding output_leaf_indices: %w", err)
	}
	if err := writeLen(w, len(e.Sequences)); err != nil {
		return err
	}
	for _, s := range e.Sequences {
		if err := writeSequence(w, s); err != nil {
			return fmt.Errorf("events: encoding sequence: %w", err)
		}
	}
	if err := writeHashSlice(w, e.NewAddresses); err != nil {
		return fmt.Errorf("events: encoding new_addresses: %w", err)
	}
	if err := writeLen(w, len(e.Nullifications)); err != nil {
		return err
	}
	for _, n := range e.Nullifications {
		if err := writeNullification(w, n); err != nil {
			return fmt.Errorf("events: encoding nullification: %w", err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, e.Slot); err != nil {
		return fmt.Errorf("events: encoding slot: %w", err)
	}
	if _, err := w.Write(e.TxHash[:]); err != nil {
		return fmt.Errorf("events: encoding tx_hash: %w", err)
	}
	return nil
}

// Decode reads an event back in the exact order Encode wrote it.
func Decode(r io.Reader) (BatchPublicTransactionEvent, error) {
	var e BatchPublicTransactionEvent
	var err error

	if e.InputHashes, err = readHashSlice(r); err != nil {
		return e, fmt.Errorf("events: decoding input_hashes: %w", err)
	}
	if e.OutputHashes, err = readHashSlice(r); err != nil {
		return e, fmt.Errorf("events: decoding output_hashes: %w", err)
	}
	if e.OutputLeafIndices, err = readUint32Slice(r); err != nil {
		return e, fmt.Errorf("events: decoding output_leaf_indices: %w", err)
	}

	n, err := readLen(r)
	if err != nil {
		return e, err
	}
	e.Sequences = make([]SequenceNumber, n)
	for i := range e.Sequences {
		if e.Sequences[i], err = readSequence(r); err != nil {
			return e, fmt.Errorf("events: decoding sequence: %w", err)
		}
	}

	if e.NewAddresses, err = readHashSlice(r); err != nil {
		return e, fmt.Errorf("events: decoding new_addresses: %w", err)
	}

	n, err = readLen(r)
	if err != nil {
		return e, err
	}
	e.Nullifications = make([]BatchedNullificationContext, n)
	for i := range e.Nullifications {
		if e.Nullifications[i], err = readNullification(r); err != nil {
			return e, fmt.Errorf("events: decoding nullification: %w", err)
		}
	}

	if err := binary.Read(r, binary.LittleEndian, &e.Slot); err != nil {
		return e, fmt.Errorf("events: decoding slot: %w", err)
	}
	if _, err := io.ReadFull(r, e.TxHash[:]); err != nil {
		return e, fmt.Errorf("events: decoding tx_hash: %w", err)
	}
	return e, nil
}

func writeLen(w io.Writer, n int) error {
	return binary.Write(w, binary.LittleEndian, uint32(n))
}

func readLen(r io.Reader) (uint32, error) {
	var n uint32
	err := binary.Read(r, binary.LittleEndian, &n)
	return n, err
}

func writeHashSlice(w io.Writer, hashes [][32]byte) error {
	if err := writeLen(w, len(hashes)); err != nil {
		return err
	}
	for _, h := range hashes {
		if _, err := w.Write(h[:]); err != nil {
			return err
		}
	}
	return nil
}

func readHashSlice(r io.Reader) ([][32]byte, error) {
	n, err := readLen(r)
	if err != nil {
		return nil, err
	}
	out := make([][32]byte, n)
	for i := range out {
		if _, err := io.ReadFull(r, out[i][:]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeUint32Slice(w io.Writer, vals []uint32) error {
	if err := writeLen(w, len(vals)); err != nil {
		return err
	}
	for _, v := range vals {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func readUint32Slice(r io.Reader) ([]uint32, error) {
	n, err := readLen(r)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		if err := binary.Read(r, binary.LittleEndian, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeSequence(w io.Writer, s SequenceNumber) error {
	if _, err := w.Write(s.Tree[:]); err != nil {
		return err
	}
	if _, err := w.Write(s.Queue[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(s.TreeType)); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, s.Seq)
}

func readSequence(r io.Reader) (SequenceNumber, error) {
	var s SequenceNumber
	if _, err := io.ReadFull(r, s.Tree[:]); err != nil {
		return s, err
	}
	if _, err := io.ReadFull(r, s.Queue[:]); err != nil {
		return s, err
	}
	var treeType uint8
	if err := binary.Read(r, binary.LittleEndian, &treeType); err != nil {
		return s, err
	}
	s.TreeType = compressedaccount.TreeType(treeType)
	if err := binary.Read(r, binary.LittleEndian, &s.Seq); err != nil {
		return s, err
	}
	return s, nil
}

func writeNullification(w io.Writer, n BatchedNullificationContext) error {
	if _, err := w.Write(n.Tree[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, n.LeafIndex); err != nil {
		return err
	}
	_, err := w.Write(n.Nullifier[:])
	return err
}

func readNullification(r io.Reader) (BatchedNullificationContext, error) {
	var n BatchedNullificationContext
	if _, err := io.ReadFull(r, n.Tree[:]); err != nil {
		return n, err
	}
	if err := binary.Read(r, binary.LittleEndian, &n.LeafIndex); err != nil {
		return n, err
	}
	_, err := io.ReadFull(r, n.Nullifier[:])
	return n, err
}
