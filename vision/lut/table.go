package lut

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

const (
	// BitsPerChannel is how many of the high bits of Y, Cb and Cr index the table.
	BitsPerChannel = 6
	// TableSize is the number of cells in a LookUpTable.
	TableSize = 1 << (3 * BitsPerChannel)

	channelShift = 8 - BitsPerChannel
)

// LookUpTable maps a Y'CbCr sample to a colour class. Tables are read-only once handed to the
// pipeline.
type LookUpTable struct {
	cells [TableSize]Class
}

// NewLookUpTable returns a table that classifies everything as Unclassified.
func NewLookUpTable() *LookUpTable {
	return &LookUpTable{}
}

// Index returns the cell for a sample: (y>>2)<<12 | (cb>>2)<<6 | (cr>>2).
func Index(y, cb, cr uint8) int {
	return int(y>>channelShift)<<(2*BitsPerChannel) | int(cb>>channelShift)<<BitsPerChannel | int(cr>>channelShift)
}

// Classify returns the class of a sample.
func (t *LookUpTable) Classify(y, cb, cr uint8) Class {
	return t.cells[Index(y, cb, cr)]
}

// Set assigns the cell containing the sample.
func (t *LookUpTable) Set(y, cb, cr uint8, c Class) {
	t.cells[Index(y, cb, cr)] = c
}

// SetRange assigns every cell whose samples fall within the inclusive channel ranges.
func (t *LookUpTable) SetRange(yMin, yMax, cbMin, cbMax, crMin, crMax uint8, c Class) {
	for y := int(yMin >> channelShift); y <= int(yMax>>channelShift); y++ {
		for cb := int(cbMin >> channelShift); cb <= int(cbMax>>channelShift); cb++ {
			for cr := int(crMin >> channelShift); cr <= int(crMax>>channelShift); cr++ {
				t.cells[y<<(2*BitsPerChannel)|cb<<BitsPerChannel|cr] = c
			}
		}
	}
}

// Count returns how many cells hold class c.
func (t *LookUpTable) Count(c Class) int {
	n := 0
	for _, cell := range t.cells {
		if cell == c {
			n++
		}
	}
	return n
}

// WriteTo writes the table as TableSize class characters.
func (t *LookUpTable) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, TableSize)
	for i, cell := range t.cells {
		buf[i] = cell.Char()
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// ReadFrom reads a table written by WriteTo.
func (t *LookUpTable) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, TableSize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return int64(n), errors.Wrapf(err, "lookup table must hold %d cells", TableSize)
	}
	for i, b := range buf {
		t.cells[i] = ClassFromChar(b)
	}
	return int64(n), nil
}

// LoadFile reads a table from disk.
func LoadFile(path string) (*LookUpTable, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening lookup table")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	table := NewLookUpTable()
	if _, err := table.ReadFrom(bufio.NewReader(f)); err != nil {
		return nil, errors.Wrapf(err, "error reading lookup table %q", path)
	}
	return table, nil
}

// SaveFile writes the table to disk.
func (t *LookUpTable) SaveFile(path string) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "error creating lookup table")
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	_, err = t.WriteTo(f)
	return err
}
