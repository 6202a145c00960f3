package lut

import (
	"bytes"
	"context"
	"image/color"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestClass(t *testing.T) {
	for _, c := range Classes {
		test.That(t, ClassFromChar(c.Char()), test.ShouldEqual, c)
		parsed, err := ClassFromString(c.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, c)
	}
	test.That(t, Goal.Char(), test.ShouldEqual, byte('y'))
	test.That(t, Field.Char(), test.ShouldEqual, byte('g'))
	test.That(t, ClassFromChar('?'), test.ShouldEqual, Unclassified)

	var c Class
	test.That(t, c.UnmarshalText([]byte("ball")), test.ShouldBeNil)
	test.That(t, c, test.ShouldEqual, Ball)
	test.That(t, c.UnmarshalText([]byte("sky")), test.ShouldNotBeNil)
}

func TestIndex(t *testing.T) {
	test.That(t, Index(0, 0, 0), test.ShouldEqual, 0)
	test.That(t, Index(255, 255, 255), test.ShouldEqual, TableSize-1)
	test.That(t, Index(4, 0, 0), test.ShouldEqual, 1<<12)
	test.That(t, Index(0, 4, 0), test.ShouldEqual, 1<<6)
	test.That(t, Index(0, 0, 7), test.ShouldEqual, 1)
}

func TestSetRange(t *testing.T) {
	table := NewLookUpTable()
	table.SetRange(100, 140, 40, 80, 30, 70, Field)
	test.That(t, table.Classify(120, 60, 50), test.ShouldEqual, Field)
	test.That(t, table.Classify(100, 40, 30), test.ShouldEqual, Field)
	test.That(t, table.Classify(143, 83, 71), test.ShouldEqual, Field)
	test.That(t, table.Classify(144, 60, 50), test.ShouldEqual, Unclassified)
	test.That(t, table.Count(Field), test.ShouldEqual, 11*11*11)
}

func TestTableRoundTrip(t *testing.T) {
	table := testTable()
	table.SetRange(0, 30, 0, 255, 0, 255, Line)

	var buf bytes.Buffer
	n, err := table.WriteTo(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, int64(TableSize))

	read := NewLookUpTable()
	_, err = read.ReadFrom(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.cells, test.ShouldResemble, table.cells)

	path := filepath.Join(t.TempDir(), "table.lut")
	test.That(t, table.SaveFile(path), test.ShouldBeNil)
	loaded, err := LoadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Classify(goalWhite.Y, goalWhite.Cb, goalWhite.Cr), test.ShouldEqual, Goal)

	_, err = NewLookUpTable().ReadFrom(bytes.NewReader([]byte("ggg")))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.lut"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBuildFromReferences(t *testing.T) {
	green, err := NewReference(Field, "#00c800")
	test.That(t, err, test.ShouldBeNil)
	white, err := NewReference(Goal, "#ffffff")
	test.That(t, err, test.ShouldBeNil)
	_, err = NewReference(Goal, "white")
	test.That(t, err, test.ShouldNotBeNil)

	table, err := BuildFromReferences(context.Background(), []Reference{green, white}, 0.3)
	test.That(t, err, test.ShouldBeNil)

	classify := func(c color.Color) Class {
		yc := color.YCbCrModel.Convert(c).(color.YCbCr)
		return table.Classify(yc.Y, yc.Cb, yc.Cr)
	}
	test.That(t, classify(color.RGBA{G: 200, A: 255}), test.ShouldEqual, Field)
	test.That(t, classify(color.RGBA{R: 250, G: 250, B: 250, A: 255}), test.ShouldEqual, Goal)
	test.That(t, classify(color.RGBA{R: 255, A: 255}), test.ShouldEqual, Unclassified)
	test.That(t, table.Count(Field), test.ShouldBeGreaterThan, 0)

	empty, err := BuildFromReferences(context.Background(), nil, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, empty.Count(Unclassified), test.ShouldEqual, TableSize)
}
