// Package lut classifies pixels into colour classes with a precomputed lookup table and turns
// scanlines into runs of a single class.
package lut

import (
	"github.com/pkg/errors"
)

// Class is the colour class of a pixel.
type Class uint8

// The colour classes known to the vision pipeline.
const (
	Unclassified Class = iota
	Field
	Ball
	Goal
	Line
	CyanTeam
	MagentaTeam
	numClasses
)

// Classes lists every class in declaration order.
var Classes = []Class{Unclassified, Field, Ball, Goal, Line, CyanTeam, MagentaTeam}

var (
	classChars = [numClasses]byte{'u', 'g', 'o', 'y', 'w', 'c', 'm'}
	classNames = [numClasses]string{"unclassified", "field", "ball", "goal", "line", "cyan_team", "magenta_team"}
)

// Char is the byte used for the class in lookup table files.
func (c Class) Char() byte {
	if c >= numClasses {
		return classChars[Unclassified]
	}
	return classChars[c]
}

func (c Class) String() string {
	if c >= numClasses {
		return classNames[Unclassified]
	}
	return classNames[c]
}

// ClassFromChar maps a lookup table byte back to its class. Unknown bytes are Unclassified.
func ClassFromChar(b byte) Class {
	for i, char := range classChars {
		if char == b {
			return Class(i)
		}
	}
	return Unclassified
}

// ClassFromString parses a class name such as "goal".
func ClassFromString(name string) (Class, error) {
	for i, n := range classNames {
		if n == name {
			return Class(i), nil
		}
	}
	return Unclassified, errors.Errorf("unknown colour class %q", name)
}

// MarshalText encodes the class by name.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a class name.
func (c *Class) UnmarshalText(text []byte) error {
	parsed, err := ClassFromString(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
