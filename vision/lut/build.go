package lut

import (
	"context"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"go.viam.com/fieldvision/utils"
)

// Reference is a sample colour of a class, e.g. the green of the field carpet.
type Reference struct {
	Class Class       `json:"class"`
	Color color.Color `json:"-"`
	Hex   string      `json:"hex"`
}

// NewReference returns a reference for a "#rrggbb" colour.
func NewReference(c Class, hex string) (Reference, error) {
	parsed, err := colorful.Hex(hex)
	if err != nil {
		return Reference{}, err
	}
	return Reference{Class: c, Color: parsed, Hex: hex}, nil
}

// BuildFromReferences assigns every cell the class of the nearest reference in CIE Lab space.
// Cells further than maxDistance from every reference stay Unclassified. Cells are computed from
// the centre sample of their Y'CbCr cube.
func BuildFromReferences(ctx context.Context, refs []Reference, maxDistance float64) (*LookUpTable, error) {
	table := NewLookUpTable()
	if len(refs) == 0 {
		return table, nil
	}

	labs := make([]colorful.Color, len(refs))
	for i, ref := range refs {
		labs[i], _ = colorful.MakeColor(ref.Color)
	}

	const cellsPerY = 1 << (2 * BitsPerChannel)
	const half = 1 << (channelShift - 1)
	err := utils.GroupWorkParallel(
		ctx,
		1<<BitsPerChannel,
		func(int) {},
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			return func(memberNum, yIdx int) {
				y := uint8(yIdx<<channelShift + half)
				for rest := 0; rest < cellsPerY; rest++ {
					cb := uint8((rest>>BitsPerChannel)<<channelShift + half)
					cr := uint8((rest&(1<<BitsPerChannel-1))<<channelShift + half)
					sample, _ := colorful.MakeColor(color.YCbCr{Y: y, Cb: cb, Cr: cr})

					best, bestDistance := Unclassified, math.Inf(1)
					for i, lab := range labs {
						if d := sample.DistanceLab(lab); d < bestDistance {
							best, bestDistance = refs[i].Class, d
						}
					}
					if bestDistance <= maxDistance {
						table.cells[yIdx*cellsPerY+rest] = best
					}
				}
			}, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return table, nil
}
