// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapeinference

import "github.com/gomlx/metainfer/pkg/core/dtypes"

// promotionCategory orders the dtype categories for promotion, from lowest to highest.
type promotionCategory int

const (
	categoryNone promotionCategory = iota
	categoryBool
	categoryInt
	categoryFloat
	categoryDouble // Float64 wins over any other float, regardless of the ladder.
	categoryComplex
)

// promotionRank of a dtype: its category, and its rank (wider is higher) within the category.
type promotionRank struct {
	category promotionCategory
	rank     int
}

// promotionRanks is indexed by DType. DTypes not listed have categoryNone.
var promotionRanks = [...]promotionRank{
	dtypes.Bool:       {categoryBool, 0},
	dtypes.Int8:       {categoryInt, 0},
	dtypes.Uint8:      {categoryInt, 1},
	dtypes.Int16:      {categoryInt, 2},
	dtypes.Uint16:     {categoryInt, 3},
	dtypes.Int32:      {categoryInt, 4},
	dtypes.Uint32:     {categoryInt, 5},
	dtypes.Int64:      {categoryInt, 6},
	dtypes.Uint64:     {categoryInt, 7},
	dtypes.BFloat16:   {categoryFloat, 0},
	dtypes.Float16:    {categoryFloat, 1},
	dtypes.Float32:    {categoryFloat, 2},
	dtypes.Float64:    {categoryDouble, 0},
	dtypes.Complex64:  {categoryComplex, 0},
	dtypes.Complex128: {categoryComplex, 1},
}

func rankOf(dtype dtypes.DType) promotionRank {
	if dtype < 0 || int(dtype) >= len(promotionRanks) {
		return promotionRank{}
	}
	return promotionRanks[dtype]
}

// PromoteDTypes returns the dtype resulting from combining values of dtype1 and dtype2.
//
// The highest category wins outright: complex > Float64 > float > integer > bool.
// Within a category the wider dtype wins. It returns an UnknownDTypeCastError if neither dtype
// belongs to a category.
func PromoteDTypes(dtype1, dtype2 dtypes.DType) (dtypes.DType, error) {
	r1, r2 := rankOf(dtype1), rankOf(dtype2)
	if dtype1 == dtype2 && r1.category != categoryNone {
		return dtype1, nil
	}
	if r1.category == categoryNone && r2.category == categoryNone {
		return dtypes.InvalidDType, &UnknownDTypeCastError{DType1: dtype1, DType2: dtype2}
	}
	if r1.category > r2.category || (r1.category == r2.category && r1.rank >= r2.rank) {
		return dtype1, nil
	}
	return dtype2, nil
}

// PromoteKinds resolves the kinds of two scalar literals to their concrete dtypes (see dtypes.Kind.DType)
// and promotes them.
func PromoteKinds(kind1, kind2 dtypes.Kind) (dtypes.DType, error) {
	return PromoteDTypes(kind1.DType(), kind2.DType())
}

// PromoteAll promotes any number of dtypes, left to right. It returns InvalidDType and no error if
// no dtype is given.
func PromoteAll(dtypesList ...dtypes.DType) (dtype dtypes.DType, err error) {
	for ii, dt := range dtypesList {
		if ii == 0 {
			dtype = dt
			if rankOf(dt).category == categoryNone {
				return dtypes.InvalidDType, &UnknownDTypeCastError{DType1: dt, DType2: dt}
			}
			continue
		}
		dtype, err = PromoteDTypes(dtype, dt)
		if err != nil {
			return
		}
	}
	return
}
