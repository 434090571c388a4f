// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"
	"math"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/lazyir/pkg/core/hashing"
	"github.com/gomlx/lazyir/pkg/core/ir"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// ParameterNode is an input of the trace, identified by name and shape.
type ParameterNode struct {
	*ir.Base
	name string
}

var _ ir.ShapedNode = (*ParameterNode)(nil)

// Parameter creates an input of the trace. Parameters with the same name and shape have the same hash.
func Parameter(s *ir.Session, name string, shape shapes.Shape) (*ParameterNode, error) {
	if name == "" {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "%s requires a name", OpParameter)
	}
	if shape.IsTuple() {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "%s %q cannot have a tuple shape %s", OpParameter, name, shape)
	}
	base, err := ir.NewLeafBase(s, OpParameter, shape, 1, hashing.String(name))
	if err != nil {
		return nil, err
	}
	return &ParameterNode{Base: base, name: name}, nil
}

// Name of the parameter.
func (n *ParameterNode) Name() string { return n.name }

// Clone implements ir.Node. Parameters have no operands.
func (n *ParameterNode) Clone(operands []ir.Output) (ir.Node, error) {
	if err := ir.CheckNumOperands(n.Op(), operands, 0); err != nil {
		return nil, err
	}
	shape, err := n.Shape()
	if err != nil {
		return nil, err
	}
	return Parameter(n.Session(), n.name, shape)
}

// String implements ir.Node.
func (n *ParameterNode) String() string {
	return fmt.Sprintf("%s, name=%q", n.Base.String(), n.name)
}

// ScalarNode is a constant scalar value.
type ScalarNode struct {
	*ir.Base
	value float64
}

var _ ir.ShapedNode = (*ScalarNode)(nil)

// Scalar creates a constant of the given dtype.
//
// The value is first rounded to the precision of dtype, so for instance 0.1 and float64(float32(0.1))
// are the same Float32 scalar, with the same hash.
func Scalar(s *ir.Session, value float64, dtype dtypes.DType) (*ScalarNode, error) {
	value, err := canonicalScalar(value, dtype)
	if err != nil {
		return nil, err
	}
	base, err := ir.NewLeafBase(s, OpScalar, shapes.Make(dtype), 1, hashing.Float64(value))
	if err != nil {
		return nil, err
	}
	return &ScalarNode{Base: base, value: value}, nil
}

// canonicalScalar rounds value to the precision of dtype.
func canonicalScalar(value float64, dtype dtypes.DType) (float64, error) {
	switch {
	case dtype == dtypes.Float64:
		return value, nil
	case dtype == dtypes.Float32:
		return float64(float32(value)), nil
	case dtype == dtypes.Float16:
		return float64(float16.Fromfloat32(float32(value)).Float32()), nil
	case dtype == dtypes.BFloat16:
		return float64(bfloat16.FromFloat32(float32(value)).Float32()), nil
	case dtype == dtypes.Bool:
		if value != 0 {
			return 1, nil
		}
		return 0, nil
	case dtype.IsInt():
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return 0, errors.Wrapf(ir.ErrInvalidArgument, "%s: non-finite value %g for %s", OpScalar, value, dtype)
		}
		low, high, found := intRange(dtype)
		if !found {
			break
		}
		value = math.Trunc(value)
		if value < low || value >= high {
			return 0, errors.Wrapf(ir.ErrInvalidArgument, "%s: value %g out of range [%g, %g) for %s", OpScalar, value, low, high, dtype)
		}
		return value, nil
	}
	return 0, errors.Wrapf(ir.ErrInvalidArgument, "%s: unsupported dtype %s", OpScalar, dtype)
}

// intRange returns the range [low, high) of values representable by an integer dtype.
// Both limits are powers of 2, exactly representable as float64.
func intRange(dtype dtypes.DType) (low, high float64, found bool) {
	var bits int
	signed := true
	switch dtype {
	case dtypes.Int8:
		bits = 8
	case dtypes.Int16:
		bits = 16
	case dtypes.Int32:
		bits = 32
	case dtypes.Int64:
		bits = 64
	case dtypes.Uint8:
		bits, signed = 8, false
	case dtypes.Uint16:
		bits, signed = 16, false
	case dtypes.Uint32:
		bits, signed = 32, false
	case dtypes.Uint64:
		bits, signed = 64, false
	default:
		return 0, 0, false
	}
	if !signed {
		return 0, math.Ldexp(1, bits), true
	}
	return -math.Ldexp(1, bits-1), math.Ldexp(1, bits-1), true
}

// Value of the scalar, already rounded to its dtype.
func (n *ScalarNode) Value() float64 { return n.value }

// Clone implements ir.Node. Scalars have no operands.
func (n *ScalarNode) Clone(operands []ir.Output) (ir.Node, error) {
	if err := ir.CheckNumOperands(n.Op(), operands, 0); err != nil {
		return nil, err
	}
	shape, err := n.Shape()
	if err != nil {
		return nil, err
	}
	return Scalar(n.Session(), n.value, shape.DType)
}

// String implements ir.Node.
func (n *ScalarNode) String() string {
	return fmt.Sprintf("%s, value=%g", n.Base.String(), n.value)
}
