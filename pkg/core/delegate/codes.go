// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package delegate

import (
	"strings"

	"github.com/gomlx/metainfer/pkg/core/descriptors"
	"github.com/gomlx/metainfer/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// Vendor dtype codes, as defined by the Ascend Computing Language (ACL) aclDataType.
const (
	VendorDTypeUndefined  int32 = -1
	VendorDTypeFloat      int32 = 0
	VendorDTypeFloat16    int32 = 1
	VendorDTypeInt8       int32 = 2
	VendorDTypeInt32      int32 = 3
	VendorDTypeUint8      int32 = 4
	VendorDTypeInt16      int32 = 6
	VendorDTypeUint16     int32 = 7
	VendorDTypeUint32     int32 = 8
	VendorDTypeInt64      int32 = 9
	VendorDTypeUint64     int32 = 10
	VendorDTypeDouble     int32 = 11
	VendorDTypeBool       int32 = 12
	VendorDTypeComplex64  int32 = 16
	VendorDTypeComplex128 int32 = 17
	VendorDTypeBFloat16   int32 = 27
)

// Vendor format codes, as defined by ACL aclFormat.
const (
	VendorFormatUndefined int32 = -1
	VendorFormatNCHW      int32 = 0
	VendorFormatNHWC      int32 = 1
	VendorFormatND        int32 = 2
)

// vendorDTypeCodes is indexed by DType.
var vendorDTypeCodes = [...]int32{
	dtypes.InvalidDType: VendorDTypeUndefined,
	dtypes.Bool:         VendorDTypeBool,
	dtypes.Int8:         VendorDTypeInt8,
	dtypes.Int16:        VendorDTypeInt16,
	dtypes.Int32:        VendorDTypeInt32,
	dtypes.Int64:        VendorDTypeInt64,
	dtypes.Uint8:        VendorDTypeUint8,
	dtypes.Uint16:       VendorDTypeUint16,
	dtypes.Uint32:       VendorDTypeUint32,
	dtypes.Uint64:       VendorDTypeUint64,
	dtypes.Float16:      VendorDTypeFloat16,
	dtypes.Float32:      VendorDTypeFloat,
	dtypes.Float64:      VendorDTypeDouble,
	dtypes.BFloat16:     VendorDTypeBFloat16,
	dtypes.Complex64:    VendorDTypeComplex64,
	dtypes.Complex128:   VendorDTypeComplex128,
}

// dtypesByVendorCode is indexed by vendor dtype code. Gaps are InvalidDType.
var dtypesByVendorCode = [...]dtypes.DType{
	VendorDTypeFloat:      dtypes.Float32,
	VendorDTypeFloat16:    dtypes.Float16,
	VendorDTypeInt8:       dtypes.Int8,
	VendorDTypeInt32:      dtypes.Int32,
	VendorDTypeUint8:      dtypes.Uint8,
	VendorDTypeInt16:      dtypes.Int16,
	VendorDTypeUint16:     dtypes.Uint16,
	VendorDTypeUint32:     dtypes.Uint32,
	VendorDTypeInt64:      dtypes.Int64,
	VendorDTypeUint64:     dtypes.Uint64,
	VendorDTypeDouble:     dtypes.Float64,
	VendorDTypeBool:       dtypes.Bool,
	VendorDTypeComplex64:  dtypes.Complex64,
	VendorDTypeComplex128: dtypes.Complex128,
	VendorDTypeBFloat16:   dtypes.BFloat16,
}

// vendorDTypeNames is indexed by vendor dtype code. Gaps are empty.
var vendorDTypeNames = [...]string{
	VendorDTypeFloat:      "FLOAT",
	VendorDTypeFloat16:    "FLOAT16",
	VendorDTypeInt8:       "INT8",
	VendorDTypeInt32:      "INT32",
	VendorDTypeUint8:      "UINT8",
	VendorDTypeInt16:      "INT16",
	VendorDTypeUint16:     "UINT16",
	VendorDTypeUint32:     "UINT32",
	VendorDTypeInt64:      "INT64",
	VendorDTypeUint64:     "UINT64",
	VendorDTypeDouble:     "DOUBLE",
	VendorDTypeBool:       "BOOL",
	VendorDTypeComplex64:  "COMPLEX64",
	VendorDTypeComplex128: "COMPLEX128",
	VendorDTypeBFloat16:   "BF16",
}

// VendorDTypeCode returns the vendor code for dtype, or an error if it has none.
func VendorDTypeCode(dtype dtypes.DType) (int32, error) {
	if !dtype.IsSupported() || int(dtype) >= len(vendorDTypeCodes) {
		return VendorDTypeUndefined, errors.Errorf("dtype %s has no vendor dtype code", dtype)
	}
	return vendorDTypeCodes[dtype], nil
}

// DTypeFromVendorCode returns the DType of a vendor dtype code, or an error for unknown codes.
func DTypeFromVendorCode(code int32) (dtypes.DType, error) {
	if code >= 0 && int(code) < len(dtypesByVendorCode) {
		if dtype := dtypesByVendorCode[code]; dtype != dtypes.InvalidDType {
			return dtype, nil
		}
	}
	return dtypes.InvalidDType, errors.Errorf("unknown vendor dtype code %d", code)
}

// DTypeFromVendorName returns the DType of a vendor dtype name, like "FLOAT" or "INT64".
// Names are case-insensitive.
func DTypeFromVendorName(name string) (dtypes.DType, error) {
	upper := strings.ToUpper(name)
	for code, vendorName := range vendorDTypeNames {
		if vendorName != "" && vendorName == upper {
			return dtypesByVendorCode[code], nil
		}
	}
	return dtypes.InvalidDType, errors.Errorf("unknown vendor dtype name %q", name)
}

// VendorFormatCode returns the vendor format code for a layout.
func VendorFormatCode(layout descriptors.Layout) int32 {
	switch layout {
	case descriptors.LayoutContiguous:
		return VendorFormatND
	case descriptors.LayoutChannelsLast:
		return VendorFormatNHWC
	}
	return VendorFormatUndefined
}

// LayoutFromVendorFormat returns the layout for a vendor format code. Unknown formats are LayoutUnspecified.
func LayoutFromVendorFormat(code int32) descriptors.Layout {
	switch code {
	case VendorFormatND, VendorFormatNCHW:
		return descriptors.LayoutContiguous
	case VendorFormatNHWC:
		return descriptors.LayoutChannelsLast
	}
	return descriptors.LayoutUnspecified
}
