package capture

import (
	"github.com/Nakildias/sc0710/internal/config"
	"github.com/Nakildias/sc0710/internal/signal"
)

// Colorspace hint for the consumer.
type Colorspace string

const (
	ColorspaceSMPTE170M Colorspace = "smpte170m"
	ColorspaceRec709    Colorspace = "rec709"
	ColorspaceBT2020    Colorspace = "bt2020"
	ColorspaceSRGB      Colorspace = "srgb"
)

// XferFunc is the transfer function hint.
type XferFunc string

const (
	XferFuncDefault   XferFunc = "default"
	XferFuncSMPTE2084 XferFunc = "smpte2084"
)

// YCbCrEnc is the Y'CbCr encoding hint.
type YCbCrEnc string

const (
	YCbCrEncDefault YCbCrEnc = "default"
	YCbCrEnc601     YCbCrEnc = "601"
	YCbCrEnc709     YCbCrEnc = "709"
	YCbCrEncBT2020  YCbCrEnc = "bt2020"
)

// Quantization is the range hint. A source/sink mismatch here shows up
// as washed-out or crushed levels.
type Quantization string

const (
	QuantizationDefault Quantization = "default"
	QuantizationLimited Quantization = "limited"
	QuantizationFull    Quantization = "full"
)

// MapColorspace maps detected colorimetry to the consumer hint.
func MapColorspace(c signal.Colorimetry) Colorspace {
	switch c {
	case signal.ColorimetryBT601:
		return ColorspaceSMPTE170M
	case signal.ColorimetryBT709:
		return ColorspaceRec709
	case signal.ColorimetryBT2020:
		return ColorspaceBT2020
	default:
		return ColorspaceSRGB
	}
}

// MapXferFunc resolves the transfer function. BT.2020 input can carry
// SDR, PQ or HLG; the InfoFrame EOTF decides unless overridden. HLG is
// reported as SMPTE 2084, the closest hint the contract carries.
func MapXferFunc(e signal.EOTF, force config.EOTFOverride) XferFunc {
	switch force {
	case config.EOTFForceSDR:
		return XferFuncDefault
	case config.EOTFForcePQ, config.EOTFForceHLG:
		return XferFuncSMPTE2084
	}

	switch e {
	case signal.EOTFPQ, signal.EOTFHLG:
		return XferFuncSMPTE2084
	default:
		return XferFuncDefault
	}
}

// MapYCbCrEnc maps detected colorimetry to the encoding hint.
func MapYCbCrEnc(c signal.Colorimetry) YCbCrEnc {
	switch c {
	case signal.ColorimetryBT2020:
		return YCbCrEncBT2020
	case signal.ColorimetryBT709:
		return YCbCrEnc709
	case signal.ColorimetryBT601:
		return YCbCrEnc601
	default:
		return YCbCrEncDefault
	}
}

// MapQuantization resolves the range hint. Auto assumes BT.2020 runs
// limited range; everything else reports default.
func MapQuantization(c signal.Colorimetry, force config.QuantOverride) Quantization {
	switch force {
	case config.QuantForceLimited:
		return QuantizationLimited
	case config.QuantForceFull:
		return QuantizationFull
	}
	if c == signal.ColorimetryBT2020 {
		return QuantizationLimited
	}
	return QuantizationDefault
}
