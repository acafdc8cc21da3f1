package quantization

import (
	"os"
	"strings"
)

// Kernel identifies the Hamming kernel selected for this process.
type Kernel uint8

const (
	// KernelGeneric is the portable one-word-per-iteration loop.
	KernelGeneric Kernel = iota
	// KernelPOPCNT is the unrolled kernel on x86-64 with hardware POPCNT.
	KernelPOPCNT
	// KernelASIMD is the unrolled kernel on arm64 with ASIMD (VCNT).
	KernelASIMD
)

// String returns the string representation of a Kernel.
func (k Kernel) String() string {
	switch k {
	case KernelGeneric:
		return "generic"
	case KernelPOPCNT:
		return "popcnt"
	case KernelASIMD:
		return "asimd"
	default:
		return "unknown"
	}
}

// EnvKernel overrides kernel selection when set to "generic".
const EnvKernel = "ENTITYDB_SIMD"

var (
	activeKernel  = KernelGeneric
	hammingKernel = hammingGeneric

	// set by platform-specific init
	hasPOPCNT bool
	hasASIMD  bool
)

func initKernels() {
	if strings.EqualFold(strings.TrimSpace(os.Getenv(EnvKernel)), "generic") {
		return
	}
	switch {
	case hasPOPCNT:
		activeKernel = KernelPOPCNT
		hammingKernel = hammingUnrolled4
	case hasASIMD:
		activeKernel = KernelASIMD
		hammingKernel = hammingUnrolled4
	}
}

// ActiveKernel returns the Hamming kernel in use.
func ActiveKernel() Kernel {
	return activeKernel
}
