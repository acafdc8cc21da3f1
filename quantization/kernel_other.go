//go:build !amd64 && !arm64

package quantization

func init() {
	initKernels()
}
