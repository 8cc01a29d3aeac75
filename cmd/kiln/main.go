// Package main provides the kiln CLI.
package main

import (
	"fmt"
	"os"

	"github.com/kiln-ml/kiln/gpu"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("kiln %s\n", version)
			return
		case "gpu":
			printGPUInfo()
			return
		}
	}

	fmt.Println("kiln - GPU tensors with autodiff for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  gpu        Show the WebGPU adapter in use")
}

func printGPUInfo() {
	ctx, err := gpu.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "no usable WebGPU device: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Release()

	fmt.Printf("adapter: %s\n", ctx.Name())
	if info := ctx.AdapterInfo(); info != nil {
		fmt.Printf("vendor:  %s\n", info.Vendor)
	}
}
