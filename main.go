// Package main provides the entry point for gbasim.
// gbasim is an ARM7TDMI interpreter core with a cycle cost model, driven a
// video frame at a time.
//
// For the full CLI, use: go run ./cmd/gbasim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("gbasim - ARM7TDMI interpreter core")
	fmt.Println("")
	fmt.Println("Usage: gbasim [options] -rom <game.gba> | -elf <program.elf>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -bios         Path to a 16 KiB BIOS image")
	fmt.Println("  -frames       Number of frames to run")
	fmt.Println("  -config       Path to timing configuration JSON or YAML file")
	fmt.Println("  -direct-boot  Skip the BIOS and start at the cartridge")
	fmt.Println("  -hle          Service arithmetic and halt BIOS calls on the host")
	fmt.Println("  -trace        Print every executed instruction")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/gbasim' for the full CLI, or")
	fmt.Println("'go run ./cmd/benchmark' for the cycle benchmarks.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/gbasim' instead.")
	}
}
