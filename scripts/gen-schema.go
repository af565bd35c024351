//go:build ignore

package main

import (
	"fmt"
	"os"

	"github.com/ormasoftchile/confix/pkg/config"
)

func main() {
	data, err := config.GenerateInspectionSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile("schemas/inspection-v0.json", data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote schemas/inspection-v0.json")
}
