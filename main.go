// Package main is the entry point for the pinstats CLI, which loads pinball
// league match records and computes derived statistics.
package main

import "github.com/pinleague/pipeline/cmd"

func main() {
	cmd.Execute()
}
