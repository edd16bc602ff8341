/*
	Copyright 2024 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/overlay-telemetry-core/cmd"

func main() {
	cmd.Execute()
}
