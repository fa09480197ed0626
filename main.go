package main

import "github.com/mselser95/polymarket-redeemer/cmd"

func main() {
	cmd.Execute()
}
