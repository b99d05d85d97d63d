package main

import "github.com/zerodaysoftware/storekit/internal/cli"

func main() {
	cli.Execute()
}
