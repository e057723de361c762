package main

import "github.com/ideamans/go-sheetfeed/internal/cli"

func main() {
	cli.Execute()
}
