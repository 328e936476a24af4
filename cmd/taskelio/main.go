package main

import "taskelio/cmd/cli"

func main() {
	cli.Execute()
}
