package main

import "github.com/pavkata12/app/internal/cli"

func main() {
	cli.Execute()
}
