package main

import "github.com/kirillkom/pbs-retrieval/internal/cli"

func main() {
	cli.Execute()
}
