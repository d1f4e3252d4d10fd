package main

import "github.com/go-mizu/ptext/cmd/ptext/cmd"

func main() {
	cmd.Execute()
}
