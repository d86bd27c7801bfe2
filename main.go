package main

import "github.com/educlip/educlip/internal/cli"

func main() {
	cli.Main()
}
