package main

import "github.com/bblog/blogbot/internal/cli"

func main() {
	cli.Execute()
}
