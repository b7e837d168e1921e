package main

import "tv-order-relay/internal/cli"

func main() {
	cli.Execute()
}
