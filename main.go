package main

import "github.com/kozaktomas/photo-dedupe/cmd"

func main() {
	cmd.Execute()
}
