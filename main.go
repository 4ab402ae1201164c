package main

import "tgstream/cmd"

func main() {
	cmd.Execute()
}
