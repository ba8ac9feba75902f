package main

import "dyfetch/cmd"

func main() {
	cmd.Execute()
}
