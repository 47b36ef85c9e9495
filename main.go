package main

import "discount-harvester/cmd"

func main() {
	cmd.Execute()
}
