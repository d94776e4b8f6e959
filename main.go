package main

import "github.com/CosmoTheDev/seatwatch/cmd"

func main() {
	cmd.Execute()
}
