package main

import "github.com/sorengranfeldt/mre/cmd"

func main() {
	cmd.Execute()
}
