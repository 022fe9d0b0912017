package main

import "github.com/KaramelBytes/trialdash/cmd"

func main() {
	cmd.Execute()
}
