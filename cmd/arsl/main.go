package main

import "github.com/MeKo-Tech/arsl/cmd/arsl/cmd"

func main() {
	cmd.Execute()
}
