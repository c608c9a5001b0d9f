package main

import "github.com/MeKo-Tech/keystone/cmd/keystone/cmd"

func main() {
	cmd.Execute()
}
