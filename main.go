package main

import "github.com/PromoBrothers/Projeto-2026/cmd"

func main() {
	cmd.Execute()
}
