package main

import (
	"SpotiTrace/cmd"
)

func main() {
	cmd.Execute()
}
