package main

import (
	"github.com/lb-peak-collector/cmd/agent"
)

func main() {
	agent.Execute()
}
